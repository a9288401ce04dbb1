package domain

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// OrderClient places market orders on a single venue.
type OrderClient interface {
	PlaceMarketOrder(ctx context.Context, instrument string, side OrderSide, qty decimal.Decimal) (OrderResult, error)
}

// RulesProvider loads a venue's trading rules for an instrument.
type RulesProvider interface {
	LoadMarketConstraint(ctx context.Context, instrument string) (MarketConstraint, error)
}

// OpportunityStore persists opportunity and max-spread history.
type OpportunityStore interface {
	InsertOpportunity(ctx context.Context, opp Opportunity) error
	InsertMaxSpread(ctx context.Context, rec MaxSpreadRecord) error
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
}

// ExecutionStore persists completed trade attempts.
type ExecutionStore interface {
	Insert(ctx context.Context, exec TradeExecution) error
}

// OpportunityPublisher fans records out to other processes.
type OpportunityPublisher interface {
	PublishOpportunity(ctx context.Context, opp Opportunity) error
	PublishMaxSpread(ctx context.Context, rec MaxSpreadRecord) error
}

// LockManager provides distributed mutual exclusion.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Alerter delivers operator notifications for named events.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Notification event names.
const (
	EventOpportunity = "opportunity"
	EventMaxSpread   = "max_spread"
	EventTradeFilled = "trade_filled"
	EventTradeFailed = "trade_failed"
	EventLegUnhedged = "leg_unhedged"
)
