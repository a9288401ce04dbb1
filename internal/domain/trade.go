package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeConfig holds the immutable trading parameters. Thresholds are
// fractions (1bp = 0.0001).
type TradeConfig struct {
	Instrument             string
	QuoteBudget            decimal.Decimal
	SpreadMinFraction      float64
	SlippageBufferFraction float64
	TakerFeeFraction       float64
	StalenessWindow        time.Duration
	DryRun                 bool
	// LegTimeout bounds each order call. Zero means no timeout.
	LegTimeout time.Duration
}

// MinFraction is the smallest spread worth trading: the configured minimum
// plus a taker fee on each leg plus the slippage buffer.
func (c TradeConfig) MinFraction() float64 {
	return c.SpreadMinFraction + 2*c.TakerFeeFraction + c.SlippageBufferFraction
}

// MarketConstraint is a venue's quantity granularity, minimum order size and
// minimum order value for the traded instrument. Zero minimums mean none.
type MarketConstraint struct {
	Venue       Venue
	Instrument  string
	StepSize    decimal.Decimal
	MinQty      decimal.Decimal
	MinNotional decimal.Decimal
}

// OrderResult wraps the venue response after order submission.
type OrderResult struct {
	OrderID string
	Status  string
	Raw     string
}

// ExecutionStatus is the outcome of a two-leg trade.
type ExecutionStatus string

const (
	ExecutionFilled  ExecutionStatus = "filled"
	ExecutionPartial ExecutionStatus = "partial"
	ExecutionFailed  ExecutionStatus = "failed"
)

// TradeLeg is one side of an executed trade.
type TradeLeg struct {
	Venue   Venue
	Side    OrderSide
	Price   float64
	Qty     decimal.Decimal
	OrderID string
	Err     string
}

// OK reports whether the leg was accepted by the venue.
func (l TradeLeg) OK() bool { return l.Err == "" }

// TradeExecution records one two-leg trade attempt after both legs resolved.
type TradeExecution struct {
	ID          string
	Instrument  string
	Spread      SpreadResult
	Qty         decimal.Decimal
	Buy         TradeLeg
	Sell        TradeLeg
	Status      ExecutionStatus
	StartedAt   time.Time
	CompletedAt time.Time
}

// ClassifyLegs derives the execution status from the two legs.
func ClassifyLegs(buy, sell TradeLeg) ExecutionStatus {
	switch {
	case buy.OK() && sell.OK():
		return ExecutionFilled
	case buy.OK() || sell.OK():
		return ExecutionPartial
	default:
		return ExecutionFailed
	}
}
