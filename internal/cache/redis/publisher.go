package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// PublisherConfig names the pub/sub channel and the max-spread stream.
type PublisherConfig struct {
	Channel      string
	Stream       string
	StreamMaxLen int64
}

// Publisher implements domain.OpportunityPublisher. Every record is published
// on Channel; max-spread records are also appended to Stream so late
// subscribers can replay the record history.
type Publisher struct {
	rdb *redis.Client
	cfg PublisherConfig
}

// NewPublisher creates a Publisher backed by the given Client.
func NewPublisher(c *Client, cfg PublisherConfig) *Publisher {
	if cfg.StreamMaxLen <= 0 {
		cfg.StreamMaxLen = 10000
	}
	return &Publisher{rdb: c.rdb, cfg: cfg}
}

// message is the envelope sent over pub/sub and stored in the stream.
type message struct {
	Type       string  `json:"type"`
	ID         string  `json:"id,omitempty"`
	Timestamp  int64   `json:"timestamp"`
	Instrument string  `json:"symbol"`
	SellVenue  string  `json:"sellVenue"`
	BuyVenue   string  `json:"buyVenue"`
	SellPrice  float64 `json:"sellPrice"`
	BuyPrice   float64 `json:"buyPrice"`
	Spread     float64 `json:"spread"`
	Profitable *bool   `json:"profitable,omitempty"`
}

func encodeOpportunity(opp domain.Opportunity) ([]byte, error) {
	profitable := opp.Profitable
	return json.Marshal(message{
		Type:       domain.EventOpportunity,
		ID:         opp.ID,
		Timestamp:  opp.Timestamp.UnixMilli(),
		Instrument: opp.Instrument,
		SellVenue:  string(opp.SellVenue),
		BuyVenue:   string(opp.BuyVenue),
		SellPrice:  opp.SellPrice,
		BuyPrice:   opp.BuyPrice,
		Spread:     opp.Fraction,
		Profitable: &profitable,
	})
}

func encodeMaxSpread(rec domain.MaxSpreadRecord) ([]byte, error) {
	return json.Marshal(message{
		Type:       domain.EventMaxSpread,
		Timestamp:  rec.Timestamp.UnixMilli(),
		Instrument: rec.Instrument,
		SellVenue:  string(rec.SellVenue),
		BuyVenue:   string(rec.BuyVenue),
		SellPrice:  rec.SellPrice,
		BuyPrice:   rec.BuyPrice,
		Spread:     rec.Fraction,
	})
}

// PublishOpportunity sends the opportunity on the pub/sub channel.
func (p *Publisher) PublishOpportunity(ctx context.Context, opp domain.Opportunity) error {
	payload, err := encodeOpportunity(opp)
	if err != nil {
		return fmt.Errorf("redis: encode opportunity: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.cfg.Channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.cfg.Channel, err)
	}
	return nil
}

// PublishMaxSpread appends the record to the stream (XADD MAXLEN ~) and then
// publishes it.
func (p *Publisher) PublishMaxSpread(ctx context.Context, rec domain.MaxSpreadRecord) error {
	payload, err := encodeMaxSpread(rec)
	if err != nil {
		return fmt.Errorf("redis: encode max spread: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.cfg.Stream,
		MaxLen: p.cfg.StreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload": payload,
		},
	}
	if err := p.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", p.cfg.Stream, err)
	}
	if err := p.rdb.Publish(ctx, p.cfg.Channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.cfg.Channel, err)
	}
	return nil
}

var _ domain.OpportunityPublisher = (*Publisher)(nil)
