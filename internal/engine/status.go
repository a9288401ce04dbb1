package engine

import (
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// QuoteView is a quote as exposed over the status API.
type QuoteView struct {
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	BidSize    float64   `json:"bid_size,omitempty"`
	AskSize    float64   `json:"ask_size,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
	AgeMs      int64     `json:"age_ms"`
	Fresh      bool      `json:"fresh"`
}

// SpreadView is one evaluated direction.
type SpreadView struct {
	SellVenue  domain.Venue `json:"sell_venue"`
	BuyVenue   domain.Venue `json:"buy_venue"`
	SellPrice  float64      `json:"sell_price"`
	BuyPrice   float64      `json:"buy_price"`
	Spread     float64      `json:"spread"`
	SpreadPct  string       `json:"spread_pct"`
	Actionable bool         `json:"actionable"`
}

// Counters are the engine's running totals.
type Counters struct {
	Updates       int64 `json:"updates"`
	Stale         int64 `json:"stale"`
	Incomplete    int64 `json:"incomplete"`
	Evaluations   int64 `json:"evaluations"`
	Opportunities int64 `json:"opportunities"`
	Attempts      int64 `json:"attempts"`
	SkippedBusy   int64 `json:"skipped_busy"`
}

// Status is a point-in-time view of the engine.
type Status struct {
	Instrument       string                     `json:"instrument"`
	DryRun           bool                       `json:"dry_run"`
	Trading          bool                       `json:"trading"`
	MinSpread        float64                    `json:"min_spread"`
	CurrentMaxSpread float64                    `json:"current_max_spread"`
	Quotes           map[domain.Venue]QuoteView `json:"quotes"`
	LastEvaluation   []SpreadView               `json:"last_evaluation,omitempty"`
	Counters         Counters                   `json:"counters"`
}

// Status returns the current engine state. Safe for concurrent use.
func (e *Engine) Status() Status {
	now := e.now()
	st := Status{
		Instrument:       e.cfg.Instrument,
		DryRun:           e.cfg.DryRun,
		Trading:          e.gate.Trading(),
		MinSpread:        e.evaluator.MinFraction(),
		CurrentMaxSpread: e.recorder.CurrentMaxSpread(),
		Quotes:           make(map[domain.Venue]QuoteView, 2),
		Counters: Counters{
			Updates:       e.updates.Load(),
			Stale:         e.stale.Load(),
			Incomplete:    e.incomplete.Load(),
			Evaluations:   e.evaluations.Load(),
			Opportunities: e.opportunities.Load(),
			Attempts:      e.attempts.Load(),
			SkippedBusy:   e.skipped.Load(),
		},
	}
	for v, q := range e.book.All() {
		st.Quotes[v] = QuoteView{
			Bid:        q.Bid,
			Ask:        q.Ask,
			BidSize:    q.BidSize,
			AskSize:    q.AskSize,
			ObservedAt: q.ObservedAt,
			AgeMs:      q.Age(now).Milliseconds(),
			Fresh:      q.Age(now) <= e.cfg.StalenessWindow,
		}
	}

	e.mu.RLock()
	last := e.last
	e.mu.RUnlock()
	if last != nil {
		for _, sr := range last.Directions() {
			st.LastEvaluation = append(st.LastEvaluation, SpreadView{
				SellVenue:  sr.SellVenue,
				BuyVenue:   sr.BuyVenue,
				SellPrice:  sr.SellPrice,
				BuyPrice:   sr.BuyPrice,
				Spread:     sr.Fraction,
				SpreadPct:  domain.Pct(sr.Fraction),
				Actionable: last.IsActionable(sr),
			})
		}
	}
	return st
}
