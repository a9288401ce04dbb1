// Package arbitrage computes directional spreads between two venues and sizes
// the quantity a two-leg trade can be placed at.
package arbitrage

import (
	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// Evaluation holds both directional spreads for one pair of quotes.
type Evaluation struct {
	SellABuyB   domain.SpreadResult
	SellBBuyA   domain.SpreadResult
	MinFraction float64
}

// Directions returns both spreads, sell-A-buy-B first.
func (e Evaluation) Directions() [2]domain.SpreadResult {
	return [2]domain.SpreadResult{e.SellABuyB, e.SellBBuyA}
}

// IsActionable reports whether sr meets the threshold.
func (e Evaluation) IsActionable(sr domain.SpreadResult) bool {
	return sr.Fraction >= e.MinFraction
}

// Actionable returns the first direction whose spread meets MinFraction.
// Sell-A-buy-B wins when both qualify.
func (e Evaluation) Actionable() (domain.SpreadResult, bool) {
	if e.IsActionable(e.SellABuyB) {
		return e.SellABuyB, true
	}
	if e.IsActionable(e.SellBBuyA) {
		return e.SellBBuyA, true
	}
	return domain.SpreadResult{}, false
}

// Evaluator computes spreads against a fixed profitability threshold.
type Evaluator struct {
	instrument  string
	minFraction float64
}

// NewEvaluator creates an Evaluator from the trade configuration.
func NewEvaluator(cfg domain.TradeConfig) *Evaluator {
	return &Evaluator{
		instrument:  cfg.Instrument,
		minFraction: cfg.MinFraction(),
	}
}

// MinFraction returns the threshold a spread must reach to be actionable.
func (e *Evaluator) MinFraction() float64 { return e.minFraction }

// Evaluate computes both directions for a complete quote pair. The caller is
// responsible for freshness and completeness.
func (e *Evaluator) Evaluate(pair domain.QuotePair) Evaluation {
	return Evaluation{
		SellABuyB:   e.direction(pair.A, pair.B),
		SellBBuyA:   e.direction(pair.B, pair.A),
		MinFraction: e.minFraction,
	}
}

func (e *Evaluator) direction(sell, buy domain.Quote) domain.SpreadResult {
	return domain.SpreadResult{
		Instrument: e.instrument,
		SellVenue:  sell.Venue,
		BuyVenue:   buy.Venue,
		SellPrice:  sell.Bid,
		BuyPrice:   buy.Ask,
		Fraction:   SpreadFraction(sell.Bid, buy.Ask),
	}
}

// SpreadFraction is the gain from selling at sellBid and buying at buyAsk,
// relative to buyAsk.
func SpreadFraction(sellBid, buyAsk float64) float64 {
	if buyAsk <= 0 {
		return 0
	}
	return (sellBid - buyAsk) / buyAsk
}
