package arbitrage

import (
	"math"
	"testing"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func scenarioConfig() domain.TradeConfig {
	return domain.TradeConfig{
		Instrument:             "BTC/USDT",
		SpreadMinFraction:      0.0008,
		SlippageBufferFraction: 0.0005,
		TakerFeeFraction:       0.001,
		StalenessWindow:        time.Second,
	}
}

func pair(aBid, aAsk, bBid, bAsk float64) domain.QuotePair {
	now := time.Now()
	return domain.QuotePair{
		A: domain.Quote{Venue: domain.VenueBinance, Bid: aBid, Ask: aAsk, ObservedAt: now},
		B: domain.Quote{Venue: domain.VenueOKX, Bid: bBid, Ask: bAsk, ObservedAt: now},
	}
}

func TestMinFraction(t *testing.T) {
	e := NewEvaluator(scenarioConfig())
	if got := e.MinFraction(); math.Abs(got-0.0033) > 1e-12 {
		t.Fatalf("MinFraction() = %v, want 0.0033", got)
	}
}

func TestEvaluateSellABuyBTriggers(t *testing.T) {
	e := NewEvaluator(scenarioConfig())
	ev := e.Evaluate(pair(100, 100.1, 99.5, 99.6))

	if want := (100 - 99.6) / 99.6; math.Abs(ev.SellABuyB.Fraction-want) > 1e-12 {
		t.Fatalf("sell-A-buy-B = %v, want %v", ev.SellABuyB.Fraction, want)
	}
	if math.Abs(ev.SellABuyB.Fraction-0.004016) > 1e-6 {
		t.Fatalf("sell-A-buy-B = %v, want ~0.004016", ev.SellABuyB.Fraction)
	}
	if ev.SellBBuyA.Fraction >= 0 {
		t.Fatalf("sell-B-buy-A should be negative, got %v", ev.SellBBuyA.Fraction)
	}

	sr, ok := ev.Actionable()
	if !ok {
		t.Fatalf("expected actionable spread")
	}
	if sr.SellVenue != domain.VenueBinance || sr.BuyVenue != domain.VenueOKX {
		t.Fatalf("unexpected direction: sell %s buy %s", sr.SellVenue, sr.BuyVenue)
	}
	if sr.SellPrice != 100 || sr.BuyPrice != 99.6 {
		t.Fatalf("unexpected prices: %+v", sr)
	}
}

func TestEvaluateSellBBuyA(t *testing.T) {
	e := NewEvaluator(scenarioConfig())
	ev := e.Evaluate(pair(99.5, 99.6, 100, 100.1))

	sr, ok := ev.Actionable()
	if !ok {
		t.Fatalf("expected actionable spread")
	}
	if sr.SellVenue != domain.VenueOKX || sr.BuyVenue != domain.VenueBinance {
		t.Fatalf("unexpected direction: sell %s buy %s", sr.SellVenue, sr.BuyVenue)
	}
}

func TestActionablePrefersSellABuyB(t *testing.T) {
	// Crossed books on both sides make both directions qualify.
	ev := Evaluation{
		SellABuyB:   domain.SpreadResult{SellVenue: domain.VenueBinance, Fraction: 0.004},
		SellBBuyA:   domain.SpreadResult{SellVenue: domain.VenueOKX, Fraction: 0.01},
		MinFraction: 0.0033,
	}
	sr, ok := ev.Actionable()
	if !ok || sr.SellVenue != domain.VenueBinance {
		t.Fatalf("expected sell-A-buy-B first, got %+v ok=%v", sr, ok)
	}
}

func TestIdenticalQuotesNotActionable(t *testing.T) {
	e := NewEvaluator(scenarioConfig())
	ev := e.Evaluate(pair(100, 100, 100, 100))
	for _, sr := range ev.Directions() {
		if sr.Fraction != 0 {
			t.Errorf("spread %s->%s = %v, want 0", sr.SellVenue, sr.BuyVenue, sr.Fraction)
		}
	}
	if _, ok := ev.Actionable(); ok {
		t.Fatalf("identical quotes must not be actionable")
	}
}

func TestThresholdIsInclusive(t *testing.T) {
	ev := Evaluation{
		SellABuyB:   domain.SpreadResult{Fraction: 0.0033},
		MinFraction: 0.0033,
	}
	if _, ok := ev.Actionable(); !ok {
		t.Fatalf("spread equal to threshold must be actionable")
	}
}
