package arbitrage

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// Sizing is the outcome of sizing one trade. Qty is zero when the trade must
// not be placed; Reason then says why.
type Sizing struct {
	TargetQty decimal.Decimal
	BuyQty    decimal.Decimal
	SellQty   decimal.Decimal
	Qty       decimal.Decimal
	Reason    string
}

// Valid reports whether the trade can be placed at Qty on both venues.
func (s Sizing) Valid() bool { return s.Qty.IsPositive() }

// Sizer converts the quote budget into a base quantity both venues accept.
type Sizer struct {
	budget      decimal.Decimal
	constraints map[domain.Venue]domain.MarketConstraint
}

// NewSizer creates a Sizer. Constraints are keyed by their Venue and cached
// for the lifetime of the Sizer.
func NewSizer(budget decimal.Decimal, constraints ...domain.MarketConstraint) *Sizer {
	m := make(map[domain.Venue]domain.MarketConstraint, len(constraints))
	for _, c := range constraints {
		m[c.Venue] = c
	}
	return &Sizer{budget: budget, constraints: m}
}

// Constraint returns the cached constraint for venue.
func (s *Sizer) Constraint(venue domain.Venue) (domain.MarketConstraint, bool) {
	c, ok := s.constraints[venue]
	return c, ok
}

// Size computes the quantity for sr. Insufficient budget is not an error: the
// returned Sizing is simply not Valid.
func (s *Sizer) Size(sr domain.SpreadResult) Sizing {
	buyC, okBuy := s.constraints[sr.BuyVenue]
	sellC, okSell := s.constraints[sr.SellVenue]
	if !okBuy || !okSell {
		return Sizing{Qty: decimal.Zero, Reason: domain.ErrMissingConstraint.Error()}
	}
	if sr.BuyPrice <= 0 || sr.SellPrice <= 0 {
		return Sizing{Qty: decimal.Zero, Reason: "non-positive price"}
	}

	buyPx := decimal.NewFromFloat(sr.BuyPrice)
	sellPx := decimal.NewFromFloat(sr.SellPrice)

	out := Sizing{TargetQty: s.budget.Div(buyPx)}
	out.BuyQty = FloorToStep(out.TargetQty, buyC.StepSize)
	out.SellQty = FloorToStep(out.TargetQty, sellC.StepSize)
	out.Qty = decimal.Min(out.BuyQty, out.SellQty)

	if !out.Qty.IsPositive() {
		out.Qty = decimal.Zero
		out.Reason = "quantity rounds to zero"
		return out
	}
	for _, c := range []domain.MarketConstraint{buyC, sellC} {
		if out.Qty.LessThan(c.MinQty) {
			out.Reason = fmt.Sprintf("quantity %s below %s minimum size %s", out.Qty, c.Venue, c.MinQty)
			out.Qty = decimal.Zero
			return out
		}
	}
	if n := out.Qty.Mul(buyPx); n.LessThan(buyC.MinNotional) {
		out.Reason = fmt.Sprintf("buy notional %s below %s minimum %s", n, sr.BuyVenue, buyC.MinNotional)
		out.Qty = decimal.Zero
		return out
	}
	if n := out.Qty.Mul(sellPx); n.LessThan(sellC.MinNotional) {
		out.Reason = fmt.Sprintf("sell notional %s below %s minimum %s", n, sr.SellVenue, sellC.MinNotional)
		out.Qty = decimal.Zero
		return out
	}
	return out
}

// FloorToStep rounds qty down to a multiple of step. A step <= 0 leaves qty
// unchanged.
func FloorToStep(qty, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return qty
	}
	return qty.Div(step).Floor().Mul(step)
}
