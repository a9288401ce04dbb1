package domain

import (
	"strconv"
	"time"
)

// SpreadResult is one directional spread: sell on SellVenue at its bid, buy
// on BuyVenue at its ask. Fraction is (SellPrice-BuyPrice)/BuyPrice.
type SpreadResult struct {
	Instrument string
	SellVenue  Venue
	BuyVenue   Venue
	SellPrice  float64
	BuyPrice   float64
	Fraction   float64
}

// Pct formats a fraction as a percentage with four decimals, e.g. "0.4016%".
func Pct(fraction float64) string {
	return strconv.FormatFloat(fraction*100, 'f', 4, 64) + "%"
}

// Opportunity is one actionable evaluation. Append-only, never deduplicated.
type Opportunity struct {
	ID         string
	Timestamp  time.Time
	Instrument string
	SellVenue  Venue
	BuyVenue   Venue
	SellPrice  float64
	BuyPrice   float64
	Fraction   float64
	Profitable bool
}

// MaxSpreadRecord marks a new running maximum of the observed spread. Each
// record's Fraction is strictly greater than the one before it.
type MaxSpreadRecord struct {
	Timestamp  time.Time
	Instrument string
	SellVenue  Venue
	BuyVenue   Venue
	SellPrice  float64
	BuyPrice   float64
	Fraction   float64
}

// NewOpportunity builds an Opportunity from a spread result.
func NewOpportunity(id string, at time.Time, sr SpreadResult, profitable bool) Opportunity {
	return Opportunity{
		ID:         id,
		Timestamp:  at,
		Instrument: sr.Instrument,
		SellVenue:  sr.SellVenue,
		BuyVenue:   sr.BuyVenue,
		SellPrice:  sr.SellPrice,
		BuyPrice:   sr.BuyPrice,
		Fraction:   sr.Fraction,
		Profitable: profitable,
	}
}

// NewMaxSpreadRecord builds a MaxSpreadRecord from a spread result.
func NewMaxSpreadRecord(at time.Time, sr SpreadResult) MaxSpreadRecord {
	return MaxSpreadRecord{
		Timestamp:  at,
		Instrument: sr.Instrument,
		SellVenue:  sr.SellVenue,
		BuyVenue:   sr.BuyVenue,
		SellPrice:  sr.SellPrice,
		BuyPrice:   sr.BuyPrice,
		Fraction:   sr.Fraction,
	}
}
