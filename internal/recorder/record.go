package recorder

import (
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

const dateLayout = "2006-01-02T15:04:05.000Z07:00"

// opportunityLine is one line of opportunities.log.
type opportunityLine struct {
	ID         string  `json:"id"`
	Timestamp  int64   `json:"timestamp"`
	Date       string  `json:"date"`
	Symbol     string  `json:"symbol"`
	SellVenue  string  `json:"sellVenue"`
	BuyVenue   string  `json:"buyVenue"`
	SellPrice  float64 `json:"sellPrice"`
	BuyPrice   float64 `json:"buyPrice"`
	Spread     float64 `json:"spread"`
	SpreadPct  string  `json:"spreadPct"`
	Profitable bool    `json:"profitable"`
}

// maxSpreadLine is one line of max-spread.log.
type maxSpreadLine struct {
	Timestamp int64   `json:"timestamp"`
	Date      string  `json:"date"`
	Symbol    string  `json:"symbol"`
	SellVenue string  `json:"sellVenue"`
	BuyVenue  string  `json:"buyVenue"`
	SellPrice float64 `json:"sellPrice"`
	BuyPrice  float64 `json:"buyPrice"`
	Spread    float64 `json:"spread"`
	SpreadPct string  `json:"spreadPct"`
}

func toOpportunityLine(o domain.Opportunity) opportunityLine {
	return opportunityLine{
		ID:         o.ID,
		Timestamp:  o.Timestamp.UnixMilli(),
		Date:       o.Timestamp.UTC().Format(dateLayout),
		Symbol:     o.Instrument,
		SellVenue:  string(o.SellVenue),
		BuyVenue:   string(o.BuyVenue),
		SellPrice:  o.SellPrice,
		BuyPrice:   o.BuyPrice,
		Spread:     o.Fraction,
		SpreadPct:  domain.Pct(o.Fraction),
		Profitable: o.Profitable,
	}
}

func toMaxSpreadLine(r domain.MaxSpreadRecord) maxSpreadLine {
	return maxSpreadLine{
		Timestamp: r.Timestamp.UnixMilli(),
		Date:      r.Timestamp.UTC().Format(dateLayout),
		Symbol:    r.Instrument,
		SellVenue: string(r.SellVenue),
		BuyVenue:  string(r.BuyVenue),
		SellPrice: r.SellPrice,
		BuyPrice:  r.BuyPrice,
		Spread:    r.Fraction,
		SpreadPct: domain.Pct(r.Fraction),
	}
}

func (l maxSpreadLine) record() domain.MaxSpreadRecord {
	return domain.MaxSpreadRecord{
		Timestamp:  time.UnixMilli(l.Timestamp).UTC(),
		Instrument: l.Symbol,
		SellVenue:  domain.Venue(l.SellVenue),
		BuyVenue:   domain.Venue(l.BuyVenue),
		SellPrice:  l.SellPrice,
		BuyPrice:   l.BuyPrice,
		Fraction:   l.Spread,
	}
}
