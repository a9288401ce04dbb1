package domain

import (
	"math"
	"time"
)

// Quote is the best bid/ask observed on one venue. Sizes are zero when the
// feed does not publish them.
type Quote struct {
	Venue      Venue
	Instrument string
	Bid        float64
	Ask        float64
	BidSize    float64
	AskSize    float64
	ObservedAt time.Time
}

// Complete reports whether both sides carry a usable price.
func (q Quote) Complete() bool {
	return validPrice(q.Bid) && validPrice(q.Ask)
}

// Age returns how old the quote is at now.
func (q Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.ObservedAt)
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// QuotePair is a consistent read of both venues' latest quotes.
type QuotePair struct {
	A Quote
	B Quote
}
