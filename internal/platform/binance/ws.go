package binance

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// Adapter implements feed.Adapter for the <symbol>@bookTicker stream.
type Adapter struct {
	instrument string
	url        string
}

// NewAdapter builds the stream URL for instrument on wsHost, e.g.
// "wss://stream.binance.com:9443".
func NewAdapter(wsHost, instrument string) (*Adapter, error) {
	sym, err := Symbol(instrument)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		instrument: instrument,
		url:        strings.TrimRight(wsHost, "/") + "/ws/" + strings.ToLower(sym) + "@bookTicker",
	}, nil
}

func (a *Adapter) Venue() domain.Venue { return domain.VenueBinance }

func (a *Adapter) URL() string { return a.url }

// Subscriptions is empty: the stream is selected by the URL path.
func (a *Adapter) Subscriptions() ([][]byte, error) { return nil, nil }

// bookTicker is the raw stream payload. Prices and sizes arrive as strings.
type bookTicker struct {
	Symbol    string `json:"s"`
	Bid       string `json:"b"`
	BidSize   string `json:"B"`
	Ask       string `json:"a"`
	AskSize   string `json:"A"`
	EventTime int64  `json:"E"`
}

// Parse decodes a bookTicker message. The event time is used when present,
// otherwise the local receive time.
func (a *Adapter) Parse(raw []byte, received time.Time) (domain.Quote, bool) {
	var msg bookTicker
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.Quote{}, false
	}
	bid, err := strconv.ParseFloat(msg.Bid, 64)
	if err != nil {
		return domain.Quote{}, false
	}
	ask, err := strconv.ParseFloat(msg.Ask, 64)
	if err != nil {
		return domain.Quote{}, false
	}

	q := domain.Quote{
		Venue:      domain.VenueBinance,
		Instrument: a.instrument,
		Bid:        bid,
		Ask:        ask,
		BidSize:    parseOptional(msg.BidSize),
		AskSize:    parseOptional(msg.AskSize),
		ObservedAt: received,
	}
	if msg.EventTime > 0 {
		q.ObservedAt = time.UnixMilli(msg.EventTime)
	}
	if !q.Complete() {
		return domain.Quote{}, false
	}
	return q, true
}

func parseOptional(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
