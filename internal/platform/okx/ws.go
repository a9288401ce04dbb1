package okx

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// heartbeatInterval keeps the public socket under OKX's 30s idle cutoff.
const heartbeatInterval = 20 * time.Second

// Adapter implements feed.Adapter for the public tickers channel.
type Adapter struct {
	instrument string
	instID     string
	url        string
}

// NewAdapter creates an adapter for instrument on the public endpoint wsURL,
// e.g. "wss://ws.okx.com:8443/ws/v5/public".
func NewAdapter(wsURL, instrument string) (*Adapter, error) {
	id, err := InstID(instrument)
	if err != nil {
		return nil, err
	}
	return &Adapter{instrument: instrument, instID: id, url: wsURL}, nil
}

func (a *Adapter) Venue() domain.Venue { return domain.VenueOKX }

func (a *Adapter) URL() string { return a.url }

type subscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

// Subscriptions returns the tickers subscribe request.
func (a *Adapter) Subscriptions() ([][]byte, error) {
	msg, err := json.Marshal(subscribeRequest{
		Op:   "subscribe",
		Args: []subscribeArg{{Channel: "tickers", InstID: a.instID}},
	})
	if err != nil {
		return nil, err
	}
	return [][]byte{msg}, nil
}

// Heartbeat returns the text keepalive OKX expects on idle connections.
func (a *Adapter) Heartbeat() (time.Duration, []byte) {
	return heartbeatInterval, []byte("ping")
}

type tickerPush struct {
	Arg  subscribeArg `json:"arg"`
	Data []ticker     `json:"data"`
}

type ticker struct {
	InstID string `json:"instId"`
	BidPx  string `json:"bidPx"`
	BidSz  string `json:"bidSz"`
	AskPx  string `json:"askPx"`
	AskSz  string `json:"askSz"`
	Ts     string `json:"ts"`
}

// Parse decodes a tickers push. Heartbeat replies, subscribe acks and
// error events carry no data and are dropped.
func (a *Adapter) Parse(raw []byte, received time.Time) (domain.Quote, bool) {
	if bytes.Equal(raw, []byte("pong")) {
		return domain.Quote{}, false
	}
	var msg tickerPush
	if err := json.Unmarshal(raw, &msg); err != nil || len(msg.Data) == 0 {
		return domain.Quote{}, false
	}
	d := msg.Data[0]
	if d.InstID != "" && d.InstID != a.instID {
		return domain.Quote{}, false
	}

	bid, err := strconv.ParseFloat(d.BidPx, 64)
	if err != nil {
		return domain.Quote{}, false
	}
	ask, err := strconv.ParseFloat(d.AskPx, 64)
	if err != nil {
		return domain.Quote{}, false
	}

	q := domain.Quote{
		Venue:      domain.VenueOKX,
		Instrument: a.instrument,
		Bid:        bid,
		Ask:        ask,
		BidSize:    parseOptional(d.BidSz),
		AskSize:    parseOptional(d.AskSz),
		ObservedAt: received,
	}
	if ms, err := strconv.ParseInt(d.Ts, 10, 64); err == nil && ms > 0 {
		q.ObservedAt = time.UnixMilli(ms)
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
