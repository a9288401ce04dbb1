package okx

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func TestInstID(t *testing.T) {
	if got, err := InstID("btc/usdt"); err != nil || got != "BTC-USDT" {
		t.Fatalf("InstID = %q, %v", got, err)
	}
	if _, err := InstID("BTC-USDT"); err == nil {
		t.Fatal("expected error for non-canonical instrument")
	}
}

func TestAdapterSubscription(t *testing.T) {
	a, err := NewAdapter("wss://ws.okx.com:8443/ws/v5/public", "BTC/USDT")
	if err != nil {
		t.Fatal(err)
	}
	subs, err := a.Subscriptions()
	if err != nil || len(subs) != 1 {
		t.Fatalf("Subscriptions = %v, %v", subs, err)
	}
	var got map[string]any
	if err := json.Unmarshal(subs[0], &got); err != nil {
		t.Fatal(err)
	}
	want := `{"op":"subscribe","args":[{"channel":"tickers","instId":"BTC-USDT"}]}`
	if string(subs[0]) != want {
		t.Fatalf("subscription = %s, want %s", subs[0], want)
	}
	interval, payload := a.Heartbeat()
	if interval != 20*time.Second || string(payload) != "ping" {
		t.Fatalf("heartbeat = %v %q", interval, payload)
	}
}

func TestAdapterParse(t *testing.T) {
	a, _ := NewAdapter("wss://example", "BTC/USDT")
	received := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	push := `{"arg":{"channel":"tickers","instId":"BTC-USDT"},"data":[{"instType":"SPOT","instId":"BTC-USDT","last":"100.15","bidPx":"100.1","bidSz":"0.5","askPx":"100.2","askSz":"0.75","ts":"1700000000123"}]}`
	q, ok := a.Parse([]byte(push), received)
	if !ok {
		t.Fatal("valid ticker rejected")
	}
	if q.Venue != domain.VenueOKX || q.Instrument != "BTC/USDT" {
		t.Fatalf("identity = %s %s", q.Venue, q.Instrument)
	}
	if q.Bid != 100.1 || q.Ask != 100.2 || q.BidSize != 0.5 || q.AskSize != 0.75 {
		t.Fatalf("quote = %+v", q)
	}
	if !q.ObservedAt.Equal(time.UnixMilli(1700000000123)) {
		t.Fatalf("ObservedAt = %v", q.ObservedAt)
	}

	q, ok = a.Parse([]byte(`{"data":[{"instId":"BTC-USDT","bidPx":"1","askPx":"2"}]}`), received)
	if !ok || !q.ObservedAt.Equal(received) {
		t.Fatalf("ticker without ts: ok=%v observedAt=%v", ok, q.ObservedAt)
	}

	for _, raw := range []string{
		`pong`,
		`{"event":"subscribe","arg":{"channel":"tickers","instId":"BTC-USDT"},"connId":"a4d3ae55"}`,
		`{"event":"error","code":"60012","msg":"Invalid request"}`,
		`{"data":[]}`,
		`{"data":[{"instId":"ETH-USDT","bidPx":"1","askPx":"2"}]}`,
		`{"data":[{"instId":"BTC-USDT","bidPx":"","askPx":"2"}]}`,
	} {
		if _, ok := a.Parse([]byte(raw), received); ok {
			t.Errorf("Parse(%s) accepted a non-quote message", raw)
		}
	}
}
