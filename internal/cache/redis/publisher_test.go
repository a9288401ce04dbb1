package redis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func TestEncodeOpportunity(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	raw, err := encodeOpportunity(domain.Opportunity{
		ID:         "abc",
		Timestamp:  at,
		Instrument: "BTC/USDT",
		SellVenue:  domain.VenueBinance,
		BuyVenue:   domain.VenueOKX,
		SellPrice:  100.5,
		BuyPrice:   100.1,
		Fraction:   0.004,
		Profitable: false,
	})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got["type"] != "opportunity" || got["id"] != "abc" || got["symbol"] != "BTC/USDT" {
		t.Fatalf("payload = %s", raw)
	}
	if got["timestamp"] != float64(1700000000123) {
		t.Fatalf("timestamp = %v", got["timestamp"])
	}
	// profitable=false must still be present.
	if p, ok := got["profitable"]; !ok || p != false {
		t.Fatalf("profitable = %v, %v", p, ok)
	}
}

func TestEncodeMaxSpread(t *testing.T) {
	raw, err := encodeMaxSpread(domain.MaxSpreadRecord{
		Timestamp:  time.UnixMilli(1),
		Instrument: "BTC/USDT",
		SellVenue:  domain.VenueOKX,
		BuyVenue:   domain.VenueBinance,
		Fraction:   0.01,
	})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got["type"] != "max_spread" || got["sellVenue"] != "okx" || got["spread"] != 0.01 {
		t.Fatalf("payload = %s", raw)
	}
	if _, ok := got["id"]; ok {
		t.Fatal("max spread payload must not carry an id")
	}
	if _, ok := got["profitable"]; ok {
		t.Fatal("max spread payload must not carry profitable")
	}
}
