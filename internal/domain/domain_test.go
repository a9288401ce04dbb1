package domain

import (
	"errors"
	"math"
	"testing"
)

func TestMinFraction(t *testing.T) {
	cfg := TradeConfig{
		SpreadMinFraction:      0.0030,
		SlippageBufferFraction: 0.0005,
		TakerFeeFraction:       0.0010,
	}
	if got := cfg.MinFraction(); math.Abs(got-0.0055) > 1e-12 {
		t.Fatalf("MinFraction = %v, want 0.0055", got)
	}
}

func TestPct(t *testing.T) {
	cases := map[float64]string{
		0.004016: "0.4016%",
		0:        "0.0000%",
		-0.0001:  "-0.0100%",
	}
	for in, want := range cases {
		if got := Pct(in); got != want {
			t.Errorf("Pct(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestClassifyLegs(t *testing.T) {
	ok := TradeLeg{OrderID: "1"}
	bad := TradeLeg{Err: "rejected"}
	tests := []struct {
		buy, sell TradeLeg
		want      ExecutionStatus
	}{
		{ok, ok, ExecutionFilled},
		{ok, bad, ExecutionPartial},
		{bad, ok, ExecutionPartial},
		{bad, bad, ExecutionFailed},
	}
	for _, tt := range tests {
		if got := ClassifyLegs(tt.buy, tt.sell); got != tt.want {
			t.Errorf("ClassifyLegs(%+v, %+v) = %s, want %s", tt.buy, tt.sell, got, tt.want)
		}
	}
}

func TestParseVenue(t *testing.T) {
	if v, err := ParseVenue(" Binance "); err != nil || v != VenueBinance {
		t.Fatalf("ParseVenue(Binance) = %q, %v", v, err)
	}
	if v, err := ParseVenue("OKX"); err != nil || v != VenueOKX {
		t.Fatalf("ParseVenue(OKX) = %q, %v", v, err)
	}
	if _, err := ParseVenue("kraken"); !errors.Is(err, ErrUnknownVenue) {
		t.Fatalf("ParseVenue(kraken) err = %v, want ErrUnknownVenue", err)
	}
}
