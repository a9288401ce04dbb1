package arbitrage

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFloorToStep(t *testing.T) {
	tests := []struct {
		qty, step, want string
	}{
		{"0.99900099", "0.0001", "0.999"},
		{"0.99900099", "0.001", "0.999"},
		{"1.23456", "0.01", "1.23"},
		{"0.0009", "0.001", "0"},
		{"1.5", "0", "1.5"},
		{"1.5", "-1", "1.5"},
	}
	for _, tt := range tests {
		got := FloorToStep(d(tt.qty), d(tt.step))
		if !got.Equal(d(tt.want)) {
			t.Errorf("FloorToStep(%s, %s) = %s, want %s", tt.qty, tt.step, got, tt.want)
		}
	}
}

func TestFloorToStepIdempotent(t *testing.T) {
	steps := []string{"0.1", "0.001", "0.00001", "5"}
	for _, s := range steps {
		step := d(s)
		once := FloorToStep(d("12.3456789"), step)
		twice := FloorToStep(once, step)
		if !once.Equal(twice) {
			t.Errorf("step %s: %s != %s", s, once, twice)
		}
	}
}

func TestSizeScenario(t *testing.T) {
	s := NewSizer(d("100"),
		domain.MarketConstraint{Venue: domain.VenueOKX, StepSize: d("0.0001"), MinNotional: d("10")},
		domain.MarketConstraint{Venue: domain.VenueBinance, StepSize: d("0.001"), MinNotional: d("10")},
	)
	got := s.Size(domain.SpreadResult{
		SellVenue: domain.VenueBinance,
		BuyVenue:  domain.VenueOKX,
		SellPrice: 100.5,
		BuyPrice:  100.1,
	})
	if !got.Valid() {
		t.Fatalf("expected valid sizing, reason %q", got.Reason)
	}
	if !got.BuyQty.Equal(d("0.999")) {
		t.Errorf("BuyQty = %s, want 0.9990", got.BuyQty)
	}
	if !got.SellQty.Equal(d("0.999")) {
		t.Errorf("SellQty = %s, want 0.999", got.SellQty)
	}
	if !got.Qty.Equal(d("0.999")) {
		t.Errorf("Qty = %s, want 0.999", got.Qty)
	}
}

func TestSizeTakesSmallerLeg(t *testing.T) {
	s := NewSizer(d("100"),
		domain.MarketConstraint{Venue: domain.VenueOKX, StepSize: d("0.01")},
		domain.MarketConstraint{Venue: domain.VenueBinance, StepSize: d("0.5")},
	)
	got := s.Size(domain.SpreadResult{SellVenue: domain.VenueBinance, BuyVenue: domain.VenueOKX, SellPrice: 41, BuyPrice: 40})
	// target 2.5: okx 2.5, binance 2.5
	if !got.Qty.Equal(d("2.5")) {
		t.Fatalf("Qty = %s, want 2.5", got.Qty)
	}

	got = s.Size(domain.SpreadResult{SellVenue: domain.VenueBinance, BuyVenue: domain.VenueOKX, SellPrice: 31, BuyPrice: 30})
	// target 3.333..: okx 3.33, binance 3.0
	if !got.Qty.Equal(d("3")) {
		t.Fatalf("Qty = %s, want 3", got.Qty)
	}
}

func TestSizeMinNotional(t *testing.T) {
	tests := []struct {
		name      string
		buyMin    string
		sellMin   string
		sellPrice float64
		wantValid bool
	}{
		{"both pass", "10", "10", 100.5, true},
		{"buy leg below minimum", "150", "10", 100.5, false},
		{"sell leg below minimum", "10", "100.5", 100.5, false},
		{"sell leg exactly at minimum", "10", "99.9", 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSizer(d("100"),
				domain.MarketConstraint{Venue: domain.VenueOKX, StepSize: d("0.001"), MinNotional: d(tt.buyMin)},
				domain.MarketConstraint{Venue: domain.VenueBinance, StepSize: d("0.001"), MinNotional: d(tt.sellMin)},
			)
			got := s.Size(domain.SpreadResult{
				SellVenue: domain.VenueBinance,
				BuyVenue:  domain.VenueOKX,
				SellPrice: tt.sellPrice,
				BuyPrice:  100.1,
			})
			if got.Valid() != tt.wantValid {
				t.Fatalf("Valid() = %v, want %v (qty %s, reason %q)", got.Valid(), tt.wantValid, got.Qty, got.Reason)
			}
			if !tt.wantValid && !got.Qty.IsZero() {
				t.Fatalf("invalid sizing must carry zero qty, got %s", got.Qty)
			}
		})
	}
}

func TestSizeMinQty(t *testing.T) {
	tests := []struct {
		name      string
		buyMin    string
		sellMin   string
		wantValid bool
	}{
		{"no minimum", "0", "0", true},
		{"exactly at minimum", "0.999", "0", true},
		{"buy venue minimum above qty", "1", "0", false},
		{"sell venue minimum above qty", "0", "1.5", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSizer(d("100"),
				domain.MarketConstraint{Venue: domain.VenueOKX, StepSize: d("0.001"), MinQty: d(tt.buyMin)},
				domain.MarketConstraint{Venue: domain.VenueBinance, StepSize: d("0.001"), MinQty: d(tt.sellMin)},
			)
			// 100 / 100.1 floors to 0.999 on both venues.
			got := s.Size(domain.SpreadResult{
				SellVenue: domain.VenueBinance,
				BuyVenue:  domain.VenueOKX,
				SellPrice: 100.5,
				BuyPrice:  100.1,
			})
			if got.Valid() != tt.wantValid {
				t.Fatalf("Valid() = %v, want %v (qty %s, reason %q)", got.Valid(), tt.wantValid, got.Qty, got.Reason)
			}
			if !tt.wantValid && !strings.Contains(got.Reason, "minimum size") {
				t.Fatalf("Reason = %q", got.Reason)
			}
		})
	}
}

func TestSizeRoundsToZero(t *testing.T) {
	s := NewSizer(d("1"),
		domain.MarketConstraint{Venue: domain.VenueOKX, StepSize: d("0.001")},
		domain.MarketConstraint{Venue: domain.VenueBinance, StepSize: d("0.001")},
	)
	got := s.Size(domain.SpreadResult{SellVenue: domain.VenueBinance, BuyVenue: domain.VenueOKX, SellPrice: 30001, BuyPrice: 30000})
	if got.Valid() || !got.Qty.IsZero() {
		t.Fatalf("expected zero qty, got %s", got.Qty)
	}
}

func TestSizeMissingConstraint(t *testing.T) {
	s := NewSizer(d("100"), domain.MarketConstraint{Venue: domain.VenueOKX, StepSize: d("0.001")})
	got := s.Size(domain.SpreadResult{SellVenue: domain.VenueBinance, BuyVenue: domain.VenueOKX, SellPrice: 101, BuyPrice: 100})
	if got.Valid() {
		t.Fatalf("missing constraint must not size a trade")
	}
}
