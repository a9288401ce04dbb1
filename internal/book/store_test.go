package book

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func newTestStore() *Store {
	return NewStore(domain.VenueBinance, domain.VenueOKX, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestIsFresh(t *testing.T) {
	s := newTestStore()
	base := time.Unix(1_700_000_000, 0)
	window := time.Second

	if s.IsFresh(domain.VenueBinance, base, window) {
		t.Fatalf("empty slot must not be fresh")
	}

	s.Update(domain.Quote{Venue: domain.VenueBinance, Bid: 100, Ask: 100.1, ObservedAt: base})

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"same instant", base, true},
		{"exactly at window", base.Add(window), true},
		{"one ns past window", base.Add(window + time.Nanosecond), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.IsFresh(domain.VenueBinance, tt.now, window); got != tt.want {
				t.Errorf("IsFresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshotIncomplete(t *testing.T) {
	s := newTestStore()
	now := time.Now()

	if _, ok := s.Snapshot(); ok {
		t.Fatalf("snapshot of empty store must be incomplete")
	}

	s.Update(domain.Quote{Venue: domain.VenueBinance, Bid: 100, Ask: 100.1, ObservedAt: now})
	if _, ok := s.Snapshot(); ok {
		t.Fatalf("snapshot with one venue must be incomplete")
	}

	s.Update(domain.Quote{Venue: domain.VenueOKX, Bid: 99.5, ObservedAt: now})
	if _, ok := s.Snapshot(); ok {
		t.Fatalf("snapshot with missing ask must be incomplete")
	}

	s.Update(domain.Quote{Venue: domain.VenueOKX, Bid: 99.5, Ask: 99.6, ObservedAt: now})
	pair, ok := s.Snapshot()
	if !ok {
		t.Fatalf("expected complete snapshot")
	}
	if pair.A.Venue != domain.VenueBinance || pair.B.Venue != domain.VenueOKX {
		t.Fatalf("unexpected pair order: %+v", pair)
	}
	if pair.B.Ask != 99.6 {
		t.Errorf("B.Ask = %v, want 99.6", pair.B.Ask)
	}
}

func TestUpdateOverwritesUnconditionally(t *testing.T) {
	s := newTestStore()
	newer := time.Unix(1_700_000_010, 0)
	older := newer.Add(-5 * time.Second)

	s.Update(domain.Quote{Venue: domain.VenueOKX, Bid: 1, Ask: 2, ObservedAt: newer})
	s.Update(domain.Quote{Venue: domain.VenueOKX, Bid: 3, Ask: 4, ObservedAt: older})

	q, ok := s.Get(domain.VenueOKX)
	if !ok {
		t.Fatalf("quote missing")
	}
	if q.Bid != 3 || !q.ObservedAt.Equal(older) {
		t.Fatalf("late update should win, got %+v", q)
	}
}
