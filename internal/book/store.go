// Package book holds the latest quote per venue.
package book

import (
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// Store keeps one latest-wins quote slot per venue. No history is retained
// and a missing side is never filled in.
type Store struct {
	mu     sync.RWMutex
	a, b   domain.Venue
	quotes map[domain.Venue]domain.Quote
	logger *slog.Logger
}

// NewStore creates a Store for venue A and venue B.
func NewStore(a, b domain.Venue, logger *slog.Logger) *Store {
	return &Store{
		a:      a,
		b:      b,
		quotes: make(map[domain.Venue]domain.Quote, 2),
		logger: logger.With(slog.String("component", "book")),
	}
}

// Update replaces the stored quote for q.Venue unconditionally. A quote older
// than the one it replaces still wins; the regression is logged at debug.
func (s *Store) Update(q domain.Quote) {
	s.mu.Lock()
	prev, had := s.quotes[q.Venue]
	s.quotes[q.Venue] = q
	s.mu.Unlock()

	if had && q.ObservedAt.Before(prev.ObservedAt) {
		s.logger.Debug("out-of-order quote overwrote newer one",
			slog.String("venue", string(q.Venue)),
			slog.Time("prev_observed_at", prev.ObservedAt),
			slog.Time("observed_at", q.ObservedAt),
		)
	}
}

// Get returns the latest quote for venue.
func (s *Store) Get(venue domain.Venue) (domain.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[venue]
	return q, ok
}

// IsFresh reports whether a quote exists for venue and now-ObservedAt <= window.
func (s *Store) IsFresh(venue domain.Venue, now time.Time, window time.Duration) bool {
	q, ok := s.Get(venue)
	return ok && q.Age(now) <= window
}

// Snapshot returns both latest quotes. ok is false when either venue has never
// been populated or lacks a bid or ask.
func (s *Store) Snapshot() (domain.QuotePair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qa, okA := s.quotes[s.a]
	qb, okB := s.quotes[s.b]
	pair := domain.QuotePair{A: qa, B: qb}
	if !okA || !okB || !qa.Complete() || !qb.Complete() {
		return pair, false
	}
	return pair, true
}

// All returns a copy of every stored quote keyed by venue.
func (s *Store) All() map[domain.Venue]domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.Venue]domain.Quote, len(s.quotes))
	for v, q := range s.quotes {
		out[v] = q
	}
	return out
}
