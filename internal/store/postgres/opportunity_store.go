package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// InsertOpportunity stores opp. A replayed id is ignored.
func (s *OpportunityStore) InsertOpportunity(ctx context.Context, opp domain.Opportunity) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO opportunities (id, observed_at, instrument, sell_venue, buy_venue, sell_price, buy_price, spread, profitable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		opp.ID, opp.Timestamp, opp.Instrument, string(opp.SellVenue), string(opp.BuyVenue),
		opp.SellPrice, opp.BuyPrice, opp.Fraction, opp.Profitable,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// InsertMaxSpread appends a new record spread.
func (s *OpportunityStore) InsertMaxSpread(ctx context.Context, rec domain.MaxSpreadRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO max_spreads (observed_at, instrument, sell_venue, buy_venue, sell_price, buy_price, spread)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.Timestamp, rec.Instrument, string(rec.SellVenue), string(rec.BuyVenue),
		rec.SellPrice, rec.BuyPrice, rec.Fraction,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert max spread: %w", err)
	}
	return nil
}

// ListRecent returns the newest opportunities first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, observed_at, instrument, sell_venue, buy_venue, sell_price, buy_price, spread, profitable
		FROM opportunities ORDER BY observed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var list []domain.Opportunity
	for rows.Next() {
		var opp domain.Opportunity
		var sellVenue, buyVenue string
		var observedAt time.Time
		if err := rows.Scan(&opp.ID, &observedAt, &opp.Instrument, &sellVenue, &buyVenue,
			&opp.SellPrice, &opp.BuyPrice, &opp.Fraction, &opp.Profitable); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opp.Timestamp = observedAt.UTC()
		opp.SellVenue = domain.Venue(sellVenue)
		opp.BuyVenue = domain.Venue(buyVenue)
		list = append(list, opp)
	}
	return list, rows.Err()
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
