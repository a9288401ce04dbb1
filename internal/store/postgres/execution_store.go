package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Insert stores one resolved trade attempt with both legs.
func (s *ExecutionStore) Insert(ctx context.Context, exec domain.TradeExecution) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trade_executions (id, instrument, sell_venue, buy_venue, sell_price, buy_price, spread, qty,
			buy_order_id, buy_error, sell_order_id, sell_error, status, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11, $12, $13, $14, $15)`,
		exec.ID, exec.Instrument, string(exec.Spread.SellVenue), string(exec.Spread.BuyVenue),
		exec.Spread.SellPrice, exec.Spread.BuyPrice, exec.Spread.Fraction, exec.Qty.String(),
		exec.Buy.OrderID, exec.Buy.Err, exec.Sell.OrderID, exec.Sell.Err,
		string(exec.Status), exec.StartedAt, exec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade execution %s: %w", exec.ID, err)
	}
	return nil
}

var _ domain.ExecutionStore = (*ExecutionStore)(nil)
