package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL. The
// open_position table holds at most one row.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

var _ domain.PositionStore = (*PositionStore)(nil)

const positionSelectCols = `symbol, entry_price, quantity, position_size, entry_time, position_type, order_id, real_trade`

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	err := row.Scan(
		&p.Symbol, &p.EntryPrice, &p.Quantity,
		&p.PositionSize, &p.EntryTime, &p.Type,
		&p.OrderID, &p.RealTrade,
	)
	if err != nil {
		return domain.Position{}, err
	}
	return p, nil
}

// Get returns the open position, or domain.ErrNotFound when the account is flat.
func (s *PositionStore) Get(ctx context.Context) (domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM open_position`
	pos, err := scanPositionRow(s.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position: %w", err)
	}
	return pos, nil
}

// Set replaces the open position with pos.
func (s *PositionStore) Set(ctx context.Context, pos domain.Position) error {
	const query = `
		INSERT INTO open_position
			(singleton, symbol, entry_price, quantity, position_size, entry_time, position_type, order_id, real_trade)
		VALUES
			(TRUE, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (singleton) DO UPDATE SET
			symbol        = EXCLUDED.symbol,
			entry_price   = EXCLUDED.entry_price,
			quantity      = EXCLUDED.quantity,
			position_size = EXCLUDED.position_size,
			entry_time    = EXCLUDED.entry_time,
			position_type = EXCLUDED.position_type,
			order_id      = EXCLUDED.order_id,
			real_trade    = EXCLUDED.real_trade`
	_, err := s.pool.Exec(ctx, query,
		pos.Symbol, pos.EntryPrice, pos.Quantity,
		pos.PositionSize, pos.EntryTime, pos.Type,
		pos.OrderID, pos.RealTrade,
	)
	if err != nil {
		return fmt.Errorf("postgres: set position %s: %w", pos.Symbol, err)
	}
	return nil
}

// Clear removes the open position. Clearing a flat account is a no-op.
func (s *PositionStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM open_position`); err != nil {
		return fmt.Errorf("postgres: clear position: %w", err)
	}
	return nil
}
