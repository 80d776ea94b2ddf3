package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// WatchlistStore implements domain.WatchlistStore using PostgreSQL.
type WatchlistStore struct {
	pool *pgxpool.Pool
}

// NewWatchlistStore creates a new WatchlistStore backed by the given
// connection pool.
func NewWatchlistStore(pool *pgxpool.Pool) *WatchlistStore {
	return &WatchlistStore{pool: pool}
}

var _ domain.WatchlistStore = (*WatchlistStore)(nil)

const watchlistSelectCols = `symbol, last_price, added_at`

func scanWatchlistRows(rows pgx.Rows) ([]domain.WatchlistEntry, error) {
	var entries []domain.WatchlistEntry
	for rows.Next() {
		var e domain.WatchlistEntry
		if err := rows.Scan(&e.Symbol, &e.LastPrice, &e.AddedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Add inserts a watchlist entry. Re-adding an existing symbol refreshes its
// stored price but keeps the original added_at.
func (s *WatchlistStore) Add(ctx context.Context, entry domain.WatchlistEntry) error {
	const query = `
		INSERT INTO watchlist (symbol, last_price, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE SET last_price = EXCLUDED.last_price`
	_, err := s.pool.Exec(ctx, query, entry.Symbol, entry.LastPrice, entry.AddedAt)
	if err != nil {
		return fmt.Errorf("postgres: add watchlist symbol %s: %w", entry.Symbol, err)
	}
	return nil
}

// Remove deletes a symbol from the watchlist. Removing an unknown symbol
// returns domain.ErrNotFound.
func (s *WatchlistStore) Remove(ctx context.Context, symbol string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM watchlist WHERE symbol = $1`, symbol)
	if err != nil {
		return fmt.Errorf("postgres: remove watchlist symbol %s: %w", symbol, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns all watchlist entries ordered by symbol.
func (s *WatchlistStore) List(ctx context.Context) ([]domain.WatchlistEntry, error) {
	query := `SELECT ` + watchlistSelectCols + ` FROM watchlist ORDER BY symbol ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list watchlist: %w", err)
	}
	defer rows.Close()

	entries, err := scanWatchlistRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan watchlist: %w", err)
	}
	return entries, nil
}

// UpdatePrice sets the last observed price for a symbol. Unknown symbols
// return domain.ErrNotFound.
func (s *WatchlistStore) UpdatePrice(ctx context.Context, symbol string, price float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE watchlist SET last_price = $2 WHERE symbol = $1`, symbol, price)
	if err != nil {
		return fmt.Errorf("postgres: update watchlist price %s: %w", symbol, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
