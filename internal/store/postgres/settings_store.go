package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lachlanbr/shortbot/internal/domain"
)

// SettingsStore implements domain.SettingsStore using PostgreSQL. The
// account_settings table holds a single row seeded by the initial migration.
type SettingsStore struct {
	pool *pgxpool.Pool
}

// NewSettingsStore creates a new SettingsStore backed by the given connection
// pool.
func NewSettingsStore(pool *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

var _ domain.SettingsStore = (*SettingsStore)(nil)

const settingsSelectCols = `initial_balance, current_balance, take_profit_pct, stop_loss_pct, position_size_pct`

func scanSettingsRow(row pgx.Row) (domain.AccountSettings, error) {
	var s domain.AccountSettings
	err := row.Scan(
		&s.InitialBalance, &s.CurrentBalance,
		&s.TakeProfitPct, &s.StopLossPct, &s.PositionSizePct,
	)
	if err != nil {
		return domain.AccountSettings{}, err
	}
	return s, nil
}

// Get returns the current account settings. A missing row (a database that
// skipped the seed migration) falls back to the defaults.
func (s *SettingsStore) Get(ctx context.Context) (domain.AccountSettings, error) {
	query := `SELECT ` + settingsSelectCols + ` FROM account_settings`
	settings, err := scanSettingsRow(s.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DefaultSettings(), nil
		}
		return domain.AccountSettings{}, fmt.Errorf("postgres: get settings: %w", err)
	}
	return settings, nil
}

// Update replaces the account settings row.
func (s *SettingsStore) Update(ctx context.Context, settings domain.AccountSettings) error {
	const query = `
		INSERT INTO account_settings
			(singleton, initial_balance, current_balance, take_profit_pct, stop_loss_pct, position_size_pct, updated_at)
		VALUES
			(TRUE, $1, $2, $3, $4, $5, NOW())
		ON CONFLICT (singleton) DO UPDATE SET
			initial_balance   = EXCLUDED.initial_balance,
			current_balance   = EXCLUDED.current_balance,
			take_profit_pct   = EXCLUDED.take_profit_pct,
			stop_loss_pct     = EXCLUDED.stop_loss_pct,
			position_size_pct = EXCLUDED.position_size_pct,
			updated_at        = NOW()`
	_, err := s.pool.Exec(ctx, query,
		settings.InitialBalance, settings.CurrentBalance,
		settings.TakeProfitPct, settings.StopLossPct, settings.PositionSizePct,
	)
	if err != nil {
		return fmt.Errorf("postgres: update settings: %w", err)
	}
	return nil
}

// Reset restores the default settings and returns them.
func (s *SettingsStore) Reset(ctx context.Context) (domain.AccountSettings, error) {
	defaults := domain.DefaultSettings()
	if err := s.Update(ctx, defaults); err != nil {
		return domain.AccountSettings{}, fmt.Errorf("postgres: reset settings: %w", err)
	}
	return defaults, nil
}
