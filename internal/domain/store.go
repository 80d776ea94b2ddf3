package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// WatchlistStore persists the set of monitored symbols.
type WatchlistStore interface {
	// Add inserts the symbol. Adding a symbol that already exists is a no-op
	// apart from refreshing the stored price.
	Add(ctx context.Context, entry WatchlistEntry) error
	Remove(ctx context.Context, symbol string) error
	List(ctx context.Context) ([]WatchlistEntry, error)
	UpdatePrice(ctx context.Context, symbol string, price float64) error
}

// PositionStore persists the single current position. Get returns
// ErrNotFound when the account is flat.
type PositionStore interface {
	Get(ctx context.Context) (Position, error)
	// Set replaces whatever position row exists with pos.
	Set(ctx context.Context, pos Position) error
	Clear(ctx context.Context) error
}

// TransactionStore persists the append-only trade history.
type TransactionStore interface {
	Append(ctx context.Context, tx Transaction) error
	List(ctx context.Context, opts ListOpts) ([]Transaction, error)
	// ListBefore returns transactions strictly older than cutoff, oldest
	// first, for archival.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]Transaction, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
}

// SettingsStore persists account settings as a singleton row.
type SettingsStore interface {
	Get(ctx context.Context) (AccountSettings, error)
	Update(ctx context.Context, s AccountSettings) error
	// Reset restores the defaults and returns them.
	Reset(ctx context.Context) (AccountSettings, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
