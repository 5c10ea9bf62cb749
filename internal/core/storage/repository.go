package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stride-lab/project-stride/internal/core/rank"
)

// ErrNotFound is returned when a board row does not exist for a key.
var ErrNotFound = errors.New("board row not found")

// ErrGrantExists is returned when a grant record for the same key already
// exists. The unique constraint behind it is what makes settlement
// exactly-once under concurrent claims.
var ErrGrantExists = errors.New("grant already recorded")

// ErrContention is returned when the compare-and-swap increment path exhausts
// its retries. The contribution was applied zero times and may be retried.
var ErrContention = errors.New("increment retries exhausted")

// BoardStore is the durable keyed accumulator backing the leaderboards.
type BoardStore interface {
	// IncrementScore atomically adds delta to the running total for key,
	// creating the row if absent. Concurrent increments to the same key must
	// never lose an update.
	IncrementScore(ctx context.Context, key rank.Key, delta decimal.Decimal, when time.Time) error

	// TopN returns up to n rows of a scope ordered by score descending,
	// ties broken by earliest update.
	TopN(ctx context.Context, scope rank.Scope, n int) ([]rank.Row, error)

	// Score returns the running total for one key, or ErrNotFound.
	Score(ctx context.Context, key rank.Key) (rank.Row, error)

	// CountGreater counts the rows in a scope with a score strictly greater
	// than the given one. Used to compute a single participant's rank without
	// materializing a full sort.
	CountGreater(ctx context.Context, scope rank.Scope, score decimal.Decimal) (int, error)
}

// GrantRecord is a settlement decision already executed. Immutable once
// written; existence for a key is the sole source of truth for "settled".
type GrantRecord struct {
	Key        rank.Key
	Rank       int
	RewardJSON string
	GrantRef   string
	GrantedAt  time.Time
}

// GrantLedger records rewards already issued.
type GrantLedger interface {
	// Exists is a fast-path check only; Insert is what enforces uniqueness.
	Exists(ctx context.Context, key rank.Key) (bool, error)

	// Insert writes the record, returning ErrGrantExists if a record for the
	// same key is already present.
	Insert(ctx context.Context, rec GrantRecord) error
}

// SharedCache is the cross-instance cache tier. Entries are disposable
// projections; callers must treat a miss as "recompute", never as "zero".
type SharedCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// DailyStore accumulates per-day activity totals used for verification and
// replay. The leaderboards never read from it.
type DailyStore interface {
	AddDaily(ctx context.Context, userID int64, day time.Time, category rank.Category,
		distance decimal.Decimal, calories int, when time.Time) error
}

// InventoryStore applies item grants to a participant's inventory.
type InventoryStore interface {
	GrantItem(ctx context.Context, userID int64, itemID int, amount int) error
}
