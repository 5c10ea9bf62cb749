package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stride-lab/project-stride/internal/core/rank"
	"github.com/stride-lab/project-stride/internal/core/storage"
)

const (
	// One conditional statement the engine evaluates atomically: under N
	// concurrent increments to the same key the final total is the sum of all
	// deltas, with no read-modify-write window at the application tier.
	queryUpsertScore = `
		INSERT INTO rank_board (period_kind, period_id, category, user_id, total_score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (period_kind, period_id, category, user_id)
		DO UPDATE SET
			total_score = rank_board.total_score + EXCLUDED.total_score,
			updated_at  = EXCLUDED.updated_at
	`

	queryInsertScore = `
		INSERT INTO rank_board (period_kind, period_id, category, user_id, total_score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	querySelectScore = `
		SELECT total_score, updated_at
		FROM rank_board
		WHERE period_kind = $1 AND period_id = $2 AND category = $3 AND user_id = $4
	`

	queryCASUpdateScore = `
		UPDATE rank_board
		SET total_score = $5, updated_at = $6
		WHERE period_kind = $1 AND period_id = $2 AND category = $3 AND user_id = $4
		  AND total_score = $7
	`

	queryTopN = `
		SELECT user_id, total_score, updated_at
		FROM rank_board
		WHERE period_kind = $1 AND period_id = $2 AND category = $3
		ORDER BY total_score DESC, updated_at ASC
		LIMIT $4
	`

	queryCountGreater = `
		SELECT COUNT(*)
		FROM rank_board
		WHERE period_kind = $1 AND period_id = $2 AND category = $3
		  AND total_score > $4
	`
)

const (
	pqUniqueViolation = "23505"

	casMaxRetries   = 5
	casBackoffBase  = 10 * time.Millisecond
	casBackoffLimit = 200 * time.Millisecond
)

// BoardAdapter implements storage.BoardStore on PostgreSQL.
//
// With nativeUpsert enabled it performs a single INSERT ... ON CONFLICT
// increment. With it disabled it falls back to a bounded compare-and-swap
// retry loop, the documented weaker path for engines without upsert syntax.
type BoardAdapter struct {
	db           *sql.DB
	nativeUpsert bool
}

// NewBoardAdapter creates a BoardAdapter sharing the given connection pool.
func NewBoardAdapter(db *sql.DB, nativeUpsert bool) *BoardAdapter {
	if !nativeUpsert {
		slog.Warn("[BoardAdapter] Native upsert disabled, using compare-and-swap fallback")
	}
	return &BoardAdapter{db: db, nativeUpsert: nativeUpsert}
}

// IncrementScore atomically adds delta to the running total for key.
func (a *BoardAdapter) IncrementScore(ctx context.Context, key rank.Key, delta decimal.Decimal, when time.Time) error {
	if a.nativeUpsert {
		_, err := a.db.ExecContext(ctx, queryUpsertScore,
			int(key.Kind), key.PeriodID, int(key.Category), key.UserID, delta, when.UTC())
		if err != nil {
			return fmt.Errorf("increment score %v: %w", key, err)
		}
		return nil
	}
	return a.casIncrement(ctx, key, delta, when)
}

// casIncrement is the explicit read-then-conditional-write loop. Every write
// is guarded: the UPDATE only lands on the exact total that was read, and the
// INSERT surfaces a unique violation when another writer created the row
// first. A lost race retries with backoff; exhaustion surfaces as
// storage.ErrContention, never a silent non-atomic update.
func (a *BoardAdapter) casIncrement(ctx context.Context, key rank.Key, delta decimal.Decimal, when time.Time) error {
	for attempt := 0; attempt < casMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := casBackoffBase << (attempt - 1)
			if backoff > casBackoffLimit {
				backoff = casBackoffLimit
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("increment score %v: %w", key, ctx.Err())
			case <-time.After(backoff):
			}
		}

		var currentStr string
		var updatedAt time.Time
		err := a.db.QueryRowContext(ctx, querySelectScore,
			int(key.Kind), key.PeriodID, int(key.Category), key.UserID).
			Scan(&currentStr, &updatedAt)

		if err == sql.ErrNoRows {
			_, err = a.db.ExecContext(ctx, queryInsertScore,
				int(key.Kind), key.PeriodID, int(key.Category), key.UserID, delta, when.UTC())
			if err == nil {
				return nil
			}
			if isUniqueViolation(err) {
				// Another writer created the row; retry as an update.
				continue
			}
			return fmt.Errorf("increment score %v: insert: %w", key, err)
		}
		if err != nil {
			return fmt.Errorf("increment score %v: read: %w", key, err)
		}

		current, err := decimal.NewFromString(currentStr)
		if err != nil {
			return fmt.Errorf("increment score %v: parse total %q: %w", key, currentStr, err)
		}

		res, err := a.db.ExecContext(ctx, queryCASUpdateScore,
			int(key.Kind), key.PeriodID, int(key.Category), key.UserID,
			current.Add(delta), when.UTC(), current)
		if err != nil {
			return fmt.Errorf("increment score %v: update: %w", key, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("increment score %v: check update: %w", key, err)
		}
		if affected == 1 {
			return nil
		}
		// Total moved underneath us; retry against the fresh value.
	}

	slog.Error("[BoardAdapter] CAS increment exhausted retries",
		"kind", key.Kind, "period_id", key.PeriodID, "category", key.Category, "user_id", key.UserID)
	return fmt.Errorf("increment score %v: %w", key, storage.ErrContention)
}

// TopN returns up to n rows ordered by score descending, earliest update first
// among ties.
func (a *BoardAdapter) TopN(ctx context.Context, scope rank.Scope, n int) ([]rank.Row, error) {
	rows, err := a.db.QueryContext(ctx, queryTopN,
		int(scope.Kind), scope.PeriodID, int(scope.Category), n)
	if err != nil {
		return nil, fmt.Errorf("query top %d of %v: %w", n, scope, err)
	}
	defer rows.Close()

	var out []rank.Row
	for rows.Next() {
		var row rank.Row
		var scoreStr string
		if err := rows.Scan(&row.UserID, &scoreStr, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan board row: %w", err)
		}
		score, err := decimal.NewFromString(scoreStr)
		if err != nil {
			return nil, fmt.Errorf("parse total %q: %w", scoreStr, err)
		}
		row.Score = score
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate board rows: %w", err)
	}
	return out, nil
}

// Score returns one participant's row, or storage.ErrNotFound.
func (a *BoardAdapter) Score(ctx context.Context, key rank.Key) (rank.Row, error) {
	var scoreStr string
	var updatedAt time.Time
	err := a.db.QueryRowContext(ctx, querySelectScore,
		int(key.Kind), key.PeriodID, int(key.Category), key.UserID).
		Scan(&scoreStr, &updatedAt)
	if err == sql.ErrNoRows {
		return rank.Row{}, storage.ErrNotFound
	}
	if err != nil {
		return rank.Row{}, fmt.Errorf("query score %v: %w", key, err)
	}

	score, err := decimal.NewFromString(scoreStr)
	if err != nil {
		return rank.Row{}, fmt.Errorf("parse total %q: %w", scoreStr, err)
	}
	return rank.Row{UserID: key.UserID, Score: score, UpdatedAt: updatedAt}, nil
}

// CountGreater counts rows with a strictly greater score in the scope.
func (a *BoardAdapter) CountGreater(ctx context.Context, scope rank.Scope, score decimal.Decimal) (int, error) {
	var count int
	err := a.db.QueryRowContext(ctx, queryCountGreater,
		int(scope.Kind), scope.PeriodID, int(scope.Category), score).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count greater in %v: %w", scope, err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}
