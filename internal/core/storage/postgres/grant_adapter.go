package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stride-lab/project-stride/internal/core/rank"
	"github.com/stride-lab/project-stride/internal/core/storage"
)

const (
	queryGrantExists = `
		SELECT EXISTS (
			SELECT 1 FROM rank_reward_grant
			WHERE period_kind = $1 AND period_id = $2 AND category = $3 AND user_id = $4
		)
	`

	queryInsertGrant = `
		INSERT INTO rank_reward_grant
			(period_kind, period_id, category, user_id, rank, reward_json, grant_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
)

// GrantAdapter implements storage.GrantLedger on PostgreSQL. The unique index
// on (period_kind, period_id, category, user_id) is the exactly-once
// enforcement point; the adapter only translates the violation into
// storage.ErrGrantExists.
type GrantAdapter struct {
	db *sql.DB
}

// NewGrantAdapter creates a GrantAdapter sharing the given connection pool.
func NewGrantAdapter(db *sql.DB) *GrantAdapter {
	return &GrantAdapter{db: db}
}

// Exists reports whether a grant record is already present for key.
func (a *GrantAdapter) Exists(ctx context.Context, key rank.Key) (bool, error) {
	var exists bool
	err := a.db.QueryRowContext(ctx, queryGrantExists,
		int(key.Kind), key.PeriodID, int(key.Category), key.UserID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check grant %v: %w", key, err)
	}
	return exists, nil
}

// Insert writes the grant record, surfacing storage.ErrGrantExists when a
// concurrent claim already recorded one for the same key.
func (a *GrantAdapter) Insert(ctx context.Context, rec storage.GrantRecord) error {
	_, err := a.db.ExecContext(ctx, queryInsertGrant,
		int(rec.Key.Kind), rec.Key.PeriodID, int(rec.Key.Category), rec.Key.UserID,
		rec.Rank, rec.RewardJSON, rec.GrantRef, rec.GrantedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrGrantExists
		}
		return fmt.Errorf("insert grant %v: %w", rec.Key, err)
	}
	return nil
}
