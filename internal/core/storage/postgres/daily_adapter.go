package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stride-lab/project-stride/internal/core/rank"
)

const queryUpsertDaily = `
	INSERT INTO player_sport_daily (user_id, day, category, distance_meters, calories, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (user_id, day, category)
	DO UPDATE SET
		distance_meters = player_sport_daily.distance_meters + EXCLUDED.distance_meters,
		calories        = player_sport_daily.calories + EXCLUDED.calories,
		updated_at      = EXCLUDED.updated_at
`

// DailyAdapter implements storage.DailyStore on PostgreSQL. Daily rows exist
// for verification and replay only; the leaderboards never read them.
type DailyAdapter struct {
	db *sql.DB
}

// NewDailyAdapter creates a DailyAdapter sharing the given connection pool.
func NewDailyAdapter(db *sql.DB) *DailyAdapter {
	return &DailyAdapter{db: db}
}

// AddDaily accumulates one activity unit into the participant's daily total.
func (a *DailyAdapter) AddDaily(ctx context.Context, userID int64, day time.Time, category rank.Category,
	distance decimal.Decimal, calories int, when time.Time) error {
	dayOnly := day.UTC().Truncate(24 * time.Hour)
	_, err := a.db.ExecContext(ctx, queryUpsertDaily,
		userID, dayOnly, int(category), distance, calories, when.UTC())
	if err != nil {
		return fmt.Errorf("upsert daily (user=%d day=%s category=%s): %w",
			userID, dayOnly.Format("2006-01-02"), category, err)
	}
	return nil
}
