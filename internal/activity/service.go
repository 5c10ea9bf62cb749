// Package activity ingests completed activity units and folds them into the
// per-period leaderboard accumulators.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stride-lab/project-stride/internal/cache"
	"github.com/stride-lab/project-stride/internal/core/period"
	"github.com/stride-lab/project-stride/internal/core/rank"
	"github.com/stride-lab/project-stride/internal/core/storage"
	"github.com/stride-lab/project-stride/pkg/metrics"
)

// Contribution is one completed activity unit. Duplicate submissions of the
// same logical unit are the producer's responsibility to avoid; the engine
// has no dedup key for raw contributions.
type Contribution struct {
	UserID   int64
	Category rank.Category
	Distance decimal.Decimal
	Calories int
	When     time.Time
}

// Validate rejects malformed contributions before any storage round-trip.
func (c Contribution) Validate() error {
	if c.UserID <= 0 {
		return fmt.Errorf("user_id must be positive")
	}
	if !c.Category.Valid() {
		return fmt.Errorf("unknown category %d", int(c.Category))
	}
	if c.Distance.IsNegative() {
		return fmt.Errorf("distance must not be negative")
	}
	if c.Calories < 0 {
		return fmt.Errorf("calories must not be negative")
	}
	return nil
}

// Service applies contributions to the daily rollup and both period boards.
type Service struct {
	boards storage.BoardStore
	daily  storage.DailyStore
	cache  *cache.TwoTier
	nowFn  func() time.Time
}

// NewService creates the aggregation service.
func NewService(boards storage.BoardStore, daily storage.DailyStore, c *cache.TwoTier) *Service {
	return &Service{
		boards: boards,
		daily:  daily,
		cache:  c,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// Apply folds one contribution into the Weekly and Seasonal boards active at
// its timestamp, creating rows as needed. The increments are atomic at the
// storage layer; a failure on either board surfaces so the producer can
// retry the whole contribution. After a successful apply the cached views
// that could now be stale are invalidated best-effort.
func (s *Service) Apply(ctx context.Context, c Contribution) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid contribution: %w", err)
	}

	when := c.When
	if when.IsZero() {
		when = s.nowFn()
	}

	if err := s.daily.AddDaily(ctx, c.UserID, when, c.Category, c.Distance, c.Calories, when); err != nil {
		metrics.ScoreApplyFailures.Inc()
		return fmt.Errorf("apply contribution: %w", err)
	}

	var scopes []rank.Scope
	for _, kind := range []period.Kind{period.Weekly, period.Seasonal} {
		periodID, err := period.PeriodFor(when, kind)
		if err != nil {
			return fmt.Errorf("apply contribution: %w", err)
		}
		scope := rank.Scope{Kind: kind, PeriodID: periodID, Category: c.Category}
		key := rank.Key{Scope: scope, UserID: c.UserID}

		if err := s.boards.IncrementScore(ctx, key, c.Distance, when); err != nil {
			metrics.ScoreApplyFailures.Inc()
			return fmt.Errorf("apply contribution to %s board: %w", kind, err)
		}
		scopes = append(scopes, scope)
	}
	metrics.ScoreApplies.Inc()

	// Invalidation is advisory: the TTLs bound staleness, so a failed
	// invalidation must never fail the aggregation itself.
	for _, scope := range scopes {
		s.cache.Invalidate(ctx, cache.ScopeKeys(scope, c.UserID)...)
	}

	slog.Info("Applied contribution",
		"user_id", c.UserID,
		"category", c.Category.String(),
		"distance", c.Distance.String(),
	)
	return nil
}
