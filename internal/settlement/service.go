// Package settlement executes reward claims: it resolves a participant's
// final rank for a closed period, matches it against the tier table, records
// the grant, and delivers the reward items exactly once.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stride-lab/project-stride/internal/core/period"
	"github.com/stride-lab/project-stride/internal/core/rank"
	"github.com/stride-lab/project-stride/internal/core/storage"
	"github.com/stride-lab/project-stride/internal/inventory"
	"github.com/stride-lab/project-stride/internal/leaderboard"
	"github.com/stride-lab/project-stride/internal/tiers"
	"github.com/stride-lab/project-stride/pkg/metrics"
)

// Claim outcome reasons surfaced to callers when no reward was granted.
const (
	ReasonAlreadySettled = "already settled"
	ReasonNoActivity     = "no activity in period"
	ReasonNoReward       = "no reward for rank"
)

// Result is the outcome of one claim.
type Result struct {
	Granted bool
	Reason  string

	// Set only when Granted.
	Rank      int
	Rewards   []tiers.RewardItem
	GrantRef  string
	Delivered bool
}

// Service runs the claim algorithm. Rank resolution goes through the
// authoritative reader only; a cached rank must never decide a grant.
type Service struct {
	reader  *leaderboard.AuthoritativeReader
	ledger  storage.GrantLedger
	tiers   tiers.Provider
	granter inventory.Granter
	nowFn   func() time.Time
}

// NewService creates the settlement service.
func NewService(reader *leaderboard.AuthoritativeReader, ledger storage.GrantLedger,
	provider tiers.Provider, granter inventory.Granter) *Service {
	return &Service{
		reader:  reader,
		ledger:  ledger,
		tiers:   provider,
		granter: granter,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// ClaimWeekly settles the most recently completed ISO week for one
// participant and category.
func (s *Service) ClaimWeekly(ctx context.Context, userID int64, category rank.Category) (Result, error) {
	periodID, err := period.LastSettledWeek(s.nowFn(), s.tiers.WeeklySettlementDay())
	if err != nil {
		metrics.Claims.WithLabelValues(metrics.ClaimError).Inc()
		return Result{}, fmt.Errorf("resolve claimable week: %w", err)
	}
	scope := rank.Scope{Kind: period.Weekly, PeriodID: periodID, Category: category}
	return s.claim(ctx, rank.Key{Scope: scope, UserID: userID})
}

// ClaimSeason settles the current season for one participant and category.
// Seasons settle in real time: the rank at claim time is the rank rewarded.
func (s *Service) ClaimSeason(ctx context.Context, userID int64, category rank.Category) (Result, error) {
	scope := rank.Scope{
		Kind:     period.Seasonal,
		PeriodID: period.CurrentSeason(s.nowFn()),
		Category: category,
	}
	return s.claim(ctx, rank.Key{Scope: scope, UserID: userID})
}

// claim runs the five-step settlement for one key. The ledger insert is the
// linearization point: whichever concurrent claim inserts first wins, every
// other one observes ErrGrantExists. Delivery runs after the insert, so a
// crashed delivery leaves a ledger record to reconcile against instead of a
// reward that could be claimed twice.
func (s *Service) claim(ctx context.Context, key rank.Key) (Result, error) {
	settled, err := s.ledger.Exists(ctx, key)
	if err != nil {
		metrics.Claims.WithLabelValues(metrics.ClaimError).Inc()
		return Result{}, fmt.Errorf("check grant ledger for %v: %w", key, err)
	}
	if settled {
		metrics.Claims.WithLabelValues(metrics.ClaimAlreadySettled).Inc()
		return Result{Reason: ReasonAlreadySettled}, nil
	}

	entry, err := s.reader.RankOf(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.Claims.WithLabelValues(metrics.ClaimNoActivity).Inc()
		return Result{Reason: ReasonNoActivity}, nil
	}
	if err != nil {
		metrics.Claims.WithLabelValues(metrics.ClaimError).Inc()
		return Result{}, fmt.Errorf("resolve settlement rank for %v: %w", key, err)
	}
	if entry.Score.Sign() <= 0 {
		metrics.Claims.WithLabelValues(metrics.ClaimNoActivity).Inc()
		return Result{Reason: ReasonNoActivity}, nil
	}

	tier, ok := tiers.Match(s.tiers.TiersFor(key.Category, key.Kind), entry.Rank)
	if !ok || len(tier.Rewards) == 0 {
		metrics.Claims.WithLabelValues(metrics.ClaimNoReward).Inc()
		return Result{Reason: ReasonNoReward, Rank: entry.Rank}, nil
	}

	rewardJSON, err := json.Marshal(tier.Rewards)
	if err != nil {
		metrics.Claims.WithLabelValues(metrics.ClaimError).Inc()
		return Result{}, fmt.Errorf("encode rewards for %v: %w", key, err)
	}

	rec := storage.GrantRecord{
		Key:        key,
		Rank:       entry.Rank,
		RewardJSON: string(rewardJSON),
		GrantRef:   uuid.NewString(),
		GrantedAt:  s.nowFn(),
	}
	if err := s.ledger.Insert(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrGrantExists) {
			// Lost the race to a concurrent claim for the same key.
			metrics.Claims.WithLabelValues(metrics.ClaimAlreadySettled).Inc()
			return Result{Reason: ReasonAlreadySettled}, nil
		}
		metrics.Claims.WithLabelValues(metrics.ClaimError).Inc()
		return Result{}, fmt.Errorf("record grant for %v: %w", key, err)
	}

	result := Result{
		Granted:   true,
		Rank:      entry.Rank,
		Rewards:   tier.Rewards,
		GrantRef:  rec.GrantRef,
		Delivered: true,
	}
	if err := s.granter.Grant(ctx, key.UserID, tier.Rewards); err != nil {
		// The grant is recorded and will not be granted again; the reward
		// items need reconciliation against the ledger record.
		metrics.DeliveryFailures.Inc()
		slog.Error("Reward delivery failed after grant was recorded",
			"grant_ref", rec.GrantRef,
			"user_id", key.UserID,
			"period_kind", key.Kind.String(),
			"period_id", key.PeriodID,
			"category", key.Category.String(),
			"error", err,
		)
		result.Delivered = false
	}

	metrics.Claims.WithLabelValues(metrics.ClaimGranted).Inc()
	slog.Info("Settled reward claim",
		"grant_ref", rec.GrantRef,
		"user_id", key.UserID,
		"period_kind", key.Kind.String(),
		"period_id", key.PeriodID,
		"category", key.Category.String(),
		"rank", entry.Rank,
		"delivered", result.Delivered,
	)
	return result, nil
}
