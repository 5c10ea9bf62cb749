// Package cache provides the two-tier leaderboard cache: a fast process-local
// tier and a shared tier visible to all service instances. Entries are
// derived, disposable projections of board state, never authoritative. A miss
// always means "recompute", never "zero".
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/stride-lab/project-stride/internal/core/period"
	"github.com/stride-lab/project-stride/internal/core/rank"
	"github.com/stride-lab/project-stride/internal/core/storage"
	"github.com/stride-lab/project-stride/pkg/metrics"
)

// HotTopSizes are the top-N sizes invalidated eagerly on every score write.
// Other sizes simply age out within their TTL.
var HotTopSizes = []int{10, 20, 50, 100}

// TwoTier layers the local tier over the shared one. The local TTL is capped
// below the entry TTL so instance-local staleness stays shorter than the
// cross-instance window. Shared-tier failures are logged and absorbed: the
// cache is advisory and must never fail a read or a write path.
type TwoTier struct {
	local       *gocache.Cache
	shared      storage.SharedCache
	localMaxTTL time.Duration
}

// New creates a TwoTier cache. shared may be nil, leaving only the local tier.
func New(shared storage.SharedCache, localMaxTTL time.Duration) *TwoTier {
	return &TwoTier{
		local:       gocache.New(localMaxTTL, 2*localMaxTTL),
		shared:      shared,
		localMaxTTL: localMaxTTL,
	}
}

// Get returns the cached payload for key, consulting the local tier first and
// promoting shared-tier hits into it.
func (c *TwoTier) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := c.local.Get(key); ok {
		metrics.CacheHits.WithLabelValues("local").Inc()
		return v.([]byte), true
	}

	if c.shared == nil {
		return nil, false
	}
	payload, ok, err := c.shared.Get(ctx, key)
	if err != nil {
		slog.Warn("[Cache] Shared tier read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	metrics.CacheHits.WithLabelValues("shared").Inc()
	c.local.Set(key, payload, c.localTTL(c.localMaxTTL))
	return payload, true
}

// Set stores the payload in both tiers. ttl applies to the shared tier; the
// local tier gets at most localMaxTTL.
func (c *TwoTier) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	c.local.Set(key, payload, c.localTTL(ttl))

	if c.shared == nil {
		return
	}
	if err := c.shared.Set(ctx, key, payload, ttl); err != nil {
		slog.Warn("[Cache] Shared tier write failed", "key", key, "error", err)
	}
}

// Invalidate drops the given keys from both tiers, best-effort.
func (c *TwoTier) Invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		c.local.Delete(key)
		if c.shared == nil {
			continue
		}
		if err := c.shared.Delete(ctx, key); err != nil {
			slog.Warn("[Cache] Shared tier invalidation failed", "key", key, "error", err)
		}
	}
}

func (c *TwoTier) localTTL(ttl time.Duration) time.Duration {
	if ttl < c.localMaxTTL {
		return ttl
	}
	return c.localMaxTTL
}

// TopKey is the cache key for a board's top-N projection.
func TopKey(kind period.Kind, periodID int, category rank.Category, n int) string {
	return fmt.Sprintf("rank:top:%d:%d:%d:%d", int(kind), periodID, int(category), n)
}

// MeKey is the cache key for a single participant's rank projection.
func MeKey(kind period.Kind, periodID int, category rank.Category, userID int64) string {
	return fmt.Sprintf("rank:me:%d:%d:%d:%d", int(kind), periodID, int(category), userID)
}

// ScopeKeys lists every key that could be stale for a scope after a write for
// userID: the hot top sizes plus the writer's own rank entry.
func ScopeKeys(scope rank.Scope, userID int64) []string {
	keys := make([]string, 0, len(HotTopSizes)+1)
	for _, n := range HotTopSizes {
		keys = append(keys, TopKey(scope.Kind, scope.PeriodID, scope.Category, n))
	}
	keys = append(keys, MeKey(scope.Kind, scope.PeriodID, scope.Category, userID))
	return keys
}
