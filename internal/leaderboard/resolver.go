// Package leaderboard serves the read path: top-N views and single
// participant ranks, through the two-tier cache or straight from the store.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/stride-lab/project-stride/internal/cache"
	"github.com/stride-lab/project-stride/internal/core/rank"
	"github.com/stride-lab/project-stride/internal/core/storage"
	"github.com/stride-lab/project-stride/pkg/metrics"
)

// AuthoritativeReader computes ranks straight from the aggregation store,
// bypassing every cache tier. Settlement depends on this type and nothing
// else: routing a claim through cached reads would silently weaken the
// exactly-once guarantee, so the trusted path is a distinct type rather than
// a flag.
type AuthoritativeReader struct {
	store storage.BoardStore
}

// NewAuthoritativeReader creates a reader over the given store.
func NewAuthoritativeReader(store storage.BoardStore) *AuthoritativeReader {
	return &AuthoritativeReader{store: store}
}

// TopN returns the ranked top n of a scope.
func (r *AuthoritativeReader) TopN(ctx context.Context, scope rank.Scope, n int) ([]rank.Entry, error) {
	rows, err := r.store.TopN(ctx, scope, n)
	if err != nil {
		return nil, fmt.Errorf("resolve top %d of %v: %w", n, scope, err)
	}
	return rank.Rank(rows), nil
}

// RankOf returns one participant's score and competition rank, computed as
// 1 + (count of strictly greater scores) without materializing a full sort.
// Returns storage.ErrNotFound when the participant has no score.
func (r *AuthoritativeReader) RankOf(ctx context.Context, key rank.Key) (rank.Entry, error) {
	row, err := r.store.Score(ctx, key)
	if err != nil {
		return rank.Entry{}, err
	}
	greater, err := r.store.CountGreater(ctx, key.Scope, row.Score)
	if err != nil {
		return rank.Entry{}, fmt.Errorf("resolve rank of %v: %w", key, err)
	}
	return rank.Entry{UserID: key.UserID, Score: row.Score, Rank: rank.RankFromCount(greater)}, nil
}

// Resolver is the cached read path. Results may be stale by up to the
// configured TTLs; that staleness window is an accepted tradeoff on the hot
// read path, never on settlement.
type Resolver struct {
	*AuthoritativeReader
	cache  *cache.TwoTier
	topTTL time.Duration
	meTTL  time.Duration
	group  singleflight.Group
	nowFn  func() time.Time
}

// NewResolver creates a Resolver over the store and cache.
func NewResolver(store storage.BoardStore, c *cache.TwoTier, topTTL, meTTL time.Duration) *Resolver {
	return &Resolver{
		AuthoritativeReader: NewAuthoritativeReader(store),
		cache:               c,
		topTTL:              topTTL,
		meTTL:               meTTL,
		nowFn:               func() time.Time { return time.Now().UTC() },
	}
}

// TopN consults the cache first; on miss it recomputes from the store and
// populates both tiers. Concurrent misses for the same key collapse into a
// single recompute.
func (r *Resolver) TopN(ctx context.Context, scope rank.Scope, n int) ([]rank.Entry, error) {
	key := cache.TopKey(scope.Kind, scope.PeriodID, scope.Category, n)

	if payload, ok := r.cache.Get(ctx, key); ok {
		var entries []rank.Entry
		if err := json.Unmarshal(payload, &entries); err == nil {
			return entries, nil
		}
		// Undecodable entry: fall through and recompute.
	}
	metrics.CacheMisses.Inc()

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		entries, err := r.AuthoritativeReader.TopN(ctx, scope, n)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(entries); err == nil {
			r.cache.Set(ctx, key, payload, r.topTTL)
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]rank.Entry), nil
}

// RankOf consults the cache first; on miss it recomputes and caches only
// found entries; a cache miss never means "score is zero".
func (r *Resolver) RankOf(ctx context.Context, rkey rank.Key) (rank.Entry, error) {
	key := cache.MeKey(rkey.Kind, rkey.PeriodID, rkey.Category, rkey.UserID)

	if payload, ok := r.cache.Get(ctx, key); ok {
		var entry rank.Entry
		if err := json.Unmarshal(payload, &entry); err == nil {
			return entry, nil
		}
	}
	metrics.CacheMisses.Inc()

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		entry, err := r.AuthoritativeReader.RankOf(ctx, rkey)
		if err != nil {
			return rank.Entry{}, err
		}
		if payload, err := json.Marshal(entry); err == nil {
			r.cache.Set(ctx, key, payload, r.meTTL)
		}
		return entry, nil
	})
	if err != nil {
		return rank.Entry{}, err
	}
	return v.(rank.Entry), nil
}
