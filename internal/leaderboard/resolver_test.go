package leaderboard

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stride-lab/project-stride/internal/cache"
	"github.com/stride-lab/project-stride/internal/core/period"
	"github.com/stride-lab/project-stride/internal/core/rank"
	"github.com/stride-lab/project-stride/internal/core/storage"
)

// memStore is an in-memory BoardStore for resolver tests.
type memStore struct {
	mu       sync.Mutex
	rows     map[rank.Key]rank.Row
	topCalls int
}

func newMemStore() *memStore {
	return &memStore{rows: map[rank.Key]rank.Row{}}
}

func (m *memStore) IncrementScore(_ context.Context, key rank.Key, delta decimal.Decimal, when time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok {
		row = rank.Row{UserID: key.UserID, Score: decimal.Zero, UpdatedAt: when}
	}
	row.Score = row.Score.Add(delta)
	row.UpdatedAt = when
	m.rows[key] = row
	return nil
}

func (m *memStore) TopN(_ context.Context, scope rank.Scope, n int) ([]rank.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topCalls++

	var rows []rank.Row
	for key, row := range m.rows {
		if key.Scope == scope {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Score.Equal(rows[j].Score) {
			return rows[i].Score.GreaterThan(rows[j].Score)
		}
		return rows[i].UpdatedAt.Before(rows[j].UpdatedAt)
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

func (m *memStore) Score(_ context.Context, key rank.Key) (rank.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok {
		return rank.Row{}, storage.ErrNotFound
	}
	return row, nil
}

func (m *memStore) CountGreater(_ context.Context, scope rank.Scope, score decimal.Decimal) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for key, row := range m.rows {
		if key.Scope == scope && row.Score.GreaterThan(score) {
			count++
		}
	}
	return count, nil
}

func testScope() rank.Scope {
	return rank.Scope{Kind: period.Weekly, PeriodID: 202635, Category: rank.CategoryRun}
}

func seedStore(t *testing.T, store *memStore, scores map[int64]int64) {
	t.Helper()
	base := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	ids := make([]int64, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		key := rank.Key{Scope: testScope(), UserID: id}
		when := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.IncrementScore(context.Background(), key, decimal.NewFromInt(scores[id]), when))
	}
}

func TestAuthoritativeReader_TopNRanksTies(t *testing.T) {
	store := newMemStore()
	seedStore(t, store, map[int64]int64{1: 500, 2: 400, 3: 400, 4: 100})

	reader := NewAuthoritativeReader(store)
	entries, err := reader.TopN(context.Background(), testScope(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, 2, entries[2].Rank)
	assert.Equal(t, 4, entries[3].Rank)
	// Tie broken by earliest update: user 2 reached 400 before user 3.
	assert.Equal(t, int64(2), entries[1].UserID)
}

func TestAuthoritativeReader_RankOf(t *testing.T) {
	store := newMemStore()
	seedStore(t, store, map[int64]int64{1: 500, 2: 400, 3: 400, 4: 100})

	reader := NewAuthoritativeReader(store)

	entry, err := reader.RankOf(context.Background(), rank.Key{Scope: testScope(), UserID: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Rank)
	assert.True(t, entry.Score.Equal(decimal.NewFromInt(400)))

	entry, err = reader.RankOf(context.Background(), rank.Key{Scope: testScope(), UserID: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, entry.Rank)
}

func TestAuthoritativeReader_RankOfMissing(t *testing.T) {
	reader := NewAuthoritativeReader(newMemStore())

	_, err := reader.RankOf(context.Background(), rank.Key{Scope: testScope(), UserID: 99})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResolver_TopNCachesResult(t *testing.T) {
	store := newMemStore()
	seedStore(t, store, map[int64]int64{1: 500, 2: 300})

	resolver := NewResolver(store, cache.New(nil, 5*time.Second), 15*time.Second, 8*time.Second)

	first, err := resolver.TopN(context.Background(), testScope(), 10)
	require.NoError(t, err)
	second, err := resolver.TopN(context.Background(), testScope(), 10)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.topCalls, "second read must come from cache")
}

func TestResolver_CacheTransparency(t *testing.T) {
	store := newMemStore()
	seedStore(t, store, map[int64]int64{1: 500, 2: 400, 3: 400})

	resolver := NewResolver(store, cache.New(nil, 5*time.Second), 15*time.Second, 8*time.Second)

	cached, err := resolver.TopN(context.Background(), testScope(), 10)
	require.NoError(t, err)
	direct, err := resolver.AuthoritativeReader.TopN(context.Background(), testScope(), 10)
	require.NoError(t, err)

	// A cache hit must return exactly what an uncached computation would.
	assert.Equal(t, direct, cached)
}

func TestResolver_RankOfMissNotCachedAsZero(t *testing.T) {
	store := newMemStore()
	resolver := NewResolver(store, cache.New(nil, 5*time.Second), 15*time.Second, 8*time.Second)

	key := rank.Key{Scope: testScope(), UserID: 7}
	_, err := resolver.RankOf(context.Background(), key)
	require.ErrorIs(t, err, storage.ErrNotFound)

	// Activity arrives after the miss; the next read must see it.
	require.NoError(t, store.IncrementScore(context.Background(), key, decimal.NewFromInt(1000), time.Now().UTC()))

	entry, err := resolver.RankOf(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Rank)
}

func TestResolver_DistinctTopSizesCachedSeparately(t *testing.T) {
	store := newMemStore()
	seedStore(t, store, map[int64]int64{1: 500, 2: 400, 3: 300})

	resolver := NewResolver(store, cache.New(nil, 5*time.Second), 15*time.Second, 8*time.Second)

	top2, err := resolver.TopN(context.Background(), testScope(), 2)
	require.NoError(t, err)
	top3, err := resolver.TopN(context.Background(), testScope(), 3)
	require.NoError(t, err)

	assert.Len(t, top2, 2)
	assert.Len(t, top3, 3)
	assert.Equal(t, 2, store.topCalls)
}
