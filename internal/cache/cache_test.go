package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stride-lab/project-stride/internal/core/period"
	"github.com/stride-lab/project-stride/internal/core/rank"
)

// fakeShared is an in-memory stand-in for the shared tier.
type fakeShared struct {
	mu      sync.Mutex
	entries map[string][]byte
	failing bool
	sets    int
	deletes int
}

func newFakeShared() *fakeShared {
	return &fakeShared{entries: map[string][]byte{}}
}

func (f *fakeShared) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, false, errors.New("shared tier down")
	}
	v, ok := f.entries[key]
	return v, ok, nil
}

func (f *fakeShared) Set(_ context.Context, key string, payload []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("shared tier down")
	}
	f.entries[key] = payload
	f.sets++
	return nil
}

func (f *fakeShared) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.failing {
		return errors.New("shared tier down")
	}
	delete(f.entries, key)
	return nil
}

func TestTwoTier_SetPopulatesBothTiers(t *testing.T) {
	shared := newFakeShared()
	c := New(shared, 5*time.Second)

	c.Set(context.Background(), "k", []byte("v"), 15*time.Second)

	got, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, 1, shared.sets)
}

func TestTwoTier_SharedHitPromotedToLocal(t *testing.T) {
	shared := newFakeShared()
	shared.entries["k"] = []byte("warm")
	c := New(shared, 5*time.Second)

	got, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, []byte("warm"), got)

	// A shared-tier outage no longer matters once the entry is local.
	shared.failing = true
	got, ok = c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, []byte("warm"), got)
}

func TestTwoTier_MissWhenBothTiersEmpty(t *testing.T) {
	c := New(newFakeShared(), 5*time.Second)

	_, ok := c.Get(context.Background(), "absent")
	assert.False(t, ok)
}

func TestTwoTier_SharedFailureIsAbsorbed(t *testing.T) {
	shared := newFakeShared()
	shared.failing = true
	c := New(shared, 5*time.Second)

	// Neither set, get, nor invalidate may propagate shared-tier errors.
	c.Set(context.Background(), "k", []byte("v"), 15*time.Second)
	c.Invalidate(context.Background(), "k")
	_, ok := c.Get(context.Background(), "other")
	assert.False(t, ok)
}

func TestTwoTier_InvalidateClearsBothTiers(t *testing.T) {
	shared := newFakeShared()
	c := New(shared, 5*time.Second)

	c.Set(context.Background(), "k", []byte("v"), 15*time.Second)
	c.Invalidate(context.Background(), "k")

	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	_, ok = shared.entries["k"]
	assert.False(t, ok)
}

func TestTwoTier_NilSharedIsLocalOnly(t *testing.T) {
	c := New(nil, 5*time.Second)

	c.Set(context.Background(), "k", []byte("v"), 15*time.Second)
	got, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	c.Invalidate(context.Background(), "k")
	_, ok = c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestScopeKeys(t *testing.T) {
	scope := rank.Scope{Kind: period.Weekly, PeriodID: 202635, Category: rank.CategoryRun}

	keys := ScopeKeys(scope, 7)
	require.Len(t, keys, len(HotTopSizes)+1)
	assert.Contains(t, keys, "rank:top:1:202635:0:100")
	assert.Contains(t, keys, "rank:me:1:202635:0:7")
}
