package membership

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/open-builders/exmatrikulator-bot/internal/domain/member"
	"github.com/open-builders/exmatrikulator-bot/internal/testutil"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[int64]domain.Member
	getErr  error
}

func newMapCache() *mapCache { return &mapCache{entries: map[int64]domain.Member{}} }

func (c *mapCache) GetByID(_ context.Context, id int64) (*domain.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	m, ok := c.entries[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (c *mapCache) Set(_ context.Context, m *domain.Member) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[m.ID] = *m
	return nil
}

func TestLookup_UnknownMemberIsNil(t *testing.T) {
	svc := NewService(testutil.NewMembers(), nil)

	m, err := svc.Lookup(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, "unknown", domain.State(m))
}

func TestLookup_StoreErrorPropagates(t *testing.T) {
	repo := testutil.NewMembers()
	repo.GetErr = testutil.ErrInjected
	svc := NewService(repo, newMapCache())

	_, err := svc.Lookup(context.Background(), 42)
	require.ErrorIs(t, err, testutil.ErrInjected)
}

func TestLookup_CachesOnlyVerified(t *testing.T) {
	repo := testutil.NewMembers(
		domain.Member{ID: 1, Verified: true},
		domain.Member{ID: 2, Verified: false},
	)
	cache := newMapCache()
	svc := NewService(repo, cache)
	ctx := context.Background()

	m, err := svc.Lookup(ctx, 1)
	require.NoError(t, err)
	assert.True(t, m.Verified)

	m, err = svc.Lookup(ctx, 2)
	require.NoError(t, err)
	assert.False(t, m.Verified)

	assert.Contains(t, cache.entries, int64(1))
	assert.NotContains(t, cache.entries, int64(2))
}

func TestLookup_CacheFailureFallsThrough(t *testing.T) {
	repo := testutil.NewMembers(domain.Member{ID: 1, Verified: true})
	cache := newMapCache()
	cache.getErr = testutil.ErrInjected
	svc := NewService(repo, cache)

	m, err := svc.Lookup(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, m.Verified)
}

func TestMarkVerified_CreatesRecordAndIsIdempotent(t *testing.T) {
	repo := testutil.NewMembers()
	cache := newMapCache()
	svc := NewService(repo, cache)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.MarkVerified(ctx, 42))
		}()
	}
	wg.Wait()

	m, err := repo.GetByID(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, m.Verified)
	assert.Equal(t, []int64{42, 42}, repo.Marked())
	assert.True(t, cache.entries[42].Verified)
}

func TestMarkVerified_StoreErrorPropagates(t *testing.T) {
	repo := testutil.NewMembers()
	repo.MarkErr = testutil.ErrInjected
	cache := newMapCache()
	svc := NewService(repo, cache)

	require.ErrorIs(t, svc.MarkVerified(context.Background(), 42), testutil.ErrInjected)
	assert.Empty(t, cache.entries)
}
