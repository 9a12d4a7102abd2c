package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClocked[K comparable, V any](t *testing.T) (*Cache[K, V], *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	c := New[K, V]()
	c.now = func() time.Time { return now }
	return c, &now
}

func TestGetOrComputeHitWithinTTL(t *testing.T) {
	c, now := newClocked[string, int](t)

	calls := 0
	compute := func() (int, error) { calls++; return 42, nil }

	v, hit, err := c.GetOrCompute("k", time.Minute, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 42, v)

	*now = now.Add(30 * time.Second)
	v, hit, err = c.GetOrCompute("k", time.Minute, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls, "compute must not run again within ttl")
}

func TestGetOrComputeRecomputesAfterExpiry(t *testing.T) {
	c, now := newClocked[string, int](t)

	calls := 0
	compute := func() (int, error) { calls++; return calls, nil }

	_, _, err := c.GetOrCompute("k", time.Minute, compute)
	require.NoError(t, err)

	*now = now.Add(time.Minute + time.Second)
	v, hit, err := c.GetOrCompute("k", time.Minute, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, calls)
}

func TestGetOrComputeKeysAreIndependent(t *testing.T) {
	c, _ := newClocked[int, string](t)

	a, _, err := c.GetOrCompute(1, time.Minute, func() (string, error) { return "one", nil })
	require.NoError(t, err)
	b, _, err := c.GetOrCompute(2, time.Minute, func() (string, error) { return "two", nil })
	require.NoError(t, err)

	assert.Equal(t, "one", a)
	assert.Equal(t, "two", b)
	assert.Equal(t, 2, c.Len())
}

func TestComputeErrorNotCached(t *testing.T) {
	c, _ := newClocked[string, int](t)

	boom := errors.New("boom")
	_, _, err := c.GetOrCompute("k", time.Minute, func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, hit, err := c.GetOrCompute("k", time.Minute, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)
}

func TestClearIsNoopSafe(t *testing.T) {
	c, _ := newClocked[string, int](t)

	assert.Equal(t, 0, c.Clear(), "clearing an empty cache is fine")

	_, _, err := c.GetOrCompute("k", time.Minute, func() (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, c.Clear())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.Clear())
}
