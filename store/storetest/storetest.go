// Package storetest provides a conformance suite shared by every
// store.Store backend.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huffmsa/nuts/store"
)

// Harness describes a backend under test.
type Harness struct {
	// New returns an empty store.
	New func(t *testing.T) store.Store

	// Advance moves the backend's clock forward so expiring keys lapse.
	Advance func(d time.Duration)
}

// Run executes the conformance suite against h.
func Run(t *testing.T, h Harness) {
	t.Helper()

	t.Run("KV", func(t *testing.T) { testKV(t, h) })
	t.Run("Expiry", func(t *testing.T) { testExpiry(t, h) })
	t.Run("Sets", func(t *testing.T) { testSets(t, h) })
	t.Run("SPopExclusive", func(t *testing.T) { testSPopExclusive(t, h) })
	t.Run("SortedSets", func(t *testing.T) { testSortedSets(t, h) })
	t.Run("Hashes", func(t *testing.T) { testHashes(t, h) })
}

func testKV(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	set, err := s.SetNX(ctx, "lease", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = s.SetNX(ctx, "lease", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, set, "second SetNX must not overwrite")

	v, ok, err := s.Get(ctx, "lease")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	extended, err := s.ExtendIfEqual(ctx, "lease", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, extended, "non-holder must not extend")

	extended, err = s.ExtendIfEqual(ctx, "lease", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)

	deleted, err := s.DeleteIfEqual(ctx, "lease", "b")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = s.DeleteIfEqual(ctx, "lease", "a")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, ok, err = s.Get(ctx, "lease")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetEX(ctx, "hb", "1", time.Minute))
	require.NoError(t, s.Delete(ctx, "hb"))
	_, ok, err = s.Get(ctx, "hb")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testExpiry(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()

	set, err := s.SetNX(ctx, "lease", "a", 2*time.Second)
	require.NoError(t, err)
	require.True(t, set)

	h.Advance(1 * time.Second)
	extended, err := s.ExtendIfEqual(ctx, "lease", "a", 2*time.Second)
	require.NoError(t, err)
	require.True(t, extended)

	h.Advance(1500 * time.Millisecond)
	_, ok, err := s.Get(ctx, "lease")
	require.NoError(t, err)
	assert.True(t, ok, "extended lease must survive past its original expiry")

	h.Advance(1 * time.Second)
	_, ok, err = s.Get(ctx, "lease")
	require.NoError(t, err)
	assert.False(t, ok, "lease must lapse once its ttl passes")

	set, err = s.SetNX(ctx, "lease", "b", time.Second)
	require.NoError(t, err)
	assert.True(t, set, "expired key must be acquirable")
}

func testSets(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()

	n, err := s.SAdd(ctx, "pending", "x", "y")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = s.SAdd(ctx, "pending", "x")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "duplicate member is deduplicated")

	ok, err := s.SIsMember(ctx, "pending", "y")
	require.NoError(t, err)
	assert.True(t, ok)

	members, err := s.SMembers(ctx, "pending")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y"}, members)

	n, err = s.SRem(ctx, "pending", "y", "nope")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	m, ok, err := s.SPop(ctx, "pending")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x", m)

	_, ok, err = s.SPop(ctx, "pending")
	require.NoError(t, err)
	assert.False(t, ok, "empty set pops nothing")
}

func testSPopExclusive(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()

	const total = 200
	for i := range total {
		_, err := s.SAdd(ctx, "pending", fmt.Sprintf("job-%d", i))
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				m, ok, err := s.SPop(ctx, "pending")
				if err != nil || !ok {
					return
				}
				mu.Lock()
				seen[m]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, total)
	for m, n := range seen {
		assert.Equal(t, 1, n, "member %s popped more than once", m)
	}
}

func testSortedSets(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()

	require.NoError(t, s.ZAdd(ctx, "scheduled", "late", 300))
	require.NoError(t, s.ZAdd(ctx, "scheduled", "early", 100))
	require.NoError(t, s.ZAdd(ctx, "scheduled", "mid", 200))

	added, err := s.ZAddNX(ctx, "scheduled", "early", 999)
	require.NoError(t, err)
	assert.False(t, added)

	score, ok, err := s.ZScore(ctx, "scheduled", "early")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 100, score, 0.001, "ZAddNX must not overwrite")

	require.NoError(t, s.ZAdd(ctx, "scheduled", "early", 150))
	score, _, err = s.ZScore(ctx, "scheduled", "early")
	require.NoError(t, err)
	assert.InDelta(t, 150, score, 0.001, "ZAdd overwrites")

	due, err := s.ZRangeByScore(ctx, "scheduled", 0, 250)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "early", due[0].Value)
	assert.Equal(t, "mid", due[1].Value)

	all, err := s.ZRange(ctx, "scheduled")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "late", all[2].Value)

	n, err := s.ZRem(ctx, "scheduled", "mid", "nope")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, ok, err = s.ZScore(ctx, "scheduled", "mid")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testHashes(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()

	require.NoError(t, s.HSet(ctx, "running", "w1|AddOne", `{"a":1}`))
	require.NoError(t, s.HSet(ctx, "running", "w2|AddOne", `{"a":2}`))

	v, ok, err := s.HGet(ctx, "running", "w1|AddOne")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, v)

	all, err := s.HGetAll(ctx, "running")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	n, err := s.HDel(ctx, "running", "w1|AddOne", "nope")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, ok, err = s.HGet(ctx, "running", "w1|AddOne")
	require.NoError(t, err)
	assert.False(t, ok)

	empty, err := s.HGetAll(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
