package rc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-buzz/delegation-manager/pkg/hive"
	"github.com/d-buzz/delegation-manager/rc"
)

func TestEstimator(t *testing.T) {
	t.Parallel()

	t.Run("it fetches the cost on first use", func(t *testing.T) {
		t.Parallel()

		chain := newFakeResourceReader()
		clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		est := rc.NewEstimator(chain, clock, time.Hour)

		cost, err := est.CommentCost(context.Background())

		require.NoError(t, err)
		assert.Positive(t, cost)
		assert.Equal(t, 1, chain.calls)
	})

	t.Run("it serves the cached cost inside the freshness window", func(t *testing.T) {
		t.Parallel()

		chain := newFakeResourceReader()
		clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		est := rc.NewEstimator(chain, clock, time.Hour)

		first, err := est.CommentCost(context.Background())
		require.NoError(t, err)

		clock.now = clock.now.Add(30 * time.Minute)
		second, err := est.CommentCost(context.Background())

		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, chain.calls, "cached cost should not refetch")
	})

	t.Run("it refetches once the cache expires", func(t *testing.T) {
		t.Parallel()

		chain := newFakeResourceReader()
		clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		est := rc.NewEstimator(chain, clock, time.Hour)

		_, err := est.CommentCost(context.Background())
		require.NoError(t, err)

		clock.now = clock.now.Add(2 * time.Hour)
		_, err = est.CommentCost(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 2, chain.calls)
	})

	t.Run("it surfaces chain failures without caching them", func(t *testing.T) {
		t.Parallel()

		chain := newFakeResourceReader()
		chain.err = errors.New("node down")
		clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		est := rc.NewEstimator(chain, clock, time.Hour)

		_, err := est.CommentCost(context.Background())
		require.Error(t, err)

		chain.err = nil
		cost, err := est.CommentCost(context.Background())

		require.NoError(t, err)
		assert.Positive(t, cost)
	})
}

// fakeResourceReader serves static market parameters and counts fetches
type fakeResourceReader struct {
	params map[string]hive.ResourceParams
	pools  map[string]hive.ResourcePool
	calls  int
	err    error
}

func newFakeResourceReader() *fakeResourceReader {
	return &fakeResourceReader{
		params: testResourceParams(),
		pools:  testResourcePools(),
	}
}

func (f *fakeResourceReader) GetResourceParams(context.Context) (map[string]hive.ResourceParams, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.params, nil
}

func (f *fakeResourceReader) GetResourcePools(context.Context) (map[string]hive.ResourcePool, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pools, nil
}

func (f *fakeResourceReader) GetDynamicGlobalProperties(context.Context) (*hive.DynamicGlobalProperties, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &hive.DynamicGlobalProperties{
		TotalVestingFundHive: "180000000.000 HIVE",
		TotalVestingShares:   "300000000000.000000 VESTS",
	}, nil
}

// fakeClock implements the Clock interface for deterministic testing
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}
