package rc

import (
	"context"
	"sync"
	"time"

	"github.com/d-buzz/delegation-manager/pkg/hive"
)

// DefaultRefreshInterval controls how long a cached comment cost stays
// fresh. Pricing parameters drift slowly, so hourly is plenty.
const DefaultRefreshInterval = time.Hour

// ResourceReader supplies resource pricing state from the chain.
type ResourceReader interface {
	GetResourceParams(ctx context.Context) (map[string]hive.ResourceParams, error)
	GetResourcePools(ctx context.Context) (map[string]hive.ResourcePool, error)
	GetDynamicGlobalProperties(ctx context.Context) (*hive.DynamicGlobalProperties, error)
}

// Clock abstracts time for production and testing
type Clock interface {
	Now() time.Time
}

// Estimator caches the per-comment RC cost process-wide. Refreshes inside
// the freshness window are ignored; this is a timestamp guard, not a lock
// held across the fetch.
type Estimator struct {
	chain    ResourceReader
	clock    Clock
	interval time.Duration

	mu        sync.Mutex
	cost      int64
	fetchedAt time.Time
}

// NewEstimator creates an Estimator over the given chain reader.
func NewEstimator(chain ResourceReader, clock Clock, interval time.Duration) *Estimator {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Estimator{
		chain:    chain,
		clock:    clock,
		interval: interval,
	}
}

// CommentCost returns the cached typical-comment cost, fetching it first
// if the cache has expired or was never filled.
func (e *Estimator) CommentCost(ctx context.Context) (int64, error) {
	e.mu.Lock()
	cost, fetchedAt := e.cost, e.fetchedAt
	e.mu.Unlock()

	if !fetchedAt.IsZero() && e.clock.Now().Before(fetchedAt.Add(e.interval)) {
		return cost, nil
	}
	return e.Refresh(ctx)
}

// Refresh recomputes the comment cost from fresh market parameters and
// stores it in the cache.
func (e *Estimator) Refresh(ctx context.Context) (int64, error) {
	params, err := e.chain.GetResourceParams(ctx)
	if err != nil {
		return 0, err
	}
	pools, err := e.chain.GetResourcePools(ctx)
	if err != nil {
		return 0, err
	}
	props, err := e.chain.GetDynamicGlobalProperties(ctx)
	if err != nil {
		return 0, err
	}

	cost := CommentCost(params, pools, RegenRate(props))

	e.mu.Lock()
	e.cost = cost
	e.fetchedAt = e.clock.Now()
	e.mu.Unlock()

	return cost, nil
}
