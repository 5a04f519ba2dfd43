package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/d-buzz/delegation-manager/pkg/clock"
	"github.com/d-buzz/delegation-manager/registry"
)

// Option configures the Service
// ------------------------------------------------
type Option func(*Service)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithSweepInterval sets the revoke-sweep interval
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) { s.sweepInterval = d }
}

// WithPowerCheckInterval sets the standalone delegator-power check interval
func WithPowerCheckInterval(d time.Duration) Option {
	return func(s *Service) { s.powerCheckInterval = d }
}

// WithCostRefreshInterval sets the per-comment RC cost refresh interval
func WithCostRefreshInterval(d time.Duration) Option {
	return func(s *Service) { s.costRefreshInterval = d }
}

// WithReconcileCooldown sets the minimum spacing between reconciliation runs
func WithReconcileCooldown(d time.Duration) Option {
	return func(s *Service) { s.reconcileCooldown = d }
}

// Deps are the collaborators the Service drives.
type Deps struct {
	Store       *registry.Store
	Policy      Policy
	Chain       Chain
	Broadcaster Broadcaster
	Streamer    Streamer
	Feed        Feed
	Costs       CostRefresher
}

// Service runs the two monitoring loops over a shared registry: the
// operation stream feeding grant transitions, and the periodic sweep
// feeding revoke transitions and operational checks.
// ------------------------------------------------------------------
type Service struct {
	store       *registry.Store
	policy      Policy
	chain       Chain
	broadcaster Broadcaster
	streamer    Streamer
	feed        Feed
	costs       CostRefresher

	clock               Clock
	sweepInterval       time.Duration
	powerCheckInterval  time.Duration
	costRefreshInterval time.Duration
	reconcileCooldown   time.Duration

	settings Settings
	locks    *keyLock
	events   chan Event

	lastReconcile time.Time // touched only by the sweep loop
}

// NewService constructs a Service with required dependencies and options
func NewService(deps Deps, settings Settings, opts ...Option) *Service {
	if settings.Referrer == "" {
		settings.Referrer = settings.DelegationAccount
	}
	s := &Service{
		store:               deps.Store,
		policy:              deps.Policy,
		chain:               deps.Chain,
		broadcaster:         deps.Broadcaster,
		streamer:            deps.Streamer,
		feed:                deps.Feed,
		costs:               deps.Costs,
		clock:               clock.SystemClock{},
		sweepInterval:       DefaultSweepInterval,
		powerCheckInterval:  DefaultPowerCheckInterval,
		costRefreshInterval: DefaultCostRefreshInterval,
		reconcileCooldown:   DefaultReconcileCooldown,
		settings:            settings,
		locks:               newKeyLock(),
		events:              make(chan Event, 10),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches both loops and returns the events channel and done channel.
//
// Shutdown pattern:
//  1. Cancel context to request shutdown: cancel()
//  2. Service stops producing events and closes events channel
//  3. Wait for complete shutdown: <-done
func (s *Service) Start(ctx context.Context) (<-chan Event, <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		defer close(s.events)
		defer close(done)
		s.run(ctx)
	}()
	return s.events, done
}

// run bootstraps the registry and drives the loops until cancellation
// ------------------------------------------------------------------
func (s *Service) run(ctx context.Context) {
	feedAccounts, err := s.bootstrap(ctx)
	if err != nil {
		s.events <- BootstrapFailed{Err: fmt.Errorf("%w: %w", ErrBootstrapFailed, err)}
		return
	}
	s.events <- Started{
		FeedAccounts: feedAccounts,
		KnownUsers:   len(s.store.All()),
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		err := s.streamer.StreamOperations(ctx, s.operationHandler(ctx))
		s.events <- StreamStopped{Reason: err}
	}()

	go func() {
		defer wg.Done()
		s.timerLoop(ctx)
	}()

	wg.Wait()
}

// bootstrap merges the referral feed into the stored snapshot: stored
// lifecycle fields win, feed-only accounts start inactive.
func (s *Service) bootstrap(ctx context.Context) (int, error) {
	referred, err := s.feed.GetReferredAccounts(ctx, s.settings.Referrer)
	if err != nil {
		return 0, err
	}

	users := make([]registry.ReferredUser, len(referred))
	for i, r := range referred {
		users[i] = registry.ReferredUser{
			Account:   r.Account,
			Weight:    r.Weight,
			CreatedAt: r.CreatedAt,
		}
	}
	if err := s.store.Merge(users); err != nil {
		return 0, err
	}
	return len(referred), nil
}

// timerLoop multiplexes the three periodic jobs. The first sweep runs
// immediately so a restart repairs state without waiting a full cycle.
func (s *Service) timerLoop(ctx context.Context) {
	s.sweep(ctx)

	sweepCh := s.clock.After(s.sweepInterval)
	powerCh := s.clock.After(s.powerCheckInterval)
	costCh := s.clock.After(s.costRefreshInterval)

	for {
		select {
		case <-ctx.Done():
			s.events <- Shutdown{Reason: ctx.Err()}
			return
		case <-sweepCh:
			s.sweep(ctx)
			sweepCh = s.clock.After(s.sweepInterval)
		case <-powerCh:
			s.checkDelegatorPower(ctx)
			powerCh = s.clock.After(s.powerCheckInterval)
		case <-costCh:
			s.refreshCommentCost(ctx)
			costCh = s.clock.After(s.costRefreshInterval)
		}
	}
}

func (s *Service) refreshCommentCost(ctx context.Context) {
	cost, err := s.costs.Refresh(ctx)
	if err != nil {
		s.events <- CostRefreshError{Err: err}
		return
	}
	s.events <- CostRefreshed{Cost: cost}
}
