package manager_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-buzz/delegation-manager/manager"
	"github.com/d-buzz/delegation-manager/pkg/hive"
	"github.com/d-buzz/delegation-manager/pkg/hiveonboard"
	"github.com/d-buzz/delegation-manager/registry"
)

var testNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func TestBootstrap(t *testing.T) {
	t.Parallel()

	t.Run("it merges the referral feed and reports startup", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.feed.accounts = []hiveonboard.ReferredAccount{
			{Account: "alice", Weight: 300, CreatedAt: testNow.Add(-24 * time.Hour)},
			{Account: "bob", Weight: 300, CreatedAt: testNow.Add(-12 * time.Hour)},
		}

		events := f.run(t)

		started := single[manager.Started](t, events)
		assert.Equal(t, 2, started.FeedAccounts)
		assert.Equal(t, 2, started.KnownUsers)
		assert.ElementsMatch(t, []string{"alice", "bob"}, f.store.Inactive())
	})

	t.Run("it keeps stored lifecycle state over feed data", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, registry.ReferredUser{
			Account:     "alice",
			Status:      registry.StatusGraduated,
			CreatedAt:   testNow.Add(-60 * 24 * time.Hour),
			DelegatedAt: testNow.Add(-50 * 24 * time.Hour),
		})
		f.feed.accounts = []hiveonboard.ReferredAccount{{Account: "alice", Weight: 300}}

		f.run(t)

		u, ok := f.store.Get("alice")
		require.True(t, ok)
		assert.Equal(t, registry.StatusGraduated, u.Status)
	})

	t.Run("it stops when the feed is unavailable", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.feed.err = hiveonboard.ErrFeedUnavailable

		events := f.run(t)

		failed := single[manager.BootstrapFailed](t, events)
		assert.ErrorIs(t, failed.Err, manager.ErrBootstrapFailed)
		assert.ErrorIs(t, failed.Err, hiveonboard.ErrFeedUnavailable)
		assert.Empty(t, eventsOf[manager.Started](events))
	})
}

func TestRegistration(t *testing.T) {
	t.Parallel()

	t.Run("it registers a referred account creation from the stream", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.streamer.ops = []hive.Operation{{
			Kind:      hive.KindAccountCreated,
			Account:   "alice",
			Metadata:  `{"beneficiaries":[{"name":"buzzparty","weight":300,"label":"referrer"}]}`,
			Timestamp: testNow,
		}}

		events := f.run(t)

		registered := single[manager.UserRegistered](t, events)
		assert.Equal(t, "alice", registered.Account)
		assert.Equal(t, 300, registered.Weight)

		u, ok := f.store.Get("alice")
		require.True(t, ok)
		assert.Equal(t, registry.StatusInactive, u.Status)
		assert.Equal(t, testNow, u.CreatedAt)
	})

	t.Run("it ignores creations referred elsewhere", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.streamer.ops = []hive.Operation{{
			Kind:      hive.KindAccountCreated,
			Account:   "alice",
			Metadata:  `{"beneficiaries":[{"name":"someoneelse","weight":300,"label":"referrer"}]}`,
			Timestamp: testNow,
		}}

		events := f.run(t)

		assert.Empty(t, eventsOf[manager.UserRegistered](events))
		_, ok := f.store.Get("alice")
		assert.False(t, ok)
	})

	t.Run("it withholds the registration event when the store write fails", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		dir := filepath.Join(t.TempDir(), "reg")
		require.NoError(t, os.Mkdir(dir, 0o755))
		store, err := registry.Open(filepath.Join(dir, "users.json"))
		require.NoError(t, err)
		f.store = store

		// the store's directory vanishes after bootstrap, so the
		// registration write cannot land
		f.streamer.before = func() { _ = os.RemoveAll(dir) }
		f.streamer.ops = []hive.Operation{{
			Kind:      hive.KindAccountCreated,
			Account:   "alice",
			Metadata:  `{"beneficiaries":[{"name":"buzzparty","weight":300,"label":"referrer"}]}`,
			Timestamp: testNow,
		}}

		events := f.run(t)

		assert.NotEmpty(t, eventsOf[manager.StoreError](events))
		assert.Empty(t, eventsOf[manager.UserRegistered](events), "no registration announcement for a write that failed")
	})

	t.Run("it does not re-register an account known from the feed", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.feed.accounts = []hiveonboard.ReferredAccount{{Account: "alice", Weight: 300}}
		f.streamer.ops = []hive.Operation{{
			Kind:      hive.KindAccountCreated,
			Account:   "alice",
			Metadata:  `{"beneficiaries":[{"name":"buzzparty","weight":300,"label":"referrer"}]}`,
			Timestamp: testNow,
		}}

		events := f.run(t)

		assert.Empty(t, eventsOf[manager.UserRegistered](events))
	})
}

func TestGrant(t *testing.T) {
	t.Parallel()

	t.Run("it delegates to a struggling referred account on activity", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, inactiveUser("alice"))
		f.policy.lowRC["alice"] = true
		f.streamer.ops = []hive.Operation{{Kind: hive.KindComment, Account: "alice", Timestamp: testNow}}

		events := f.run(t)

		granted := single[manager.DelegationGranted](t, events)
		assert.Equal(t, "alice", granted.Account)
		assert.Equal(t, 25.0, granted.Amount)

		// 25 HP at 1000 VESTS/HP
		calls := f.broadcaster.delegateCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, "alice", calls[0].to)
		assert.InDelta(t, 25000.0, calls[0].vests, 1e-6)

		u, _ := f.store.Get("alice")
		assert.Equal(t, registry.StatusDelegated, u.Status)
		assert.Equal(t, testNow, u.DelegatedAt)
		assert.Equal(t, 25.0, u.DelegationAmount)

		assert.Contains(t, f.broadcaster.memosTo("alice"), "Welcome to Hive! We delegated some Hive Power to get you started.")
	})

	t.Run("it skips accounts with healthy resource credits", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, inactiveUser("alice"))
		// lowRC defaults to false
		f.streamer.ops = []hive.Operation{{Kind: hive.KindComment, Account: "alice", Timestamp: testNow}}

		events := f.run(t)

		assert.Empty(t, eventsOf[manager.DelegationGranted](events))
		assert.Empty(t, f.broadcaster.delegateCalls())
	})

	t.Run("it skips accounts that already grew enough own power", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, inactiveUser("alice"))
		f.policy.lowRC["alice"] = true
		f.policy.enoughPower["alice"] = true
		f.streamer.ops = []hive.Operation{{Kind: hive.KindVote, Account: "alice", Timestamp: testNow}}

		events := f.run(t)

		assert.Empty(t, eventsOf[manager.DelegationGranted](events))
	})

	t.Run("it skips muted accounts", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, inactiveUser("alice"))
		f.policy.lowRC["alice"] = true
		f.policy.muted["alice"] = true
		f.streamer.ops = []hive.Operation{{Kind: hive.KindComment, Account: "alice", Timestamp: testNow}}

		events := f.run(t)

		assert.Empty(t, eventsOf[manager.DelegationGranted](events))
	})

	t.Run("it skips accounts already holding an on-chain delegation", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, inactiveUser("alice"))
		f.policy.lowRC["alice"] = true
		f.policy.delegatedTo["alice"] = true
		f.streamer.ops = []hive.Operation{{Kind: hive.KindComment, Account: "alice", Timestamp: testNow}}

		events := f.run(t)

		assert.Empty(t, eventsOf[manager.DelegationGranted](events))
		assert.Empty(t, f.broadcaster.delegateCalls())
	})

	t.Run("it requires the beneficiary marker when enforcement is on", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.settings.EnforceBeneficiary = true
		f.seed(t, inactiveUser("alice"))
		f.policy.lowRC["alice"] = true
		// beneficiary defaults to false
		f.streamer.ops = []hive.Operation{{Kind: hive.KindComment, Account: "alice", Timestamp: testNow}}

		events := f.run(t)

		assert.Empty(t, eventsOf[manager.DelegationGranted](events))
	})

	t.Run("it ignores activity from accounts outside the program", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.streamer.ops = []hive.Operation{{Kind: hive.KindComment, Account: "stranger", Timestamp: testNow}}

		events := f.run(t)

		assert.Empty(t, eventsOf[manager.DelegationGranted](events))
		assert.Empty(t, eventsOf[manager.EvaluationError](events))
	})

	t.Run("it leaves the account inactive when the broadcast is rejected", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, inactiveUser("alice"))
		f.policy.lowRC["alice"] = true
		f.broadcaster.delegateErr = hive.ErrBroadcastRejected
		f.streamer.ops = []hive.Operation{{Kind: hive.KindComment, Account: "alice", Timestamp: testNow}}

		events := f.run(t)

		failed := single[manager.GrantFailed](t, events)
		assert.Equal(t, "alice", failed.Account)
		assert.ErrorIs(t, failed.Err, hive.ErrBroadcastRejected)

		u, _ := f.store.Get("alice")
		assert.Equal(t, registry.StatusInactive, u.Status, "a failed grant must not change status")
		assert.NotEmpty(t, f.broadcaster.memosTo("admin"), "the admin is told about the failure")
	})

	t.Run("it isolates a predicate failure to the affected account", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, inactiveUser("alice"), inactiveUser("bob"))
		f.policy.errs["alice"] = hive.ErrTransientRPC
		f.policy.lowRC["bob"] = true
		f.streamer.ops = []hive.Operation{
			{Kind: hive.KindComment, Account: "alice", Timestamp: testNow},
			{Kind: hive.KindComment, Account: "bob", Timestamp: testNow},
		}

		events := f.run(t)

		evalErr := single[manager.EvaluationError](t, events)
		assert.Equal(t, "alice", evalErr.Account)

		granted := single[manager.DelegationGranted](t, events)
		assert.Equal(t, "bob", granted.Account)
	})
}

func TestRevokeSweep(t *testing.T) {
	t.Parallel()

	t.Run("it withdraws the delegation when the account graduates", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, delegatedUser("alice"))
		f.policy.enoughPower["alice"] = true

		events := f.run(t)

		revoked := single[manager.DelegationRevoked](t, events)
		assert.Equal(t, "alice", revoked.Account)
		assert.Equal(t, registry.StatusGraduated, revoked.Reason)

		calls := f.broadcaster.delegateCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, "alice", calls[0].to)
		assert.Zero(t, calls[0].vests, "withdrawal is a zero-amount delegation")

		u, _ := f.store.Get("alice")
		assert.Equal(t, registry.StatusGraduated, u.Status)
		assert.Equal(t, testNow, u.DelegationRemovedAt)

		memos := f.broadcaster.memosTo("alice")
		require.Len(t, memos, 1, "exactly one notification per transition")
		assert.Contains(t, memos[0], "Congratulations")

		sweep := single[manager.SweepCompleted](t, events)
		assert.Equal(t, 1, sweep.Checked)
		assert.Equal(t, 1, sweep.Revoked)
	})

	t.Run("it prefers graduation over other withdrawal reasons", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, delegatedUser("alice"))
		f.policy.enoughPower["alice"] = true
		f.policy.muted["alice"] = true
		f.policy.expired["alice"] = true

		events := f.run(t)

		revoked := single[manager.DelegationRevoked](t, events)
		assert.Equal(t, registry.StatusGraduated, revoked.Reason)
	})

	t.Run("it withdraws from muted accounts", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, delegatedUser("alice"))
		f.policy.muted["alice"] = true

		events := f.run(t)

		revoked := single[manager.DelegationRevoked](t, events)
		assert.Equal(t, registry.StatusMuted, revoked.Reason)
	})

	t.Run("it withdraws after the delegation window expires", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, delegatedUser("alice"))
		f.policy.expired["alice"] = true

		events := f.run(t)

		revoked := single[manager.DelegationRevoked](t, events)
		assert.Equal(t, registry.StatusExpired, revoked.Reason)
	})

	t.Run("it withdraws when the beneficiary marker is removed and enforced", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.settings.EnforceBeneficiary = true
		f.seed(t, delegatedUser("alice"))
		// beneficiary defaults to false

		events := f.run(t)

		revoked := single[manager.DelegationRevoked](t, events)
		assert.Equal(t, registry.StatusBeneficiaryRemoved, revoked.Reason)
	})

	t.Run("it keeps a delegation that matches no withdrawal condition", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, delegatedUser("alice"))

		events := f.run(t)

		assert.Empty(t, eventsOf[manager.DelegationRevoked](events))
		sweep := single[manager.SweepCompleted](t, events)
		assert.Equal(t, 1, sweep.Checked)
		assert.Zero(t, sweep.Revoked)
	})

	t.Run("it never re-evaluates settled accounts", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		graduated := delegatedUser("alice")
		graduated.Status = registry.StatusGraduated
		f.seed(t, graduated, inactiveUser("bob"))

		events := f.run(t)

		sweep := single[manager.SweepCompleted](t, events)
		assert.Zero(t, sweep.Checked)
	})

	t.Run("it keeps the status on a failed withdrawal and retries next sweep", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, delegatedUser("alice"))
		f.policy.enoughPower["alice"] = true
		f.broadcaster.delegateErr = hive.ErrBroadcastRejected

		events := f.run(t)

		failed := single[manager.RevokeFailed](t, events)
		assert.Equal(t, "alice", failed.Account)

		u, _ := f.store.Get("alice")
		assert.Equal(t, registry.StatusDelegated, u.Status, "the next sweep must pick the account up again")
		assert.Empty(t, f.broadcaster.memosTo("alice"), "no user notification without a state change")
	})

	t.Run("it isolates a failing account from the rest of the sweep", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, delegatedUser("alice"), delegatedUser("bob"))
		f.policy.errs["alice"] = hive.ErrTransientRPC
		f.policy.enoughPower["bob"] = true

		events := f.run(t)

		evalErr := single[manager.EvaluationError](t, events)
		assert.Equal(t, "alice", evalErr.Account)

		revoked := single[manager.DelegationRevoked](t, events)
		assert.Equal(t, "bob", revoked.Account)
	})
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	t.Run("it repairs an account with a live delegation but no delegated status", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, inactiveUser("alice"))
		f.chain.delegations = []hive.VestingDelegation{{
			Delegator:         "buzzparty",
			Delegatee:         "alice",
			VestingShares:     "25000.000000 VESTS",
			MinDelegationTime: "2024-01-05T12:00:00",
		}}

		events := f.run(t)

		repaired := single[manager.ReconcileRepaired](t, events)
		assert.Equal(t, "alice", repaired.Account)

		u, _ := f.store.Get("alice")
		assert.Equal(t, registry.StatusDelegated, u.Status)
		assert.Equal(t, time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC), u.DelegatedAt)
		assert.InDelta(t, 25.0, u.DelegationAmount, 1e-6)
	})

	t.Run("it leaves settled accounts alone", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		expired := delegatedUser("alice")
		expired.Status = registry.StatusExpired
		f.seed(t, expired)
		f.chain.delegations = []hive.VestingDelegation{{
			Delegator:     "buzzparty",
			Delegatee:     "alice",
			VestingShares: "25000.000000 VESTS",
		}}

		events := f.run(t)

		assert.Empty(t, eventsOf[manager.ReconcileRepaired](events))
		u, _ := f.store.Get("alice")
		assert.Equal(t, registry.StatusExpired, u.Status)
	})

	t.Run("it rate-limits reconciliation across back-to-back sweeps", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		clk := newFireClock(testNow)
		f.clock = clk

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, done := f.newService().Start(ctx)

		sweeps := 0
		for e := range events {
			if _, ok := e.(manager.SweepCompleted); ok {
				sweeps++
				switch sweeps {
				case 1:
					clk.fire(manager.DefaultSweepInterval)
				case 2:
					cancel()
				}
			}
		}
		<-done

		assert.Equal(t, 2, sweeps)
		assert.Equal(t, 1, f.chain.delegationListings(), "the second sweep falls inside the reconcile cooldown")
	})

	t.Run("it survives a failed delegation listing", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.chain.delegationsErr = hive.ErrTransientRPC

		events := f.run(t)

		assert.NotEmpty(t, eventsOf[manager.ReconcileError](events))
		assert.NotEmpty(t, eventsOf[manager.SweepCompleted](events), "the sweep still runs")
	})
}

func TestDelegatorPowerCheck(t *testing.T) {
	t.Parallel()

	t.Run("it reports the remaining delegatable power", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		events := f.run(t)

		checked := single[manager.PowerChecked](t, events)
		assert.InDelta(t, 500.0, checked.AvailableHP, 1e-6)
		assert.Empty(t, eventsOf[manager.PowerLow](events))
	})

	t.Run("it warns the admin below the power floor", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.chain.accounts["buzzparty"].VestingShares = "50000.000000 VESTS" // 50 HP

		events := f.run(t)

		low := single[manager.PowerLow](t, events)
		assert.InDelta(t, 50.0, low.AvailableHP, 1e-6)
		assert.Equal(t, 100.0, low.Floor)
		assert.NotEmpty(t, f.broadcaster.memosTo("admin"))
	})

	t.Run("it reports a missing delegator account", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		delete(f.chain.accounts, "buzzparty")

		events := f.run(t)

		checkErr := single[manager.PowerCheckError](t, events)
		require.Error(t, checkErr.Err)
		assert.Contains(t, checkErr.Err.Error(), "not found")
		assert.Empty(t, eventsOf[manager.PowerChecked](events))
	})

	t.Run("it claims pending rewards before measuring", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.chain.accounts["buzzparty"].RewardVestingBalance = "12.345678 VESTS"

		events := f.run(t)

		claimed := single[manager.RewardsClaimed](t, events)
		assert.Equal(t, "buzzparty", claimed.Account)
		assert.Equal(t, []string{"buzzparty"}, f.broadcaster.claimedAccounts())
	})
}

func TestNotifications(t *testing.T) {
	t.Parallel()

	t.Run("it stays silent towards users when notifications are off", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.settings.NotifyUsers = false
		f.seed(t, delegatedUser("alice"))
		f.policy.enoughPower["alice"] = true

		events := f.run(t)

		assert.NotEmpty(t, eventsOf[manager.DelegationRevoked](events))
		assert.Empty(t, f.broadcaster.memosTo("alice"))
	})

	t.Run("it treats a failed notification as best-effort", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, delegatedUser("alice"))
		f.policy.enoughPower["alice"] = true
		f.broadcaster.transferErr = hive.ErrTransientRPC

		events := f.run(t)

		assert.NotEmpty(t, eventsOf[manager.DelegationRevoked](events), "the transition itself stands")
		assert.NotEmpty(t, eventsOf[manager.NotifyError](events))
	})
}

// --- fixture ---------------------------------------------------------------

type fixture struct {
	store       *registry.Store
	chain       *fakeChain
	broadcaster *fakeBroadcaster
	streamer    *fakeStreamer
	feed        *fakeFeed
	policy      *fakePolicy
	settings    manager.Settings
	clock       manager.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := registry.Open(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	return &fixture{
		store: store,
		chain: &fakeChain{
			accounts: map[string]*hive.Account{
				"buzzparty": {
					Name:                   "buzzparty",
					VestingShares:          "500000.000000 VESTS",
					DelegatedVestingShares: "0.000000 VESTS",
				},
			},
			// 1000 VESTS per HP
			props: &hive.DynamicGlobalProperties{
				TotalVestingFundHive: "300000000.000 HIVE",
				TotalVestingShares:   "300000000000.000000 VESTS",
			},
		},
		broadcaster: &fakeBroadcaster{},
		streamer:    &fakeStreamer{delivered: make(chan struct{})},
		feed:        &fakeFeed{},
		policy:      newFakePolicy(),
		settings: manager.Settings{
			DelegationAccount: "buzzparty",
			AdminAccount:      "admin",
			DelegationAmount:  25,
			NotifyUsers:       true,
			PowerWarningFloor: 100,
		},
		clock: &fakeClock{now: testNow},
	}
}

func (f *fixture) seed(t *testing.T, users ...registry.ReferredUser) {
	t.Helper()
	require.NoError(t, f.store.Upsert(users...))
}

func (f *fixture) newService() *manager.Service {
	return manager.NewService(manager.Deps{
		Store:       f.store,
		Policy:      f.policy,
		Chain:       f.chain,
		Broadcaster: f.broadcaster,
		Streamer:    f.streamer,
		Feed:        f.feed,
		Costs:       &fakeCosts{},
	}, f.settings, manager.WithClock(f.clock))
}

// run starts the service, lets the stream drain and the first sweep finish,
// then shuts down and returns every emitted event.
func (f *fixture) run(t *testing.T) []manager.Event {
	t.Helper()

	svc := f.newService()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, done := svc.Start(ctx)

	var (
		mu       sync.Mutex
		recorded []manager.Event
	)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for e := range events {
			mu.Lock()
			recorded = append(recorded, e)
			mu.Unlock()
		}
	}()

	select {
	case <-f.streamer.delivered:
	case <-done: // bootstrap failure: the stream never starts
	}
	cancel()

	<-done
	<-drained
	return recorded
}

func eventsOf[T any](events []manager.Event) []T {
	var out []T
	for _, e := range events {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func single[T any](t *testing.T, events []manager.Event) T {
	t.Helper()
	found := eventsOf[T](events)
	require.Len(t, found, 1, "expected exactly one %T", *new(T))
	return found[0]
}

func inactiveUser(account string) registry.ReferredUser {
	return registry.ReferredUser{
		Account:   account,
		Weight:    300,
		CreatedAt: testNow.Add(-48 * time.Hour),
	}
}

func delegatedUser(account string) registry.ReferredUser {
	u := inactiveUser(account)
	u.Status = registry.StatusDelegated
	u.DelegatedAt = testNow.Add(-24 * time.Hour)
	u.DelegationAmount = 25
	return u
}

// --- fakes -----------------------------------------------------------------

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// After never fires: only the immediate first sweep runs during a test.
func (c *fakeClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

// fireClock hands out one buffered channel per duration so a test can
// trigger individual timer loops on demand.
type fireClock struct {
	now time.Time

	mu    sync.Mutex
	chans map[time.Duration]chan time.Time
}

func newFireClock(now time.Time) *fireClock {
	return &fireClock{now: now, chans: make(map[time.Duration]chan time.Time)}
}

func (c *fireClock) Now() time.Time { return c.now }

func (c *fireClock) After(d time.Duration) <-chan time.Time { return c.channel(d) }

// fire wakes the loop armed with the given duration.
func (c *fireClock) fire(d time.Duration) { c.channel(d) <- c.now }

func (c *fireClock) channel(d time.Duration) chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.chans[d]
	if !ok {
		ch = make(chan time.Time, 1)
		c.chans[d] = ch
	}
	return ch
}

type fakeChain struct {
	mu             sync.Mutex
	accounts       map[string]*hive.Account
	props          *hive.DynamicGlobalProperties
	delegations    []hive.VestingDelegation
	delegationsErr error
	listings       int
}

func (c *fakeChain) GetAccount(_ context.Context, name string) (*hive.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accounts[name], nil
}

func (c *fakeChain) GetDynamicGlobalProperties(context.Context) (*hive.DynamicGlobalProperties, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.props, nil
}

func (c *fakeChain) GetVestingDelegations(context.Context, string) ([]hive.VestingDelegation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings++
	return c.delegations, c.delegationsErr
}

func (c *fakeChain) delegationListings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listings
}

type delegateCall struct {
	to    string
	vests float64
}

type transferCall struct {
	to   string
	memo string
}

type fakeBroadcaster struct {
	mu          sync.Mutex
	delegateErr error
	transferErr error
	delegates   []delegateCall
	transfers   []transferCall
	claims      []string
}

func (b *fakeBroadcaster) Delegate(_ context.Context, _, to string, vests float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.delegateErr != nil {
		return b.delegateErr
	}
	b.delegates = append(b.delegates, delegateCall{to: to, vests: vests})
	return nil
}

func (b *fakeBroadcaster) TransferWithMemo(_ context.Context, _, to, _, memo string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transferErr != nil {
		return b.transferErr
	}
	b.transfers = append(b.transfers, transferCall{to: to, memo: memo})
	return nil
}

func (b *fakeBroadcaster) ClaimRewards(_ context.Context, account, _, _, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.claims = append(b.claims, account)
	return nil
}

func (b *fakeBroadcaster) delegateCalls() []delegateCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]delegateCall(nil), b.delegates...)
}

func (b *fakeBroadcaster) memosTo(account string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var memos []string
	for _, tr := range b.transfers {
		if tr.to == account {
			memos = append(memos, tr.memo)
		}
	}
	return memos
}

func (b *fakeBroadcaster) claimedAccounts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.claims...)
}

// fakeStreamer delivers its operations synchronously, signals completion,
// then blocks like the real stream until cancellation. An optional before
// hook runs once the stream starts, after bootstrap has finished.
type fakeStreamer struct {
	ops       []hive.Operation
	before    func()
	delivered chan struct{}
}

func (s *fakeStreamer) StreamOperations(ctx context.Context, handler func(hive.Operation)) error {
	if s.before != nil {
		s.before()
	}
	for _, op := range s.ops {
		handler(op)
	}
	close(s.delivered)
	<-ctx.Done()
	return ctx.Err()
}

type fakeFeed struct {
	accounts []hiveonboard.ReferredAccount
	err      error
}

func (f *fakeFeed) GetReferredAccounts(context.Context, string) ([]hiveonboard.ReferredAccount, error) {
	return f.accounts, f.err
}

type fakePolicy struct {
	mu          sync.Mutex
	enoughPower map[string]bool
	lowRC       map[string]bool
	muted       map[string]bool
	beneficiary map[string]bool
	delegatedTo map[string]bool
	expired     map[string]bool
	errs        map[string]error
}

func newFakePolicy() *fakePolicy {
	return &fakePolicy{
		enoughPower: map[string]bool{},
		lowRC:       map[string]bool{},
		muted:       map[string]bool{},
		beneficiary: map[string]bool{},
		delegatedTo: map[string]bool{},
		expired:     map[string]bool{},
		errs:        map[string]error{},
	}
}

func (p *fakePolicy) check(account string, m map[string]bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errs[account]; err != nil {
		return false, err
	}
	return m[account], nil
}

func (p *fakePolicy) IsMuted(_ context.Context, account string) (bool, error) {
	return p.check(account, p.muted)
}

func (p *fakePolicy) HasEnoughOwnedPower(_ context.Context, account string) (bool, error) {
	return p.check(account, p.enoughPower)
}

func (p *fakePolicy) HasLowResourceCredits(_ context.Context, account string) (bool, error) {
	return p.check(account, p.lowRC)
}

func (p *fakePolicy) HasBeneficiarySetting(_ context.Context, account string) (bool, error) {
	return p.check(account, p.beneficiary)
}

func (p *fakePolicy) IsCurrentlyDelegatedTo(account string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delegatedTo[account]
}

func (p *fakePolicy) HasExceededDelegationWindow(account string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expired[account]
}

type fakeCosts struct{}

func (fakeCosts) Refresh(context.Context) (int64, error) { return 0, nil }
