package manager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/d-buzz/delegation-manager/pkg/hive"
	"github.com/d-buzz/delegation-manager/registry"
)

// operationHandler dispatches one decoded operation: creations feed the
// registry, activity feeds the grant transition. The stream delivers
// operations one at a time, so registrations are naturally serialized.
func (s *Service) operationHandler(ctx context.Context) func(hive.Operation) {
	return func(op hive.Operation) {
		switch op.Kind {
		case hive.KindAccountCreated:
			s.registerIfReferred(op)
		case hive.KindComment, hive.KindVote, hive.KindTransfer, hive.KindCustomJSON:
			s.maybeGrant(ctx, op.Account)
		}
	}
}

// registerIfReferred records a newly created account whose profile
// metadata names the configured referrer as a "referrer" beneficiary.
func (s *Service) registerIfReferred(op hive.Operation) {
	var weight int
	found := false
	for _, b := range hive.ParseBeneficiaries(op.Metadata) {
		if b.Name == s.settings.Referrer && b.Label == "referrer" {
			weight = b.Weight
			found = true
			break
		}
	}
	if !found {
		return
	}
	if _, ok := s.store.Get(op.Account); ok {
		return // already known from the feed or an earlier run
	}

	err := s.store.Upsert(registry.ReferredUser{
		Account:   op.Account,
		Weight:    weight,
		CreatedAt: op.Timestamp,
	})
	if err != nil {
		s.events <- StoreError{Err: err}
		return
	}
	s.events <- UserRegistered{Account: op.Account, Weight: weight}
}

// maybeGrant runs the grant transition for an active referred account,
// guarded cheapest-first: registry state, then owned power, then RC,
// then mute list, then the beneficiary marker.
func (s *Service) maybeGrant(ctx context.Context, account string) {
	if u, ok := s.store.Get(account); !ok || u.Status != registry.StatusInactive {
		return
	}

	unlock := s.locks.lock(account)
	defer unlock()

	// re-check under the account lock: a concurrent reconcile may have
	// advanced the status
	u, ok := s.store.Get(account)
	if !ok || u.Status != registry.StatusInactive {
		return
	}
	if s.policy.IsCurrentlyDelegatedTo(account) {
		return
	}

	enough, err := s.policy.HasEnoughOwnedPower(ctx, account)
	if err != nil {
		s.events <- EvaluationError{Account: account, Err: err}
		return
	}
	if enough {
		return
	}

	low, err := s.policy.HasLowResourceCredits(ctx, account)
	if err != nil {
		s.events <- EvaluationError{Account: account, Err: err}
		return
	}
	if !low {
		return
	}

	muted, err := s.policy.IsMuted(ctx, account)
	if err != nil {
		s.events <- EvaluationError{Account: account, Err: err}
		return
	}
	if muted {
		return
	}

	if s.settings.EnforceBeneficiary {
		has, err := s.policy.HasBeneficiarySetting(ctx, account)
		if err != nil {
			s.events <- EvaluationError{Account: account, Err: err}
			return
		}
		if !has {
			return
		}
	}

	if err := s.delegate(ctx, account, s.settings.DelegationAmount); err != nil {
		s.events <- GrantFailed{Account: account, Err: err}
		s.notifyAdmin(ctx, fmt.Sprintf("delegation to @%s failed: %v", account, err))
		return
	}

	u.Status = registry.StatusDelegated
	u.DelegatedAt = s.clock.Now()
	u.DelegationAmount = s.settings.DelegationAmount
	if err := s.store.Upsert(u); err != nil {
		s.events <- StoreError{Err: err}
	}
	s.events <- DelegationGranted{Account: account, Amount: s.settings.DelegationAmount}

	s.notifyUser(ctx, account, msgWelcome)
}

// delegate broadcasts a delegation of the given HP amount, converting to
// vesting shares at the current rate. Zero HP revokes.
func (s *Service) delegate(ctx context.Context, account string, hp float64) error {
	vests := 0.0
	if hp > 0 {
		props, err := s.chain.GetDynamicGlobalProperties(ctx)
		if err != nil {
			return err
		}
		vests = hive.VestsFromHP(hp, props)
	}
	return s.broadcaster.Delegate(ctx, s.settings.DelegationAccount, account, vests)
}

// sweep is one pass of the periodic reconciliation: repair diverged
// statuses, evaluate revokes for all delegated accounts concurrently,
// then check the delegator's own power.
func (s *Service) sweep(ctx context.Context) {
	start := s.clock.Now()

	s.reconcile(ctx)

	accounts := s.store.Delegated()
	var revoked atomic.Int64
	var wg sync.WaitGroup
	for _, account := range accounts {
		account := account
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.evaluateRevoke(ctx, account) {
				revoked.Add(1)
			}
		}()
	}
	wg.Wait()

	s.checkDelegatorPower(ctx)

	s.events <- SweepCompleted{
		Checked:  len(accounts),
		Revoked:  int(revoked.Load()),
		Duration: s.clock.Now().Sub(start),
	}
}

// evaluateRevoke runs the revoke transition for one delegated account.
// Reports whether the delegation was withdrawn. Errors are isolated to
// this account.
func (s *Service) evaluateRevoke(ctx context.Context, account string) bool {
	unlock := s.locks.lock(account)
	defer unlock()

	u, ok := s.store.Get(account)
	if !ok || u.Status != registry.StatusDelegated {
		return false
	}

	reason, memo, err := s.revokeDecision(ctx, account)
	if err != nil {
		s.events <- EvaluationError{Account: account, Err: err}
		return false
	}
	if reason == registry.StatusDelegated {
		return false // keep delegation
	}

	// full withdrawal first; on failure the status stays delegated and
	// the next sweep retries
	if err := s.delegate(ctx, account, 0); err != nil {
		s.events <- RevokeFailed{Account: account, Err: err}
		s.notifyAdmin(ctx, fmt.Sprintf("removing delegation to @%s failed: %v", account, err))
		return false
	}

	u.Status = reason
	u.DelegationRemovedAt = s.clock.Now()
	if err := s.store.Upsert(u); err != nil {
		s.events <- StoreError{Err: err}
	}
	s.events <- DelegationRevoked{Account: account, Reason: reason}

	s.notifyUser(ctx, account, memo)
	return true
}

// revokeDecision walks the priority-ordered withdrawal conditions; the
// first match wins. Returns StatusDelegated when the delegation should
// stand.
func (s *Service) revokeDecision(ctx context.Context, account string) (registry.Status, string, error) {
	enough, err := s.policy.HasEnoughOwnedPower(ctx, account)
	if err != nil {
		return "", "", err
	}
	if enough {
		return registry.StatusGraduated, msgGraduated, nil
	}

	muted, err := s.policy.IsMuted(ctx, account)
	if err != nil {
		return "", "", err
	}
	if muted {
		return registry.StatusMuted, msgMuted, nil
	}

	if s.policy.HasExceededDelegationWindow(account) {
		return registry.StatusExpired, msgExpired, nil
	}

	if s.settings.EnforceBeneficiary {
		has, err := s.policy.HasBeneficiarySetting(ctx, account)
		if err != nil {
			return "", "", err
		}
		if !has {
			return registry.StatusBeneficiaryRemoved, msgBeneficiaryRemoved, nil
		}
	}

	return registry.StatusDelegated, "", nil
}

// reconcile repairs registry divergence: an account with a live on-chain
// delegation but no delegated status lost its grant's status write, so
// force-set it from the chain record. Rate-limited by the cooldown to
// bound external query cost.
func (s *Service) reconcile(ctx context.Context) {
	now := s.clock.Now()
	if !s.lastReconcile.IsZero() && now.Before(s.lastReconcile.Add(s.reconcileCooldown)) {
		return
	}
	s.lastReconcile = now

	delegations, err := s.chain.GetVestingDelegations(ctx, s.settings.DelegationAccount)
	if err != nil {
		s.events <- ReconcileError{Err: err}
		return
	}
	props, err := s.chain.GetDynamicGlobalProperties(ctx)
	if err != nil {
		s.events <- ReconcileError{Err: err}
		return
	}

	for _, d := range delegations {
		if u, ok := s.store.Get(d.Delegatee); !ok || u.Status != registry.StatusInactive {
			continue
		}

		unlock := s.locks.lock(d.Delegatee)

		u, ok := s.store.Get(d.Delegatee)
		if !ok || u.Status != registry.StatusInactive {
			unlock()
			continue
		}

		delegatedAt, err := hive.ParseTime(d.MinDelegationTime)
		if err != nil {
			delegatedAt = now
		}
		u.Status = registry.StatusDelegated
		u.DelegatedAt = delegatedAt
		u.DelegationAmount = hive.HPFromVests(hive.ParseAmount(d.VestingShares), props)
		if err := s.store.Upsert(u); err != nil {
			s.events <- StoreError{Err: err}
		}
		s.events <- ReconcileRepaired{Account: d.Delegatee}

		unlock()
	}
}

// checkDelegatorPower claims any pending rewards, measures the remaining
// delegatable power and warns the admin below the configured floor.
func (s *Service) checkDelegatorPower(ctx context.Context) {
	acc, err := s.chain.GetAccount(ctx, s.settings.DelegationAccount)
	if err != nil {
		s.events <- PowerCheckError{Err: fmt.Errorf("fetching delegator account: %w", err)}
		return
	}
	if acc == nil {
		s.events <- PowerCheckError{Err: fmt.Errorf("delegator account @%s not found", s.settings.DelegationAccount)}
		return
	}

	if hive.HasPendingRewards(acc) {
		err := s.broadcaster.ClaimRewards(ctx, acc.Name,
			acc.RewardHiveBalance, acc.RewardHBDBalance, acc.RewardVestingBalance)
		if err != nil {
			s.events <- PowerCheckError{Err: fmt.Errorf("claiming rewards: %w", err)}
		} else {
			s.events <- RewardsClaimed{Account: acc.Name}
		}
	}

	props, err := s.chain.GetDynamicGlobalProperties(ctx)
	if err != nil {
		s.events <- PowerCheckError{Err: err}
		return
	}

	avail := hive.HPFromVests(hive.DelegatableVests(acc), props)
	s.events <- PowerChecked{AvailableHP: avail}

	if avail < s.settings.PowerWarningFloor {
		s.events <- PowerLow{AvailableHP: avail, Floor: s.settings.PowerWarningFloor}
		s.notifyAdmin(ctx, fmt.Sprintf("delegatable power is down to %.3f HP (floor %.3f HP)", avail, s.settings.PowerWarningFloor))
	}
}

// notifyAdmin sends a best-effort operational notice. Failures are
// logged through the event channel and never retried.
func (s *Service) notifyAdmin(ctx context.Context, memo string) {
	if s.settings.AdminAccount == "" {
		return
	}
	err := s.broadcaster.TransferWithMemo(ctx, s.settings.DelegationAccount, s.settings.AdminAccount, NotificationAmount, memo)
	if err != nil {
		s.events <- NotifyError{Account: s.settings.AdminAccount, Err: err}
	}
}

// notifyUser sends a best-effort lifecycle notice to a referred user,
// honouring the notification flag.
func (s *Service) notifyUser(ctx context.Context, account, memo string) {
	if !s.settings.NotifyUsers {
		return
	}
	err := s.broadcaster.TransferWithMemo(ctx, s.settings.DelegationAccount, account, NotificationAmount, memo)
	if err != nil {
		s.events <- NotifyError{Account: account, Err: err}
	}
}
