package manager

import (
	"time"

	"github.com/d-buzz/delegation-manager/registry"
)

// Event represents a service lifecycle event
// ------------------------------------------
type Event any

// Started fires once the registry has been bootstrapped and both loops
// are about to run.
type Started struct {
	FeedAccounts int
	KnownUsers   int
}

// BootstrapFailed fires when the referral feed or the store cannot be
// brought up; the service stops.
type BootstrapFailed struct {
	Err error
}

// UserRegistered fires when the stream observes a qualifying referred
// account creation.
type UserRegistered struct {
	Account string
	Weight  int
}

// DelegationGranted fires after a successful grant broadcast and status
// write.
type DelegationGranted struct {
	Account string
	Amount  float64 // HP
}

// GrantFailed fires when a grant broadcast was rejected; the account
// stays inactive and may retry on its next activity.
type GrantFailed struct {
	Account string
	Err     error
}

// DelegationRevoked fires after a successful withdrawal; Reason is the
// terminal status entered.
type DelegationRevoked struct {
	Account string
	Reason  registry.Status
}

// RevokeFailed fires when the zero-amount delegation was rejected; the
// transition is retried on the next sweep.
type RevokeFailed struct {
	Account string
	Err     error
}

// EvaluationError fires when a predicate failed for one account. Other
// accounts are unaffected.
type EvaluationError struct {
	Account string
	Err     error
}

// ReconcileRepaired fires when a live on-chain delegation was found for
// an account the registry did not mark delegated.
type ReconcileRepaired struct {
	Account string
}

// ReconcileError fires when the outstanding-delegation listing failed.
type ReconcileError struct {
	Err error
}

// SweepCompleted summarises one periodic sweep pass.
type SweepCompleted struct {
	Checked  int
	Revoked  int
	Duration time.Duration
}

// PowerChecked reports the delegator's remaining delegatable power.
type PowerChecked struct {
	AvailableHP float64
}

// PowerLow fires when the delegatable power dropped below the warning
// floor.
type PowerLow struct {
	AvailableHP float64
	Floor       float64
}

// PowerCheckError fires when the delegator-power check failed.
type PowerCheckError struct {
	Err error
}

// RewardsClaimed fires after pending delegator rewards were claimed.
type RewardsClaimed struct {
	Account string
}

// CostRefreshed fires after the cached per-comment RC cost was updated.
type CostRefreshed struct {
	Cost int64
}

// CostRefreshError fires when the cost refresh failed; the previous
// cached value stays in use.
type CostRefreshError struct {
	Err error
}

// NotifyError fires when a best-effort notification transfer failed.
// Notifications are never retried.
type NotifyError struct {
	Account string
	Err     error
}

// StoreError fires when a registry write failed mid-run; the in-memory
// state stays authoritative until the next successful write.
type StoreError struct {
	Err error
}

// StreamStopped fires when the operation stream ended.
type StreamStopped struct {
	Reason error
}

// Shutdown fires when the timer loop stopped (ctx.Err()).
type Shutdown struct {
	Reason error
}
