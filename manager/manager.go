// Package manager is the decision-and-lifecycle engine of the delegation
// program: it watches the operation stream for referred-account creations
// and activity, grants starter delegations to under-resourced accounts,
// and withdraws them again on graduation, abuse or expiry.
package manager

import (
	"context"
	"errors"
	"time"

	"github.com/d-buzz/delegation-manager/pkg/hive"
	"github.com/d-buzz/delegation-manager/pkg/hiveonboard"
)

// Sentinel errors for failure cases
var (
	ErrBootstrapFailed = errors.New("bootstrap failed")
)

// Default configuration values
const (
	DefaultSweepInterval       = 10 * time.Minute
	DefaultPowerCheckInterval  = 8 * time.Hour
	DefaultCostRefreshInterval = time.Hour
	DefaultReconcileCooldown   = 60 * time.Second

	// NotificationAmount is the minimal transfer carrying notification memos.
	NotificationAmount = "0.001 HIVE"
)

// Notification memos sent to referred users on lifecycle transitions.
const (
	msgWelcome            = "Welcome to Hive! We delegated some Hive Power to get you started."
	msgGraduated          = "Congratulations! You have grown enough own Hive Power, so our starter delegation has been withdrawn."
	msgMuted              = "Our starter delegation has been withdrawn because your account was muted."
	msgExpired            = "The starter delegation period has ended, so our delegation has been withdrawn."
	msgBeneficiaryRemoved = "Our starter delegation has been withdrawn because the referral beneficiary setting was removed."
)

// Chain supplies the account and delegation state the manager reads
// -----------------------------------------------------------------
type Chain interface {
	GetAccount(ctx context.Context, name string) (*hive.Account, error)
	GetDynamicGlobalProperties(ctx context.Context) (*hive.DynamicGlobalProperties, error)
	GetVestingDelegations(ctx context.Context, delegator string) ([]hive.VestingDelegation, error)
}

// Broadcaster performs the manager's side effects on chain
type Broadcaster interface {
	Delegate(ctx context.Context, from, to string, vests float64) error
	TransferWithMemo(ctx context.Context, from, to, amount, memo string) error
	ClaimRewards(ctx context.Context, account, rewardHive, rewardHBD, rewardVests string) error
}

// Streamer delivers decoded chain operations in order
type Streamer interface {
	StreamOperations(ctx context.Context, handler func(hive.Operation)) error
}

// Feed lists the accounts ever referred by the configured referrer
type Feed interface {
	GetReferredAccounts(ctx context.Context, referrer string) ([]hiveonboard.ReferredAccount, error)
}

// Policy exposes the eligibility predicates the transitions consult
type Policy interface {
	IsMuted(ctx context.Context, account string) (bool, error)
	HasEnoughOwnedPower(ctx context.Context, account string) (bool, error)
	HasLowResourceCredits(ctx context.Context, account string) (bool, error)
	HasBeneficiarySetting(ctx context.Context, account string) (bool, error)
	IsCurrentlyDelegatedTo(account string) bool
	HasExceededDelegationWindow(account string) bool
}

// CostRefresher re-fetches the cached per-comment RC cost
type CostRefresher interface {
	Refresh(ctx context.Context) (int64, error)
}

// Clock abstracts time for production and testing
// ------------------------------------------------
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

// Settings are the program parameters loaded from configuration.
type Settings struct {
	// DelegationAccount is the account granting delegations.
	DelegationAccount string
	// AdminAccount receives operational warnings and failure notices.
	AdminAccount string
	// Referrer is the beneficiary name marking referral attribution.
	// Usually the delegation account itself.
	Referrer string
	// DelegationAmount is the starter delegation, in HP.
	DelegationAmount float64
	// NotifyUsers enables best-effort transfer memos to referred users.
	NotifyUsers bool
	// EnforceBeneficiary makes a removed beneficiary setting block grants
	// and revoke standing delegations.
	EnforceBeneficiary bool
	// PowerWarningFloor is the delegatable-HP level below which the admin
	// is warned.
	PowerWarningFloor float64
}
