package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/d-buzz/delegation-manager/pkg/hive"
	"github.com/d-buzz/delegation-manager/registry"
)

// Default thresholds
const (
	DefaultMaxOwnedPower     = 30.0
	DefaultMinPostMultiplier = 3
)

// ErrAccountNotFound marks a predicate asked about an account the chain
// does not know.
var ErrAccountNotFound = errors.New("account not found")

// ChainReader supplies the account state the predicates evaluate.
type ChainReader interface {
	GetAccount(ctx context.Context, name string) (*hive.Account, error)
	GetDynamicGlobalProperties(ctx context.Context) (*hive.DynamicGlobalProperties, error)
	GetMutedAccounts(ctx context.Context, owner string) ([]string, error)
	GetRCAccount(ctx context.Context, name string) (*hive.RCAccount, error)
}

// CommentCoster supplies the current per-comment RC cost.
type CommentCoster interface {
	CommentCost(ctx context.Context) (int64, error)
}

// Registry is the read side of the referred-user registry.
type Registry interface {
	Get(account string) (registry.ReferredUser, bool)
}

// Clock abstracts time for production and testing
type Clock interface {
	Now() time.Time
}

// Config are the thresholds the predicates compare against.
type Config struct {
	// MuteAccount owns the admin-maintained mute list. Empty disables
	// the mute check.
	MuteAccount string
	// Referrer is the beneficiary name marking referral attribution.
	Referrer string
	// MaxOwnedPower is the HP ceiling above which an account no longer
	// needs support.
	MaxOwnedPower float64
	// MinPostMultiplier scales the per-comment cost into the low-RC
	// threshold.
	MinPostMultiplier int
	// DelegationLength is how long a delegation may stand before it
	// expires.
	DelegationLength time.Duration
}

// Evaluator exposes the eligibility predicates. Each call fetches fresh
// state, is idempotent and composes with boolean short-circuiting.
type Evaluator struct {
	chain    ChainReader
	costs    CommentCoster
	registry Registry
	clock    Clock
	cfg      Config
}

// NewEvaluator constructs an Evaluator with the given collaborators.
func NewEvaluator(chain ChainReader, costs CommentCoster, reg Registry, clock Clock, cfg Config) *Evaluator {
	if cfg.MaxOwnedPower == 0 {
		cfg.MaxOwnedPower = DefaultMaxOwnedPower
	}
	if cfg.MinPostMultiplier == 0 {
		cfg.MinPostMultiplier = DefaultMinPostMultiplier
	}
	return &Evaluator{
		chain:    chain,
		costs:    costs,
		registry: reg,
		clock:    clock,
		cfg:      cfg,
	}
}

// IsMuted reports whether the mute-list account has muted the given
// account. No configured mute list means nobody is muted.
func (e *Evaluator) IsMuted(ctx context.Context, account string) (bool, error) {
	if e.cfg.MuteAccount == "" {
		return false, nil
	}
	muted, err := e.chain.GetMutedAccounts(ctx, e.cfg.MuteAccount)
	if err != nil {
		return false, fmt.Errorf("fetching mute list: %w", err)
	}
	for _, m := range muted {
		if m == account {
			return true, nil
		}
	}
	return false, nil
}

// HasEnoughOwnedPower reports whether the account's own stake, excluding
// any delegations, meets the configured HP ceiling.
func (e *Evaluator) HasEnoughOwnedPower(ctx context.Context, account string) (bool, error) {
	acc, err := e.chain.GetAccount(ctx, account)
	if err != nil {
		return false, err
	}
	if acc == nil {
		return false, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	props, err := e.chain.GetDynamicGlobalProperties(ctx)
	if err != nil {
		return false, err
	}
	owned := hive.HPFromVests(hive.OwnedVests(acc), props)
	return owned >= e.cfg.MaxOwnedPower, nil
}

// HasLowResourceCredits reports whether the account's projected RC budget
// is below the cost of a few typical comments.
func (e *Evaluator) HasLowResourceCredits(ctx context.Context, account string) (bool, error) {
	rcAcc, err := e.chain.GetRCAccount(ctx, account)
	if err != nil {
		return false, err
	}
	if rcAcc == nil {
		return false, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	cost, err := e.costs.CommentCost(ctx)
	if err != nil {
		return false, fmt.Errorf("estimating comment cost: %w", err)
	}

	elapsed := e.clock.Now().Unix() - rcAcc.RCManabar.LastUpdateTime
	projected := ProjectMana(int64(rcAcc.RCManabar.CurrentMana), int64(rcAcc.MaxRC), elapsed)

	return projected < int64(e.cfg.MinPostMultiplier)*cost, nil
}

// HasBeneficiarySetting reports whether the account's profile metadata
// still declares the configured referrer as a "referrer" beneficiary.
func (e *Evaluator) HasBeneficiarySetting(ctx context.Context, account string) (bool, error) {
	acc, err := e.chain.GetAccount(ctx, account)
	if err != nil {
		return false, err
	}
	if acc == nil {
		return false, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	return hive.HasReferrerBeneficiary(acc.JSONMetadata, e.cfg.Referrer), nil
}

// IsCurrentlyDelegatedTo reports whether the registry holds the account
// in the delegated state.
func (e *Evaluator) IsCurrentlyDelegatedTo(account string) bool {
	u, ok := e.registry.Get(account)
	return ok && u.Status == registry.StatusDelegated
}

// HasExceededDelegationWindow reports whether a delegated account has
// held its delegation past the configured window.
func (e *Evaluator) HasExceededDelegationWindow(account string) bool {
	u, ok := e.registry.Get(account)
	if !ok || u.Status != registry.StatusDelegated {
		return false
	}
	return e.clock.Now().After(u.DelegatedAt.Add(e.cfg.DelegationLength))
}
