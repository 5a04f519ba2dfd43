package hive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Wallet broadcasts operations through a cli_wallet-compatible JSON-RPC
// endpoint. The wallet holds the delegator's keys and signs server-side,
// so no signing key ever passes through this process.
type Wallet struct {
	httpClient *http.Client
	baseURL    string
}

// NewWallet creates a Wallet client against the given endpoint
func NewWallet(baseURL string) *Wallet {
	return NewWalletWithHTTP(&http.Client{Timeout: 30 * time.Second}, baseURL)
}

// NewWalletWithHTTP creates a Wallet client with custom HTTP client and endpoint
func NewWalletWithHTTP(httpClient *http.Client, baseURL string) *Wallet {
	return &Wallet{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// broadcast performs a wallet RPC call. RPC-level errors mean the wallet
// or the network refused the operation, so they surface as
// ErrBroadcastRejected rather than a transient failure.
func (w *Wallet) broadcast(ctx context.Context, method string, params any) error {
	err := call(ctx, w.httpClient, w.baseURL, method, params, nil)
	if err == nil {
		return nil
	}
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%w: %s: %w", ErrBroadcastRejected, method, rpcErr)
	}
	return err
}

// Delegate delegates vesting shares from one account to another.
// A zero amount revokes the delegation entirely.
func (w *Wallet) Delegate(ctx context.Context, from, to string, vests float64) error {
	params := []any{from, to, FormatVests(vests), true}
	return w.broadcast(ctx, "delegate_vesting_shares", params)
}

// TransferWithMemo sends a transfer carrying a memo. The manager uses
// minimal transfers as its notification transport.
func (w *Wallet) TransferWithMemo(ctx context.Context, from, to, amount, memo string) error {
	params := []any{from, to, amount, memo, true}
	return w.broadcast(ctx, "transfer", params)
}

// ClaimRewards claims the account's pending reward balances.
func (w *Wallet) ClaimRewards(ctx context.Context, account string, rewardHive, rewardHBD, rewardVests string) error {
	params := []any{account, rewardHive, rewardHBD, rewardVests, true}
	return w.broadcast(ctx, "claim_reward_balance", params)
}
