// Package hive is a minimal Hive JSON-RPC client covering the account,
// resource-credit and delegation queries the delegation manager needs,
// plus a wallet-backed broadcast surface and an operation stream.
package hive

import (
	"errors"
	"time"
)

// Sentinel errors for failure cases
var (
	// ErrTransientRPC marks network or node failures. Callers retry on the
	// next natural trigger, never in a tight loop.
	ErrTransientRPC = errors.New("transient RPC failure")
	// ErrBroadcastRejected marks a broadcast the network refused
	// (signature, balance or policy rejection).
	ErrBroadcastRejected = errors.New("broadcast rejected")
)

// Network constants
const (
	// ManaRegenSeconds is the full manabar regeneration period (5 days).
	ManaRegenSeconds = 432000
	// BlockIntervalSeconds is the target block time.
	BlockIntervalSeconds = 3
	// TimeLayout is the timestamp format used by condenser API responses.
	TimeLayout = "2006-01-02T15:04:05"
)

// ParseTime parses a condenser API timestamp (UTC, no zone suffix).
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}
