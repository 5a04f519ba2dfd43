package hive

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAmount reads the numeric part of an asset string such as
// "123.456789 VESTS" or "0.001 HIVE". Malformed input yields zero.
func ParseAmount(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return v
}

// FormatVests renders a VESTS asset string with the canonical 6 decimals.
func FormatVests(vests float64) string {
	return fmt.Sprintf("%.6f VESTS", vests)
}

// HPFromVests converts vesting shares to Hive Power at the current
// chain-wide conversion rate.
func HPFromVests(vests float64, props *DynamicGlobalProperties) float64 {
	totalShares := ParseAmount(props.TotalVestingShares)
	if totalShares == 0 {
		return 0
	}
	return ParseAmount(props.TotalVestingFundHive) * vests / totalShares
}

// VestsFromHP converts Hive Power to vesting shares at the current
// chain-wide conversion rate.
func VestsFromHP(hp float64, props *DynamicGlobalProperties) float64 {
	fund := ParseAmount(props.TotalVestingFundHive)
	if fund == 0 {
		return 0
	}
	return hp * ParseAmount(props.TotalVestingShares) / fund
}

// OwnedVests returns the account's own vesting shares, excluding received
// and outgoing delegations.
func OwnedVests(acc *Account) float64 {
	return ParseAmount(acc.VestingShares)
}

// DelegatableVests returns the vesting shares still available to delegate:
// own shares minus pending power-down and minus what is already delegated.
func DelegatableVests(acc *Account) float64 {
	pendingWithdraw := float64(acc.ToWithdraw-acc.Withdrawn) / 1e6
	return ParseAmount(acc.VestingShares) - pendingWithdraw - ParseAmount(acc.DelegatedVestingShares)
}

// HasPendingRewards reports whether the account has any unclaimed reward
// balances.
func HasPendingRewards(acc *Account) bool {
	return ParseAmount(acc.RewardHiveBalance) > 0 ||
		ParseAmount(acc.RewardHBDBalance) > 0 ||
		ParseAmount(acc.RewardVestingBalance) > 0
}
