// Package rc implements the resource-credit cost model: the network's
// canonical integer price curve and the typical-comment cost profile.
package rc

import (
	"math/big"

	"github.com/d-buzz/delegation-manager/pkg/hive"
)

// Resource type names as served by rc_api.get_resource_params.
const (
	ResourceHistoryBytes  = "resource_history_bytes"
	ResourceNewAccounts   = "resource_new_accounts"
	ResourceMarketBytes   = "resource_market_bytes"
	ResourceStateBytes    = "resource_state_bytes"
	ResourceExecutionTime = "resource_execution_time"
)

// State-object size and execution-time constants, in the network's
// scaled units.
const (
	stateBytesScale = 10000

	transactionByteSize       = 174
	transactionObjectBaseSize = 35 * transactionByteSize
	commentObjectBaseSize     = 201 * stateBytesScale
	commentPermlinkCharSize   = 1 * stateBytesScale
	commentParentPermlinkSize = 2 * stateBytesScale
	commentOperationExecTime  = 114100
)

// Typical-comment profile used by CommentCost.
const (
	typicalCommentTxSize        = 1000
	typicalPermlinkLength       = 10
	typicalParentPermlinkLength = 10
)

// ComputeCost evaluates the convex price curve for one resource type:
//
//	floor((regen*coeffA >> shift + 1) * count / (coeffB + max(0, pool))) + 1
//
// The shift-then-add-one-then-multiply order matches the network's integer
// definition exactly and must not be reassociated; downstream validation
// depends on the precise integer result. Intermediates exceed 64 bits.
func ComputeCost(curve hive.PriceCurve, pool, count, regen int64) int64 {
	num := new(big.Int).SetInt64(regen)
	num.Mul(num, big.NewInt(int64(curve.CoeffA)))
	num.Rsh(num, uint(curve.Shift))
	num.Add(num, big.NewInt(1))
	num.Mul(num, big.NewInt(count))

	denom := int64(curve.CoeffB)
	if pool > 0 {
		denom += pool
	}
	if denom <= 0 {
		denom = 1 // degenerate market, never free
	}

	num.Quo(num, big.NewInt(denom))
	return num.Int64() + 1
}

// RegenRate derives the chain-wide RC regeneration rate from total network
// stake: total vesting shares (in micro-units) regenerated over the 5-day
// period, expressed per block.
func RegenRate(props *hive.DynamicGlobalProperties) int64 {
	totalShares := hive.ParseAmount(props.TotalVestingShares)
	return int64(totalShares * 1e6 / (hive.ManaRegenSeconds / hive.BlockIntervalSeconds))
}

// resourceCount is the abstract consumption vector priced by the curve.
type resourceCount map[string]int64

// commentResourceCount builds the documented typical-comment vector:
// transaction history bytes, the comment's state-object footprint and the
// comment execution-time constant. New-account tokens are listed at zero:
// a comment creates no account, but the zero count still prices at the
// curve's floor of 1 RC.
func commentResourceCount() resourceCount {
	stateBytes := int64(commentObjectBaseSize)
	stateBytes += commentPermlinkCharSize * typicalPermlinkLength
	stateBytes += commentParentPermlinkSize * typicalParentPermlinkLength
	stateBytes += transactionObjectBaseSize
	stateBytes += transactionByteSize * typicalCommentTxSize

	return resourceCount{
		ResourceHistoryBytes:  typicalCommentTxSize,
		ResourceNewAccounts:   0,
		ResourceStateBytes:    stateBytes,
		ResourceExecutionTime: commentOperationExecTime,
	}
}

// Cost prices a consumption vector against the current market parameters,
// summing per-resource-type costs. Each count is first scaled by the
// type's resource unit.
func Cost(counts resourceCount, params map[string]hive.ResourceParams, pools map[string]hive.ResourcePool, regen int64) int64 {
	if regen == 0 {
		return 0
	}
	var total int64
	for resource, count := range counts {
		p, ok := params[resource]
		if !ok {
			continue
		}
		count *= int64(p.ResourceDynamics.ResourceUnit)
		total += ComputeCost(p.PriceCurveParams, int64(pools[resource].Pool), count, regen)
	}
	return total
}

// CommentCost prices the typical comment against the current market
// parameters.
func CommentCost(params map[string]hive.ResourceParams, pools map[string]hive.ResourcePool, regen int64) int64 {
	return Cost(commentResourceCount(), params, pools, regen)
}
