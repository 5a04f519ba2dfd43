// Package policy implements the eligibility predicates the delegation
// lifecycle consults, over live account state and the registry.
package policy

import (
	"math/big"

	"github.com/d-buzz/delegation-manager/pkg/hive"
)

// ProjectMana projects a manabar forward by elapsed seconds using the
// network's linear regeneration model:
//
//	min(maxMana, currentMana + elapsed*maxMana/regenPeriod)
//
// The clamp is exact: the result never exceeds maxMana, a zero elapsed
// returns currentMana unchanged, and the projection is monotonic in
// elapsed time. The multiplication is done in wide integers because
// elapsed*maxMana overflows int64 for large stakes.
func ProjectMana(currentMana, maxMana, elapsedSeconds int64) int64 {
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	regen := new(big.Int).SetInt64(elapsedSeconds)
	regen.Mul(regen, big.NewInt(maxMana))
	regen.Quo(regen, big.NewInt(hive.ManaRegenSeconds))

	projected := new(big.Int).SetInt64(currentMana)
	projected.Add(projected, regen)

	if projected.Cmp(big.NewInt(maxMana)) > 0 {
		return maxMana
	}
	return projected.Int64()
}
