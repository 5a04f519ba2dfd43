package hive

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Int64 decodes JSON values the node serialises either as numbers or as
// quoted strings (mana values and curve coefficients exceed 2^53, so the
// node quotes them for JavaScript clients).
type Int64 int64

func (i *Int64) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*i = Int64(v)
	return nil
}

// Manabar is the regenerating-resource state attached to accounts.
type Manabar struct {
	CurrentMana    Int64 `json:"current_mana"`
	LastUpdateTime int64 `json:"last_update_time"`
}

// Account is a condenser_api.get_accounts profile. Only the fields the
// delegation manager reads are decoded.
type Account struct {
	Name                   string  `json:"name"`
	JSONMetadata           string  `json:"json_metadata"`
	VestingShares          string  `json:"vesting_shares"`
	ReceivedVestingShares  string  `json:"received_vesting_shares"`
	DelegatedVestingShares string  `json:"delegated_vesting_shares"`
	ToWithdraw             Int64   `json:"to_withdraw"`
	Withdrawn              Int64   `json:"withdrawn"`
	VotingManabar          Manabar `json:"voting_manabar"`
	RewardHiveBalance      string  `json:"reward_hive_balance"`
	RewardHBDBalance       string  `json:"reward_hbd_balance"`
	RewardVestingBalance   string  `json:"reward_vesting_balance"`
}

// accountMetadata is the json_metadata envelope carrying the referral marker.
type accountMetadata struct {
	Beneficiaries []Beneficiary `json:"beneficiaries"`
}

// Beneficiary is a reward-split entry in account profile metadata. Entries
// labelled "referrer" attribute the account to a referral program.
type Beneficiary struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
	Label  string `json:"label"`
}

// ParseBeneficiaries extracts the beneficiary entries from raw account
// json_metadata. Missing or malformed metadata yields no entries.
func ParseBeneficiaries(jsonMetadata string) []Beneficiary {
	if jsonMetadata == "" {
		return nil
	}
	var meta accountMetadata
	if err := json.Unmarshal([]byte(jsonMetadata), &meta); err != nil {
		return nil
	}
	return meta.Beneficiaries
}

// HasReferrerBeneficiary reports whether the metadata declares the given
// account as a "referrer" beneficiary.
func HasReferrerBeneficiary(jsonMetadata, referrer string) bool {
	for _, b := range ParseBeneficiaries(jsonMetadata) {
		if b.Name == referrer && b.Label == "referrer" {
			return true
		}
	}
	return false
}

// DynamicGlobalProperties is the subset of chain-wide state the manager
// uses for time, power conversion and RC regeneration.
type DynamicGlobalProperties struct {
	Time                 string `json:"time"`
	HeadBlockNumber      int64  `json:"head_block_number"`
	TotalVestingFundHive string `json:"total_vesting_fund_hive"`
	TotalVestingShares   string `json:"total_vesting_shares"`
}

// RCAccount is an rc_api.find_rc_accounts entry.
type RCAccount struct {
	Account   string  `json:"account"`
	RCManabar Manabar `json:"rc_manabar"`
	MaxRC     Int64   `json:"max_rc"`
}

// PriceCurve holds the per-resource-type convex price curve coefficients.
type PriceCurve struct {
	CoeffA Int64 `json:"coeff_a"`
	CoeffB Int64 `json:"coeff_b"`
	Shift  uint8 `json:"shift"`
}

// ResourceParams describes one resource type's pricing and dynamics.
type ResourceParams struct {
	PriceCurveParams PriceCurve `json:"price_curve_params"`
	ResourceDynamics struct {
		ResourceUnit Int64 `json:"resource_unit"`
	} `json:"resource_dynamics_params"`
}

// ResourcePool is the current occupancy of one resource pool.
type ResourcePool struct {
	Pool Int64 `json:"pool"`
}

// VestingDelegation is one outstanding delegation from a delegator.
type VestingDelegation struct {
	Delegator         string `json:"delegator"`
	Delegatee         string `json:"delegatee"`
	VestingShares     string `json:"vesting_shares"`
	MinDelegationTime string `json:"min_delegation_time"`
}
