// Package registry is the durable record of every account referred to the
// delegation program and of its delegation lifecycle.
package registry

import "time"

// Status is a referred user's lifecycle state. The empty string is the
// initial state: referred but not yet supported.
type Status string

const (
	StatusInactive           Status = ""
	StatusDelegated          Status = "delegated"
	StatusMuted              Status = "muted"
	StatusExpired            Status = "expired"
	StatusBeneficiaryRemoved Status = "beneficiary_removed"
	StatusGraduated          Status = "graduated"
)

// Terminal reports whether the status marks a withdrawn delegation.
// Terminal states are never left once entered.
func (s Status) Terminal() bool {
	switch s {
	case StatusMuted, StatusExpired, StatusBeneficiaryRemoved, StatusGraduated:
		return true
	}
	return false
}

// ReferredUser is one referred account and its delegation lifecycle.
// Records are created when the account is first observed and never deleted.
type ReferredUser struct {
	Account             string    `json:"account"`
	Weight              int       `json:"weight"`
	CreatedAt           time.Time `json:"created_at"`
	Status              Status    `json:"status,omitempty"`
	DelegatedAt         time.Time `json:"delegated_at,omitzero"`
	DelegationAmount    float64   `json:"delegation_amount,omitempty"`
	DelegationRemovedAt time.Time `json:"delegation_removed_at,omitzero"`
}
