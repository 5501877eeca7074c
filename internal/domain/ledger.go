package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerAccount holds one voter's funds. Invariant: 0 <= locked <= balance.
// Available() is the only amount withdrawable or newly stakeable.
type LedgerAccount struct {
	VoterID uuid.UUID `json:"voter_id"`
	Balance float64   `json:"balance"`
	Locked  float64   `json:"locked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *LedgerAccount) Available() float64 {
	return a.Balance - a.Locked
}

// Market is the staking pool tied to one claim's voting session.
// Invariant: the per-voter stake entries always sum to StakesFor/StakesAgainst.
type Market struct {
	ClaimID uuid.UUID `json:"claim_id"`

	IsOpen    bool `json:"is_open"`
	IsSettled bool `json:"is_settled"`

	StakesFor     float64 `json:"stakes_for"`
	StakesAgainst float64 `json:"stakes_against"`

	CreatedAt time.Time  `json:"created_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}

func (m *Market) TotalStakes() float64 {
	return m.StakesFor + m.StakesAgainst
}

// Stake is one voter's position in one market. Both sides may be non-zero:
// staking for and against the same claim is permitted and nets reputation to
// zero at settlement. Entries are zeroed exactly once when the voter claims,
// which is what prevents double settlement.
type Stake struct {
	ClaimID uuid.UUID `json:"claim_id"`
	VoterID uuid.UUID `json:"voter_id"`

	For     float64 `json:"stake_for"`
	Against float64 `json:"stake_against"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Stake) Total() float64 {
	return s.For + s.Against
}

// Settlement is the computed outcome of one voter's claim against a settled
// market, applied once.
type Settlement struct {
	ClaimID uuid.UUID `json:"claim_id"`
	VoterID uuid.UUID `json:"voter_id"`

	Unlocked        float64 `json:"unlocked"`
	Reward          float64 `json:"reward"`
	Penalty         float64 `json:"penalty"`
	ReputationDelta int     `json:"reputation_delta"`
	NewBalance      float64 `json:"new_balance"`
}
