package domain

import (
	"time"

	"github.com/google/uuid"
)

type VotingStatus string

const (
	VotingStatusOpen      VotingStatus = "open"
	VotingStatusClosed    VotingStatus = "closed"
	VotingStatusCancelled VotingStatus = "cancelled"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

func ValidUrgency(u string) bool {
	switch Urgency(u) {
	case UrgencyLow, UrgencyNormal, UrgencyHigh:
		return true
	}
	return false
}

// VotingSession is an open arbitration window for one claim. At most one
// session per claim may be open at a time.
type VotingSession struct {
	ID      uuid.UUID `json:"id"`
	ClaimID uuid.UUID `json:"claim_id"`

	RouteReason      string  `json:"route_reason,omitempty"`
	Urgency          Urgency `json:"urgency"`
	VotingWindowSecs int     `json:"voting_window_secs"`
	MinVotesRequired int     `json:"min_votes_required"`

	Status VotingStatus `json:"status"`

	OpenedAt time.Time  `json:"opened_at"`
	ClosesAt time.Time  `json:"closes_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

func (s *VotingSession) IsOpen() bool {
	return s.Status == VotingStatusOpen
}

// Expired reports whether the voting window has passed. An expired session
// is still "open" until the tally closes it.
func (s *VotingSession) Expired(now time.Time) bool {
	return !now.Before(s.ClosesAt)
}

// Vote is one voter's choice on a session. One vote per (session, voter).
type Vote struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	ClaimID   uuid.UUID `json:"claim_id"`
	VoterID   uuid.UUID `json:"voter_id"`

	Choice       Verdict `json:"choice"`
	StakedAmount float64 `json:"staked_amount"`

	CreatedAt time.Time `json:"created_at"`
}

// TallyResult is the outcome of the whole-vote tally for one session.
type TallyResult struct {
	Verdict       Verdict             `json:"verdict"`
	Confidence    float64             `json:"confidence"`
	StakeByChoice map[Verdict]float64 `json:"stake_by_choice"`
	TotalStake    float64             `json:"total_stake"`
	VoteCount     int                 `json:"vote_count"`
	// FellBack is true when participation was below the session minimum and
	// the AI verdict was used instead of the stake tally.
	FellBack bool `json:"fell_back"`
}
