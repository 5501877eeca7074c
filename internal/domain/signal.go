package domain

import (
	"time"

	"github.com/google/uuid"
)

type SignalName string

const (
	SignalLogicConsistency   SignalName = "logic_consistency"
	SignalCitationEvidence   SignalName = "citation_evidence"
	SignalSourceCredibility  SignalName = "source_credibility"
	SignalSocialEvidence     SignalName = "social_evidence"
	SignalMediaForensics     SignalName = "media_forensics"
	SignalPropagationPattern SignalName = "propagation_pattern"
)

func ValidSignalName(n string) bool {
	switch SignalName(n) {
	case SignalLogicConsistency, SignalCitationEvidence, SignalSourceCredibility,
		SignalSocialEvidence, SignalMediaForensics, SignalPropagationPattern:
		return true
	}
	return false
}

// SignalResult is one analyzer's opinion on a claim. Immutable once stored.
type SignalResult struct {
	ID      uuid.UUID `json:"id"`
	ClaimID uuid.UUID `json:"claim_id"`

	SignalName SignalName `json:"signal_name"`
	Verdict    Verdict    `json:"verdict"`
	Confidence float64    `json:"confidence"`
	Flags      []string   `json:"flags,omitempty"`
	RawResult  string     `json:"raw_result,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// SignalOutput is what a SignalSource returns before the result is attached
// to a claim and persisted.
type SignalOutput struct {
	Verdict    Verdict  `json:"verdict"`
	Confidence float64  `json:"confidence"`
	Flags      []string `json:"flags,omitempty"`
	RawResult  string   `json:"raw_result,omitempty"`
}
