package domain

import (
	"time"

	"github.com/google/uuid"
)

type Verdict string

const (
	VerdictTrue    Verdict = "true"
	VerdictFalse   Verdict = "false"
	VerdictUnclear Verdict = "unclear"
)

func ValidVerdict(v string) bool {
	switch Verdict(v) {
	case VerdictTrue, VerdictFalse, VerdictUnclear:
		return true
	}
	return false
}

// NormalizeVerdict maps unknown verdict strings to unclear rather than
// rejecting them. Analyzer output is untrusted.
func NormalizeVerdict(v string) Verdict {
	if ValidVerdict(v) {
		return Verdict(v)
	}
	return VerdictUnclear
}

type ClaimStatus string

const (
	ClaimStatusPendingAI   ClaimStatus = "pending_ai"
	ClaimStatusAIEvaluated ClaimStatus = "ai_evaluated"
	ClaimStatusNeedsVote   ClaimStatus = "needs_vote"
	ClaimStatusResolved    ClaimStatus = "resolved"
	ClaimStatusDeferred    ClaimStatus = "deferred"
)

func ValidClaimStatus(s string) bool {
	switch ClaimStatus(s) {
	case ClaimStatusPendingAI, ClaimStatusAIEvaluated, ClaimStatusNeedsVote, ClaimStatusResolved, ClaimStatusDeferred:
		return true
	}
	return false
}

type ClaimType string

const (
	ClaimTypeText  ClaimType = "text"
	ClaimTypeImage ClaimType = "image"
	ClaimTypeVideo ClaimType = "video"
	ClaimTypeLink  ClaimType = "link"
	ClaimTypeMixed ClaimType = "mixed"
)

func ValidClaimType(t string) bool {
	switch ClaimType(t) {
	case ClaimTypeText, ClaimTypeImage, ClaimTypeVideo, ClaimTypeLink, ClaimTypeMixed:
		return true
	}
	return false
}

type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformReddit    Platform = "reddit"
	PlatformFarcaster Platform = "farcaster"
	PlatformOther     Platform = "other"
)

func ValidPlatform(p string) bool {
	switch Platform(p) {
	case PlatformTwitter, PlatformReddit, PlatformFarcaster, PlatformOther:
		return true
	}
	return false
}

type Claim struct {
	ID          uuid.UUID `json:"id"`
	SubmitterID uuid.UUID `json:"submitter_id"`

	RawInput       string    `json:"raw_input,omitempty"`
	NormalizedText string    `json:"normalized_text"`
	Type           ClaimType `json:"type"`

	Platform       Platform `json:"platform,omitempty"`
	PlatformPostID string   `json:"platform_post_id,omitempty"`
	PlatformAuthor string   `json:"platform_author,omitempty"`
	PlatformURL    string   `json:"platform_url,omitempty"`

	ExtractedURLs []string `json:"extracted_urls,omitempty"`
	MediaImages   []string `json:"media_images,omitempty"`
	MediaVideos   []string `json:"media_videos,omitempty"`

	Embedding []float32 `json:"-"`

	AIVerdict     *Verdict `json:"ai_verdict,omitempty"`
	AIConfidence  *float64 `json:"ai_confidence,omitempty"`
	AIFlags       []string `json:"ai_flags,omitempty"`
	AIExplanation string   `json:"ai_explanation,omitempty"`

	FinalVerdict    *Verdict `json:"final_verdict,omitempty"`
	FinalConfidence *float64 `json:"final_confidence,omitempty"`

	Status ClaimStatus `json:"status"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// HasMedia reports whether any media attachments were extracted at intake.
// The signal selection policy uses this to decide whether media forensics runs.
func (c *Claim) HasMedia() bool {
	return len(c.MediaImages) > 0 || len(c.MediaVideos) > 0
}

func (c *Claim) IsResolved() bool {
	return c.Status == ClaimStatusResolved
}

// AggregationResult is the deterministic combination of every signal stored
// for one claim. It is derived state: recomputable from the signal rows at
// any time, never persisted beyond the claim's ai_* fields.
type AggregationResult struct {
	OverallScore float64 `json:"overall_score"`
	Verdict      Verdict `json:"verdict"`
	Confidence   float64 `json:"confidence"`

	TrueWeight    float64 `json:"true_weight"`
	FalseWeight   float64 `json:"false_weight"`
	UnclearWeight float64 `json:"unclear_weight"`
	TotalWeight   float64 `json:"total_weight"`

	TrueVotes    int `json:"true_votes"`
	FalseVotes   int `json:"false_votes"`
	UnclearVotes int `json:"unclear_votes"`

	Explanation string `json:"explanation,omitempty"`
}

type ClaimWithScore struct {
	Claim
	Score float32 `json:"score"`
}
