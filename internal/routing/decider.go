package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/veritasnet/veritas/internal/domain"
	"go.uber.org/zap"
)

// Config tunes the rule-based decider. Zero values fall back to defaults.
type Config struct {
	// AutoResolveConfidence is the floor above which an unflagged AI verdict
	// stands without arbitration.
	AutoResolveConfidence float64
	// StaleAfter archives claims older than this instead of sending them to
	// a vote; the AI verdict still resolves them.
	StaleAfter time.Duration

	VotingWindowSecs int
	MinVotesRequired int
}

const (
	defaultAutoResolveConfidence = 0.85
	defaultStaleAfter            = 30 * 24 * time.Hour
)

// Decider is the default routing rule set: confident, unflagged verdicts
// resolve directly; anything contested goes to the community unless the
// claim is too stale to be worth arbitrating.
type Decider struct {
	cfg    Config
	logger *zap.Logger

	now func() time.Time
}

func NewDecider(cfg Config, logger *zap.Logger) *Decider {
	if cfg.AutoResolveConfidence <= 0 {
		cfg.AutoResolveConfidence = defaultAutoResolveConfidence
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	return &Decider{cfg: cfg, logger: logger, now: time.Now}
}

var _ domain.RoutingDecider = (*Decider)(nil)

func (d *Decider) Decide(ctx context.Context, claim *domain.Claim, agg *domain.AggregationResult) (*domain.RouteDecision, error) {
	age := d.now().UTC().Sub(claim.CreatedAt)

	flagged := len(claim.AIFlags) > 0
	confident := agg.Confidence >= d.cfg.AutoResolveConfidence && agg.Verdict != domain.VerdictUnclear

	switch {
	case confident && !flagged:
		return &domain.RouteDecision{
			Route:  domain.RouteAIOnly,
			Reason: fmt.Sprintf("confidence %.2f above auto-resolve floor with no flags", agg.Confidence),
		}, nil

	case age > d.cfg.StaleAfter:
		return &domain.RouteDecision{
			Route:  domain.RouteDeferArchived,
			Reason: fmt.Sprintf("claim is %d days old, past the arbitration horizon", int(age.Hours()/24)),
		}, nil

	default:
		return &domain.RouteDecision{
			Route:            domain.RouteCommunityVote,
			Reason:           voteReason(agg, flagged),
			Urgency:          urgencyFor(claim),
			VotingWindowSecs: d.cfg.VotingWindowSecs,
			MinVotesRequired: d.cfg.MinVotesRequired,
		}, nil
	}
}

func voteReason(agg *domain.AggregationResult, flagged bool) string {
	if flagged {
		return "analyzers raised flags"
	}
	if agg.Verdict == domain.VerdictUnclear {
		return "signals did not converge"
	}
	return fmt.Sprintf("confidence %.2f below auto-resolve floor", agg.Confidence)
}

// urgencyFor escalates claims that are actively spreading: recent, with
// media attached or a platform origin.
func urgencyFor(claim *domain.Claim) domain.Urgency {
	if claim.HasMedia() {
		return domain.UrgencyHigh
	}
	if claim.Platform != "" {
		return domain.UrgencyNormal
	}
	return domain.UrgencyLow
}
