package signals

import (
	"context"
	"strings"

	"github.com/veritasnet/veritas/internal/domain"
)

// HeuristicCitationAnalyzer is a deterministic citation check used when no
// model provider is configured. It never asserts truth; it only grades how
// well-sourced the claim arrives.
type HeuristicCitationAnalyzer struct{}

func (a *HeuristicCitationAnalyzer) Name() domain.SignalName {
	return domain.SignalCitationEvidence
}

func (a *HeuristicCitationAnalyzer) Evaluate(ctx context.Context, claim *domain.Claim) (*domain.SignalOutput, error) {
	if len(claim.ExtractedURLs) == 0 {
		return &domain.SignalOutput{
			Verdict:    domain.VerdictUnclear,
			Confidence: 0.6,
			Flags:      []string{"no_citations"},
		}, nil
	}

	var suspicious []string
	for _, raw := range claim.ExtractedURLs {
		u := strings.ToLower(raw)
		if strings.HasPrefix(u, "http://") {
			suspicious = append(suspicious, "insecure_citation")
		}
		if strings.Contains(u, "bit.ly/") || strings.Contains(u, "tinyurl.com/") {
			suspicious = append(suspicious, "shortened_citation")
		}
	}

	if len(suspicious) > 0 {
		return &domain.SignalOutput{
			Verdict:    domain.VerdictUnclear,
			Confidence: 0.4,
			Flags:      dedupe(suspicious),
		}, nil
	}

	// Citations exist and look direct. That supports the claim weakly; the
	// analyzer cannot verify the sources actually say what is claimed.
	return &domain.SignalOutput{
		Verdict:    domain.VerdictTrue,
		Confidence: 0.3,
	}, nil
}

// HeuristicLogicAnalyzer flags shallow structural problems: hedging stacked
// with certainty, absolute quantifiers, claims too short to evaluate.
type HeuristicLogicAnalyzer struct{}

func (a *HeuristicLogicAnalyzer) Name() domain.SignalName {
	return domain.SignalLogicConsistency
}

var absoluteMarkers = []string{"always", "never", "everyone", "no one", "100%", "guaranteed"}

func (a *HeuristicLogicAnalyzer) Evaluate(ctx context.Context, claim *domain.Claim) (*domain.SignalOutput, error) {
	text := strings.ToLower(claim.NormalizedText)

	if len(strings.Fields(text)) < 4 {
		return &domain.SignalOutput{
			Verdict:    domain.VerdictUnclear,
			Confidence: 0.7,
			Flags:      []string{"claim_too_short"},
		}, nil
	}

	var flags []string
	for _, marker := range absoluteMarkers {
		if strings.Contains(text, marker) {
			flags = append(flags, "absolute_quantifier")
			break
		}
	}

	if len(flags) > 0 {
		return &domain.SignalOutput{
			Verdict:    domain.VerdictUnclear,
			Confidence: 0.35,
			Flags:      flags,
		}, nil
	}
	return &domain.SignalOutput{
		Verdict:    domain.VerdictUnclear,
		Confidence: 0.2,
	}, nil
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
