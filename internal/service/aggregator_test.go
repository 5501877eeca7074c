package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veritasnet/veritas/internal/domain"
)

func sig(name domain.SignalName, verdict domain.Verdict, confidence float64) domain.SignalResult {
	return domain.SignalResult{SignalName: name, Verdict: verdict, Confidence: confidence}
}

func TestAggregator_NoSignals(t *testing.T) {
	agg := NewAggregator(nil)

	res := agg.Aggregate(nil)

	assert.Equal(t, NeutralScore, res.OverallScore)
	assert.Equal(t, domain.VerdictUnclear, res.Verdict)
	assert.Equal(t, NeutralConfidence, res.Confidence)
	assert.Zero(t, res.TotalWeight)
}

func TestAggregator_AllZeroConfidence(t *testing.T) {
	agg := NewAggregator(nil)

	res := agg.Aggregate([]domain.SignalResult{
		sig(domain.SignalLogicConsistency, domain.VerdictTrue, 0),
		sig(domain.SignalCitationEvidence, domain.VerdictFalse, 0),
	})

	assert.Equal(t, NeutralScore, res.OverallScore)
	assert.Equal(t, domain.VerdictUnclear, res.Verdict)
	assert.Equal(t, NeutralConfidence, res.Confidence)
}

func TestAggregator_BalancedOpposition(t *testing.T) {
	// Two equally weighted, equally confident signals on opposite sides must
	// land exactly on the neutral score.
	agg := NewAggregator(map[domain.SignalName]float64{
		domain.SignalLogicConsistency: 0.3,
		domain.SignalCitationEvidence: 0.3,
	})

	res := agg.Aggregate([]domain.SignalResult{
		sig(domain.SignalLogicConsistency, domain.VerdictTrue, 0.9),
		sig(domain.SignalCitationEvidence, domain.VerdictFalse, 0.9),
	})

	assert.InDelta(t, 0.27, res.TrueWeight, 1e-9)
	assert.InDelta(t, 0.27, res.FalseWeight, 1e-9)
	assert.InDelta(t, 50.0, res.OverallScore, 1e-9)
	assert.Equal(t, domain.VerdictUnclear, res.Verdict)
}

func TestAggregator_UnanimousTrue(t *testing.T) {
	agg := NewAggregator(map[domain.SignalName]float64{
		domain.SignalLogicConsistency: 0.3,
		domain.SignalCitationEvidence: 0.3,
	})

	res := agg.Aggregate([]domain.SignalResult{
		sig(domain.SignalLogicConsistency, domain.VerdictTrue, 1.0),
		sig(domain.SignalCitationEvidence, domain.VerdictTrue, 1.0),
	})

	assert.InDelta(t, 100.0, res.OverallScore, 1e-9)
	assert.Equal(t, domain.VerdictTrue, res.Verdict)
	// decisiveness 1.0, average confidence 1.0
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
}

func TestAggregator_VerdictThresholds(t *testing.T) {
	tests := []struct {
		score   float64
		verdict domain.Verdict
	}{
		{100, domain.VerdictTrue},
		{65, domain.VerdictTrue},
		{64.99, domain.VerdictUnclear},
		{50, domain.VerdictUnclear},
		{35.01, domain.VerdictUnclear},
		{35, domain.VerdictFalse},
		{0, domain.VerdictFalse},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.verdict, verdictForScore(tt.score), "score %.2f", tt.score)
	}
}

func TestAggregator_ScoreBounds(t *testing.T) {
	agg := NewAggregator(nil)

	cases := [][]domain.SignalResult{
		{sig(domain.SignalLogicConsistency, domain.VerdictTrue, 1.0)},
		{sig(domain.SignalLogicConsistency, domain.VerdictFalse, 1.0)},
		{
			sig(domain.SignalLogicConsistency, domain.VerdictTrue, 0.2),
			sig(domain.SignalCitationEvidence, domain.VerdictFalse, 0.8),
			sig(domain.SignalSocialEvidence, domain.VerdictUnclear, 0.5),
		},
		{
			sig(domain.SignalMediaForensics, domain.VerdictFalse, 0.95),
			sig(domain.SignalPropagationPattern, domain.VerdictFalse, 0.7),
		},
	}
	for _, signals := range cases {
		res := agg.Aggregate(signals)
		assert.GreaterOrEqual(t, res.OverallScore, 0.0)
		assert.LessOrEqual(t, res.OverallScore, 100.0)
		assert.GreaterOrEqual(t, res.Confidence, 0.0)
		assert.LessOrEqual(t, res.Confidence, 1.0)
		assert.Equal(t, verdictForScore(res.OverallScore), res.Verdict)
	}
}

func TestAggregator_Deterministic(t *testing.T) {
	agg := NewAggregator(nil)
	signals := []domain.SignalResult{
		sig(domain.SignalLogicConsistency, domain.VerdictTrue, 0.8),
		sig(domain.SignalCitationEvidence, domain.VerdictUnclear, 0.6),
		sig(domain.SignalSourceCredibility, domain.VerdictTrue, 0.7),
	}

	first := agg.Aggregate(signals)
	for i := 0; i < 10; i++ {
		again := agg.Aggregate(signals)
		require.Equal(t, first, again)
	}
}

func TestAggregator_UnknownSignalGetsDefaultWeight(t *testing.T) {
	agg := NewAggregator(map[domain.SignalName]float64{})

	res := agg.Aggregate([]domain.SignalResult{
		sig(domain.SignalName("novel_analyzer"), domain.VerdictTrue, 1.0),
	})

	assert.InDelta(t, DefaultSignalWeight, res.TrueWeight, 1e-9)
	assert.Equal(t, domain.VerdictTrue, res.Verdict)
}

func TestAggregator_MalformedConfidenceTreatedAsNeutral(t *testing.T) {
	agg := NewAggregator(nil)

	res := agg.Aggregate([]domain.SignalResult{
		sig(domain.SignalLogicConsistency, domain.VerdictTrue, math.NaN()),
		sig(domain.SignalCitationEvidence, domain.VerdictTrue, 1.7),
		sig(domain.SignalSourceCredibility, domain.VerdictTrue, -0.2),
	})

	// All three collapse to confidence 0.5 and still count toward true.
	assert.Equal(t, 3, res.TrueVotes)
	assert.InDelta(t, 100.0, res.OverallScore, 1e-9)
	assert.Equal(t, domain.VerdictTrue, res.Verdict)
}

func TestAggregator_UnknownVerdictCountsAsUnclear(t *testing.T) {
	agg := NewAggregator(nil)

	res := agg.Aggregate([]domain.SignalResult{
		sig(domain.SignalLogicConsistency, domain.Verdict("maybe"), 0.9),
	})

	assert.Equal(t, 1, res.UnclearVotes)
	assert.Equal(t, domain.VerdictUnclear, res.Verdict)
	assert.InDelta(t, 50.0, res.OverallScore, 1e-9)
}

func TestAggregator_MixedSignalsUnclearContribution(t *testing.T) {
	// unclear pulls the score toward 50 rather than toward either pole
	agg := NewAggregator(map[domain.SignalName]float64{
		domain.SignalLogicConsistency: 0.3,
		domain.SignalSocialEvidence:   0.3,
	})

	res := agg.Aggregate([]domain.SignalResult{
		sig(domain.SignalLogicConsistency, domain.VerdictTrue, 1.0),
		sig(domain.SignalSocialEvidence, domain.VerdictUnclear, 1.0),
	})

	// (0.3*100 + 0.3*50) / 0.6 = 75
	assert.InDelta(t, 75.0, res.OverallScore, 1e-9)
	assert.Equal(t, domain.VerdictTrue, res.Verdict)
}

func TestAggregator_ExplanationNamesAgreeingSignals(t *testing.T) {
	agg := NewAggregator(nil)

	res := agg.Aggregate([]domain.SignalResult{
		sig(domain.SignalLogicConsistency, domain.VerdictTrue, 0.9),
		sig(domain.SignalCitationEvidence, domain.VerdictTrue, 0.9),
	})

	assert.Contains(t, res.Explanation, "logic_consistency")
	assert.Contains(t, res.Explanation, "citation_evidence")
}
