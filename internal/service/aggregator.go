package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/veritasnet/veritas/internal/domain"
)

const (
	// TrueThreshold and FalseThreshold split the 0-100 score into verdicts.
	// Symmetric around 50.
	TrueThreshold  = 65.0
	FalseThreshold = 35.0

	// DefaultSignalWeight applies to analyzers missing from the weight map.
	DefaultSignalWeight = 0.1

	// NeutralScore and NeutralConfidence are the designed-for zero-weight
	// fallback. Division by zero is a handled case, not an error.
	NeutralScore      = 50.0
	NeutralConfidence = 0.5

	decisivenessFactor  = 0.6
	avgConfidenceFactor = 0.4
)

// DefaultSignalWeights is the configured trust placed in each analyzer.
func DefaultSignalWeights() map[domain.SignalName]float64 {
	return map[domain.SignalName]float64{
		domain.SignalLogicConsistency:   0.3,
		domain.SignalCitationEvidence:   0.3,
		domain.SignalSourceCredibility:  0.2,
		domain.SignalMediaForensics:     0.25,
		domain.SignalSocialEvidence:     0.15,
		domain.SignalPropagationPattern: 0.15,
	}
}

// Aggregator deterministically combines per-signal verdicts into one overall
// score, verdict and confidence. Pure: no stores, no side effects.
type Aggregator struct {
	weights map[domain.SignalName]float64
}

func NewAggregator(weights map[domain.SignalName]float64) *Aggregator {
	if weights == nil {
		weights = DefaultSignalWeights()
	}
	return &Aggregator{weights: weights}
}

func (a *Aggregator) weightFor(name domain.SignalName) float64 {
	w, ok := a.weights[name]
	if !ok {
		return DefaultSignalWeight
	}
	return w
}

// sanitizeConfidence treats malformed confidence values as neutral.
func sanitizeConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 || c > 1 {
		return NeutralConfidence
	}
	return c
}

// Aggregate combines the stored signal results for one claim. Safe to call
// with an empty slice: the neutral default is returned.
func (a *Aggregator) Aggregate(signals []domain.SignalResult) *domain.AggregationResult {
	res := &domain.AggregationResult{}

	var confidenceSum float64
	for _, sig := range signals {
		conf := sanitizeConfidence(sig.Confidence)
		confidenceSum += conf

		effective := a.weightFor(sig.SignalName) * conf
		switch domain.NormalizeVerdict(string(sig.Verdict)) {
		case domain.VerdictTrue:
			res.TrueWeight += effective
			res.TrueVotes++
		case domain.VerdictFalse:
			res.FalseWeight += effective
			res.FalseVotes++
		default:
			res.UnclearWeight += effective
			res.UnclearVotes++
		}
	}
	res.TotalWeight = res.TrueWeight + res.FalseWeight + res.UnclearWeight

	if res.TotalWeight == 0 {
		res.OverallScore = NeutralScore
		res.Verdict = domain.VerdictUnclear
		res.Confidence = NeutralConfidence
		res.Explanation = "no usable signals; defaulting to unclear"
		return res
	}

	res.OverallScore = (res.TrueWeight*100 + res.UnclearWeight*50) / res.TotalWeight
	res.Verdict = verdictForScore(res.OverallScore)

	avgConfidence := NeutralConfidence
	if len(signals) > 0 {
		avgConfidence = confidenceSum / float64(len(signals))
	}
	decisiveness := math.Abs(res.OverallScore-NeutralScore) / NeutralScore
	res.Confidence = clamp01(decisivenessFactor*decisiveness + avgConfidenceFactor*avgConfidence)

	res.Explanation = explain(signals, res)
	return res
}

func verdictForScore(score float64) domain.Verdict {
	switch {
	case score >= TrueThreshold:
		return domain.VerdictTrue
	case score <= FalseThreshold:
		return domain.VerdictFalse
	default:
		return domain.VerdictUnclear
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// explain produces a deterministic summary of which signals drove the
// verdict. Narrative only; not part of the aggregation contract.
func explain(signals []domain.SignalResult, res *domain.AggregationResult) string {
	type contribution struct {
		name   domain.SignalName
		weight float64
	}
	var agreeing []contribution
	for _, sig := range signals {
		if domain.NormalizeVerdict(string(sig.Verdict)) != res.Verdict {
			continue
		}
		agreeing = append(agreeing, contribution{sig.SignalName, sanitizeConfidence(sig.Confidence)})
	}
	sort.Slice(agreeing, func(i, j int) bool {
		if agreeing[i].weight != agreeing[j].weight {
			return agreeing[i].weight > agreeing[j].weight
		}
		return agreeing[i].name < agreeing[j].name
	})

	if len(agreeing) == 0 {
		return fmt.Sprintf("verdict %s at score %.1f with no single agreeing signal", res.Verdict, res.OverallScore)
	}

	names := make([]string, 0, len(agreeing))
	for _, c := range agreeing {
		names = append(names, string(c.name))
	}
	return fmt.Sprintf("verdict %s at score %.1f, led by %s (%d/%d signals agree)",
		res.Verdict, res.OverallScore, strings.Join(names, ", "), len(agreeing), len(signals))
}
