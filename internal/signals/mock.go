package signals

import (
	"context"

	"github.com/veritasnet/veritas/internal/domain"
)

// MockAnalyzer is a configurable signal source for testing and local
// development. Set Output/Err to control what Evaluate returns.
type MockAnalyzer struct {
	SignalName domain.SignalName
	Output     domain.SignalOutput
	Err        error

	// Call tracking for assertions
	Calls []string
}

func NewMockAnalyzer(name domain.SignalName) *MockAnalyzer {
	return &MockAnalyzer{
		SignalName: name,
		Output: domain.SignalOutput{
			Verdict:    domain.VerdictUnclear,
			Confidence: 0.5,
		},
	}
}

func (m *MockAnalyzer) Name() domain.SignalName { return m.SignalName }

func (m *MockAnalyzer) Evaluate(ctx context.Context, claim *domain.Claim) (*domain.SignalOutput, error) {
	m.Calls = append(m.Calls, claim.NormalizedText)
	if m.Err != nil {
		return nil, m.Err
	}
	out := m.Output
	return &out, nil
}
