package signals

import (
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/veritasnet/veritas/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI    = "openai"
	ProviderHeuristic = "heuristic"
	ProviderMock      = "mock"
)

// NewSources builds the analyzer set for a provider name. The heuristic
// provider runs without credentials and covers only the signals that can be
// judged deterministically; the mock provider returns fixed unclear outputs
// for every signal.
func NewSources(provider, apiKey, model string) ([]domain.SignalSource, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai signal provider")
		}
		return newLLMAnalyzers(openai.NewClient(apiKey), model), nil

	case ProviderHeuristic:
		return []domain.SignalSource{
			&HeuristicLogicAnalyzer{},
			&HeuristicCitationAnalyzer{},
		}, nil

	case ProviderMock:
		sources := make([]domain.SignalSource, 0, 6)
		for _, name := range []domain.SignalName{
			domain.SignalLogicConsistency,
			domain.SignalCitationEvidence,
			domain.SignalSourceCredibility,
			domain.SignalSocialEvidence,
			domain.SignalMediaForensics,
			domain.SignalPropagationPattern,
		} {
			sources = append(sources, NewMockAnalyzer(name))
		}
		return sources, nil

	default:
		return nil, fmt.Errorf("unknown signal provider: %s (valid options: openai, heuristic, mock)", provider)
	}
}
