package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/veritasnet/veritas/internal/domain"
)

const (
	defaultChatModel = openai.GPT4oMini
	maxOutputTokens  = 400
)

// LLMAnalyzer is one model-backed signal. All six analyzers share the
// completion plumbing; the prompt decides what gets scrutinized.
type LLMAnalyzer struct {
	name   domain.SignalName
	client *openai.Client
	model  string

	buildPrompt func(claim *domain.Claim) string
}

func (a *LLMAnalyzer) Name() domain.SignalName { return a.name }

func (a *LLMAnalyzer) Evaluate(ctx context.Context, claim *domain.Claim) (*domain.SignalOutput, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a careful fact-checking analyzer. You only output JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: a.buildPrompt(claim),
			},
		},
		MaxTokens:   maxOutputTokens,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", a.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s completion returned no choices", a.name)
	}

	out, err := parseSignalOutput(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.name, err)
	}
	return out, nil
}

type signalResponse struct {
	Verdict    string   `json:"verdict"`
	Confidence float64  `json:"confidence"`
	Flags      []string `json:"flags"`
	Rationale  string   `json:"rationale"`
}

// parseSignalOutput tolerates markdown fences and out-of-vocabulary verdicts;
// model output is untrusted.
func parseSignalOutput(raw string) (*domain.SignalOutput, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed signalResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("parse analyzer response: %w (raw: %s)", err, raw)
	}

	confidence := parsed.Confidence
	if confidence < 0 || confidence > 1 {
		confidence = 0.5
	}

	return &domain.SignalOutput{
		Verdict:    domain.NormalizeVerdict(strings.ToLower(strings.TrimSpace(parsed.Verdict))),
		Confidence: confidence,
		Flags:      parsed.Flags,
		RawResult:  cleaned,
	}, nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "(unknown)"
	}
	return s
}

func newLLMAnalyzers(client *openai.Client, model string) []domain.SignalSource {
	if model == "" {
		model = defaultChatModel
	}
	return []domain.SignalSource{
		&LLMAnalyzer{
			name: domain.SignalLogicConsistency, client: client, model: model,
			buildPrompt: func(c *domain.Claim) string {
				return fmt.Sprintf(logicConsistencyPrompt, c.NormalizedText)
			},
		},
		&LLMAnalyzer{
			name: domain.SignalCitationEvidence, client: client, model: model,
			buildPrompt: func(c *domain.Claim) string {
				return fmt.Sprintf(citationEvidencePrompt, c.NormalizedText, joinOrNone(c.ExtractedURLs))
			},
		},
		&LLMAnalyzer{
			name: domain.SignalSourceCredibility, client: client, model: model,
			buildPrompt: func(c *domain.Claim) string {
				return fmt.Sprintf(sourceCredibilityPrompt, c.NormalizedText, orUnknown(string(c.Platform)), orUnknown(c.PlatformAuthor))
			},
		},
		&LLMAnalyzer{
			name: domain.SignalSocialEvidence, client: client, model: model,
			buildPrompt: func(c *domain.Claim) string {
				return fmt.Sprintf(socialEvidencePrompt, c.NormalizedText, orUnknown(string(c.Platform)))
			},
		},
		&LLMAnalyzer{
			name: domain.SignalMediaForensics, client: client, model: model,
			buildPrompt: func(c *domain.Claim) string {
				return fmt.Sprintf(mediaForensicsPrompt, c.NormalizedText, joinOrNone(c.MediaImages), joinOrNone(c.MediaVideos))
			},
		},
		&LLMAnalyzer{
			name: domain.SignalPropagationPattern, client: client, model: model,
			buildPrompt: func(c *domain.Claim) string {
				return fmt.Sprintf(propagationPatternPrompt, c.NormalizedText, orUnknown(string(c.Platform)))
			},
		},
	}
}
