package ml

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/oncallops/runbookd/pkg/config"
	"github.com/oncallops/runbookd/pkg/models"
)

// AnthropicEngine implements Engine against the Anthropic API.
type AnthropicEngine struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

// NewAnthropicEngine creates an engine from settings.
func NewAnthropicEngine(settings *config.Settings) (*AnthropicEngine, error) {
	if settings.AnthropicAPIKey == "" {
		return nil, config.NewConfigurationError("ANTHROPIC_API_KEY", "required for the anthropic ml engine")
	}
	return &AnthropicEngine{
		client: anthropic.NewClient(option.WithAPIKey(settings.AnthropicAPIKey)),
		model:  settings.MLModel,
		logger: slog.With("component", "ml_anthropic"),
	}, nil
}

// call sends one system+user exchange and returns the text response.
func (e *AnthropicEngine) call(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	message, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("empty response from model %s", e.model)
	}
	return b.String(), nil
}

func (e *AnthropicEngine) Classify(ctx context.Context, problemDescription string) (*models.Classification, error) {
	system, user := buildClassificationPrompt(problemDescription)
	raw, err := e.call(ctx, system, user, 1024)
	if err != nil {
		return nil, &EngineError{Operation: "classify", Err: err}
	}
	return parseClassification(raw), nil
}

func (e *AnthropicEngine) Diagnose(ctx context.Context, problemDescription string, findings []models.Finding) (*models.DiagnosticResult, error) {
	system, user := buildDiagnosisPrompt(problemDescription, findings)
	raw, err := e.call(ctx, system, user, 2048)
	if err != nil {
		return nil, &EngineError{Operation: "diagnose", Err: err}
	}
	return parseDiagnosticResult(raw), nil
}

func (e *AnthropicEngine) Recommend(ctx context.Context, problemDescription string, diagnosis *models.DiagnosticResult, findings []models.Finding) (*models.RecommendationSet, error) {
	system, user := buildResolutionPrompt(problemDescription, diagnosis, findings)
	raw, err := e.call(ctx, system, user, 2048)
	if err != nil {
		return nil, &EngineError{Operation: "recommend", Err: err}
	}
	return parseRecommendationSet(raw), nil
}

func (e *AnthropicEngine) Summarize(ctx context.Context, incident *models.Incident) (string, error) {
	system, user := buildSummarizationPrompt(incident)
	raw, err := e.call(ctx, system, user, 2048)
	if err != nil {
		return "", &EngineError{Operation: "summarize", Err: err}
	}
	return cleanSummary(raw), nil
}
