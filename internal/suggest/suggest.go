// Package suggest proposes chore names using the Anthropic Messages API.
package suggest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	applog "choreboard/internal/log"
	"choreboard/internal/metrics"
)

// Fallback answers. The service never returns an error to its caller.
const (
	UnconfiguredSuggestion = "Nourrir le poisson rouge"
	ErrorSuggestion        = "Aider à mettre la table"
	EmptySuggestion        = "Faire son lit"
)

const (
	prompt = "Propose une seule tâche ménagère simple pour un enfant. " +
		"Réponds uniquement avec le nom de la tâche, en quelques mots, sans ponctuation ni explication."
	maxTokens   = 20
	temperature = 0.8
)

// Metric sources.
const (
	SourceModel        = "model"
	SourceUnconfigured = "unconfigured"
	SourceError        = "error"
	SourceEmpty        = "empty"
)

// MessageCreator is the part of the Anthropic client the service uses.
type MessageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type Service struct {
	messages MessageCreator
	model    anthropic.Model
	metrics  *metrics.Metrics
	logger   *applog.Logger
}

// New builds a service from an API key. An empty key yields a service that
// always answers UnconfiguredSuggestion.
func New(apiKey, model string, m *metrics.Metrics, logger *slog.Logger) *Service {
	if apiKey == "" {
		return NewWithClient(nil, model, m, logger)
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return NewWithClient(&client.Messages, model, m, logger)
}

// NewWithClient builds a service around an existing message client. A nil
// client means unconfigured.
func NewWithClient(messages MessageCreator, model string, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		messages: messages,
		model:    anthropic.Model(model),
		metrics:  m,
		logger:   applog.Wrap(logger, applog.ComponentSuggest),
	}
}

func (s *Service) Configured() bool {
	return s.messages != nil
}

// Suggest returns one chore name.
func (s *Service) Suggest(ctx context.Context) string {
	if s.messages == nil {
		s.metrics.SuggestionServed(SourceUnconfigured)
		return UnconfiguredSuggestion
	}

	msg, err := s.messages.New(ctx, anthropic.MessageNewParams{
		Model:       s.model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Suggestion request failed", applog.FieldError, err)
		s.metrics.SuggestionServed(SourceError)
		return ErrorSuggestion
	}

	text := clean(firstText(msg))
	if text == "" {
		s.metrics.SuggestionServed(SourceEmpty)
		return EmptySuggestion
	}
	s.metrics.SuggestionServed(SourceModel)
	return text
}

func firstText(msg *anthropic.Message) string {
	if msg == nil {
		return ""
	}
	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text
		}
	}
	return ""
}

func clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}
