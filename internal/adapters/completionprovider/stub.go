package completionprovider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/superbrain63/superbrain-ai/internal/config"
	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/ratelimiting"
)

const stubModel = "stub-echo"

// StubCompletionProvider echoes the last message back. Used in development without an API key.
type StubCompletionProvider struct{}

func NewStubCompletionProvider() *StubCompletionProvider {
	return &StubCompletionProvider{}
}

func (p *StubCompletionProvider) Complete(ctx context.Context, messages []domain.ChatMessage) (domain.Completion, error) {
	if len(messages) == 0 {
		return domain.Completion{}, fmt.Errorf("no messages to complete")
	}
	last := messages[len(messages)-1]
	content := fmt.Sprintf("echo: %s", last.Content)
	return domain.Completion{
		Content:     content,
		Model:       stubModel,
		TotalTokens: len(content),
	}, nil
}

func NewOpenAIOrStub(conf config.Config, logger *slog.Logger) (CompletionProvider, error) {
	if conf.OpenAIAPIKey() == "" {
		if conf.IsDevelopment() {
			logger.Warn("Missing OpenAI API key. Falling back to stub completion provider.")
			return NewStubCompletionProvider(), nil
		}
		return nil, fmt.Errorf("missing OpenAI API key in non-development environment")
	}

	// Stays below the account wide requests per minute limit
	limiter := ratelimiting.NewWindowLimitRequestLimiter(500, time.Minute, time.Now, time.After)

	provider, err := NewOpenAI(OpenAIConfig{
		APIKey: conf.OpenAIAPIKey(),
		Model:  conf.OpenAIModel(),
	}, limiter)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI provider: %w", err)
	}
	return provider, nil
}
