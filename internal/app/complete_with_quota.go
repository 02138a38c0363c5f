package app

import (
	"context"
	"fmt"
	"time"

	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/logging"
)

const completionTimeout = 60 * time.Second

type completionProvider interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (domain.Completion, error)
}

type CompletionResult struct {
	Decision domain.Decision
	Usage    domain.Usage
	// Nil when the request was denied
	Completion *domain.Completion
}

// CompleteWithQuota forwards the conversation to the completion provider only if
// the user's quota admits it. A failed completion still counts against the quota.
type CompleteWithQuota func(ctx context.Context, userID string, messages []domain.ChatMessage) (CompletionResult, error)

func BuildCompleteWithQuota(checkAndConsume CheckAndConsume, provider completionProvider) CompleteWithQuota {
	return func(ctx context.Context, userID string, messages []domain.ChatMessage) (CompletionResult, error) {
		decision, usage, err := checkAndConsume(ctx, userID)
		if err != nil {
			return CompletionResult{}, err
		}

		result := CompletionResult{Decision: decision, Usage: usage}
		if !decision.Admitted() {
			return result, nil
		}

		ctx, cancel := context.WithTimeout(ctx, completionTimeout)
		defer cancel()

		completion, err := provider.Complete(ctx, messages)
		if err != nil {
			// NOTE: completionProvider implementations handle their own error reporting
			logging.FromContext(ctx).WarnContext(ctx, "Completion failed after quota was consumed", "error", err.Error())
			return result, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
		}

		result.Completion = &completion
		return result, nil
	}
}
