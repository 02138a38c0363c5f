package completionprovider

import (
	"context"

	"github.com/superbrain63/superbrain-ai/internal/domain"
)

type CompletionProvider interface {
	// Raises domain.ErrTemporarilyUnavailable if the provider is throttled locally. The call may be retried later.
	Complete(ctx context.Context, messages []domain.ChatMessage) (domain.Completion, error)
}
