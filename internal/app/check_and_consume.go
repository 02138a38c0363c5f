package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/superbrain63/superbrain-ai/internal/adapters/accountrepository"
	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/logging"
	"github.com/superbrain63/superbrain-ai/internal/reporting"
)

type accountRepository interface {
	GetAccount(ctx context.Context, userID string) (domain.Account, error)
	UpdateAccount(ctx context.Context, userID string, update accountrepository.UpdateFunc) (domain.Account, error)
	PutAccount(ctx context.Context, account domain.Account) (domain.Account, error)
}

// CheckAndConsume admits or denies one request for userID.
// Admitted requests are counted against the user's quota, denied ones are not.
type CheckAndConsume func(ctx context.Context, userID string) (domain.Decision, domain.Usage, error)

func BuildCheckAndConsume(repo accountRepository, policy domain.QuotaPolicy, nowFunc func() time.Time) CheckAndConsume {
	return func(ctx context.Context, userID string) (domain.Decision, domain.Usage, error) {
		if err := domain.ValidateUserID(userID); err != nil {
			return domain.Decision{}, domain.Usage{}, err
		}

		now := nowFunc()

		var decision domain.Decision
		account, err := repo.UpdateAccount(ctx, userID, func(current domain.Account) (domain.Account, error) {
			d, next, err := policy.Evaluate(current, now)
			if err != nil {
				return current, err
			}
			decision = d
			return next, nil
		})
		if err != nil {
			return domain.Decision{}, domain.Usage{}, handleAccountError(ctx, "check_and_consume", account, err)
		}

		usage, err := policy.Usage(account, now)
		if err != nil {
			// The account was just evaluated with the same policy
			err := fmt.Errorf("failed to compute usage after evaluation: %w", err)
			reporting.Report(ctx, err)
			return domain.Decision{}, domain.Usage{}, err
		}

		recordDecision(ctx, decision, account.Tier)
		ctx = logging.AddAccountToContext(ctx, account.UserID, string(account.Tier), account.UsageCount)
		logging.FromContext(ctx).InfoContext(ctx, "Evaluated request", "outcome", string(decision.Outcome))

		return decision, usage, nil
	}
}

// handleAccountError reports corrupt accounts with their stored state attached
func handleAccountError(ctx context.Context, operation string, account domain.Account, err error) error {
	if errors.Is(err, domain.ErrCorruptState) {
		recordCorruptState(ctx, operation)
		ctx = reporting.AddAccountToContext(ctx, account)
		logging.FromContext(ctx).ErrorContext(ctx, "Refusing to act on corrupt account", "operation", operation, "error", err.Error())
		reporting.Report(ctx, err)
		return err
	}
	// NOTE: repository implementations handle their own error reporting
	return fmt.Errorf("%s: %w", operation, err)
}
