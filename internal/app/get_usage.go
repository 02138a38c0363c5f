package app

import (
	"context"
	"errors"
	"time"

	"github.com/superbrain63/superbrain-ai/internal/domain"
)

// GetUsage reports the user's standing without consuming anything.
// Users that have never made a request see a fresh free account.
type GetUsage func(ctx context.Context, userID string) (domain.Usage, error)

func BuildGetUsage(repo accountRepository, policy domain.QuotaPolicy, nowFunc func() time.Time) GetUsage {
	return func(ctx context.Context, userID string) (domain.Usage, error) {
		if err := domain.ValidateUserID(userID); err != nil {
			return domain.Usage{}, err
		}

		now := nowFunc()

		account, err := repo.GetAccount(ctx, userID)
		if errors.Is(err, domain.ErrAccountNotFound) {
			account = domain.NewAccount(userID, now)
		} else if err != nil {
			return domain.Usage{}, handleAccountError(ctx, "get_usage", account, err)
		}

		usage, err := policy.Usage(account, now)
		if err != nil {
			return domain.Usage{}, handleAccountError(ctx, "get_usage", account, err)
		}

		return usage, nil
	}
}
