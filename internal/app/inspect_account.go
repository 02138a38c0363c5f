package app

import (
	"context"

	"github.com/superbrain63/superbrain-ai/internal/domain"
)

// InspectAccount returns the stored account as is, including accounts that fail validation
type InspectAccount func(ctx context.Context, userID string) (domain.Account, error)

func BuildInspectAccount(repo accountRepository) InspectAccount {
	return func(ctx context.Context, userID string) (domain.Account, error) {
		if err := domain.ValidateUserID(userID); err != nil {
			return domain.Account{}, err
		}
		return repo.GetAccount(ctx, userID)
	}
}
