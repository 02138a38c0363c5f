package app

import (
	"context"
	"errors"
	"time"

	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/logging"
	"github.com/superbrain63/superbrain-ai/internal/reporting"
)

// RepairAccount resets userID to a safe state: zero usage in a period starting now.
// A known tier is kept, anything else falls back to free.
// This is the only path that rewrites an account which fails validation.
type RepairAccount func(ctx context.Context, userID string) (domain.Account, error)

func BuildRepairAccount(repo accountRepository, policy domain.QuotaPolicy, nowFunc func() time.Time) RepairAccount {
	return func(ctx context.Context, userID string) (domain.Account, error) {
		if err := domain.ValidateUserID(userID); err != nil {
			return domain.Account{}, err
		}

		now := nowFunc()

		var previous domain.Account
		repaired, err := repo.UpdateAccount(ctx, userID, func(current domain.Account) (domain.Account, error) {
			previous = current

			tier := current.Tier
			if _, err := policy.QuotaFor(tier); err != nil {
				tier = domain.TierFree
			}
			return domain.Account{
				UserID:      userID,
				Tier:        tier,
				UsageCount:  0,
				PeriodStart: now,
			}, nil
		})
		if errors.Is(err, domain.ErrCorruptState) {
			// The store could not decode the record at all
			repaired, err = repo.PutAccount(ctx, domain.NewAccount(userID, now))
		}
		if err != nil {
			// NOTE: repository implementations handle their own error reporting
			return domain.Account{}, err
		}

		ctx = reporting.AddAccountToContext(ctx, previous)
		logging.FromContext(ctx).WarnContext(ctx, "Repaired account",
			"previousTier", string(previous.Tier),
			"previousUsageCount", previous.UsageCount,
			"previousPeriodStart", previous.PeriodStart,
			"tier", string(repaired.Tier),
		)

		return repaired, nil
	}
}
