package app

import (
	"context"

	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/logging"
)

type TierChangeSource string

const (
	TierChangeSourceAdmin      TierChangeSource = "admin"
	TierChangeSourceAccessCode TierChangeSource = "access_code"
	TierChangeSourcePayment    TierChangeSource = "payment"
)

// ApplyTierChange moves userID to tier, leaving usage and period untouched.
// Applying the tier the account already has is a no-op.
type ApplyTierChange func(ctx context.Context, userID string, tier domain.Tier, source TierChangeSource) (domain.Account, error)

func BuildApplyTierChange(repo accountRepository, policy domain.QuotaPolicy) ApplyTierChange {
	return func(ctx context.Context, userID string, tier domain.Tier, source TierChangeSource) (domain.Account, error) {
		if err := domain.ValidateUserID(userID); err != nil {
			return domain.Account{}, err
		}
		if _, err := policy.QuotaFor(tier); err != nil {
			return domain.Account{}, err
		}

		changed := false
		account, err := repo.UpdateAccount(ctx, userID, func(current domain.Account) (domain.Account, error) {
			if err := current.Validate(); err != nil {
				return current, err
			}
			changed = current.Tier != tier
			return current.WithTier(tier), nil
		})
		if err != nil {
			return domain.Account{}, handleAccountError(ctx, "apply_tier_change", account, err)
		}

		if changed {
			recordTierChange(ctx, string(source), tier)
			logging.FromContext(ctx).InfoContext(ctx, "Changed tier", "tier", string(tier), "source", string(source))
		}

		return account, nil
	}
}
