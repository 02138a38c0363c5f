package app

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"

	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/logging"
)

// RedeemAccessCode upgrades userID to premium when code matches the configured access code.
// Usage and period are kept, so redeeming mid-period does not hand out a fresh quota.
type RedeemAccessCode func(ctx context.Context, userID string, code string) (domain.Account, error)

func BuildRedeemAccessCode(applyTierChange ApplyTierChange, accessCode string) RedeemAccessCode {
	expected := sha256.Sum256([]byte(accessCode))

	return func(ctx context.Context, userID string, code string) (domain.Account, error) {
		if accessCode == "" {
			return domain.Account{}, domain.ErrAccessCodesDisabled
		}

		// Equal-length digests keep the comparison constant time
		given := sha256.Sum256([]byte(code))
		if subtle.ConstantTimeCompare(expected[:], given[:]) != 1 {
			logging.FromContext(ctx).InfoContext(ctx, "Rejected access code")
			return domain.Account{}, domain.ErrInvalidAccessCode
		}

		return applyTierChange(ctx, userID, domain.TierPremium, TierChangeSourceAccessCode)
	}
}
