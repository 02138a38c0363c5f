package domain

import (
	"fmt"
	"time"
	"unicode"
)

const maxUserIDLength = 128

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

func ParseTier(raw string) (Tier, error) {
	switch Tier(raw) {
	case TierFree:
		return TierFree, nil
	case TierPremium:
		return TierPremium, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTier, raw)
}

// ValidateUserID checks that userID can be used as an account key
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(userID) > maxUserIDLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidUserID, maxUserIDLength)
	}
	for _, r := range userID {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("%w: contains whitespace or control characters", ErrInvalidUserID)
		}
	}
	return nil
}

type Account struct {
	UserID      string
	Tier        Tier
	UsageCount  int64
	PeriodStart time.Time
}

// NewAccount returns the account a user gets on their first interaction
func NewAccount(userID string, now time.Time) Account {
	return Account{
		UserID:      userID,
		Tier:        TierFree,
		UsageCount:  0,
		PeriodStart: now,
	}
}

// Validate checks the invariants of a stored account.
// It never modifies the account.
func (a Account) Validate() error {
	if a.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrCorruptState)
	}
	if a.UsageCount < 0 {
		return fmt.Errorf("%w: negative usage count %d for user %q", ErrCorruptState, a.UsageCount, a.UserID)
	}
	if a.PeriodStart.IsZero() {
		return fmt.Errorf("%w: missing period start for user %q", ErrCorruptState, a.UserID)
	}
	return nil
}

// WithTier returns a copy of the account on the given tier.
// Usage and period are left as they are.
func (a Account) WithTier(tier Tier) Account {
	a.Tier = tier
	return a
}

func (a Account) Equal(other Account) bool {
	return a.UserID == other.UserID &&
		a.Tier == other.Tier &&
		a.UsageCount == other.UsageCount &&
		a.PeriodStart.Equal(other.PeriodStart)
}
