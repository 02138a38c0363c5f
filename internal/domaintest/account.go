package domaintest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/superbrain63/superbrain-ai/internal/domain"
)

func NewUserID(t *testing.T) string {
	t.Helper()
	id, err := uuid.NewRandom()
	require.NoError(t, err)
	return "user-" + id.String()
}

type AccountBuilder struct {
	account domain.Account
}

func NewAccount(userID string, periodStart time.Time) *AccountBuilder {
	return &AccountBuilder{account: domain.NewAccount(userID, periodStart)}
}

func (b *AccountBuilder) WithTier(tier domain.Tier) *AccountBuilder {
	b.account.Tier = tier
	return b
}

func (b *AccountBuilder) WithUsageCount(count int64) *AccountBuilder {
	b.account.UsageCount = count
	return b
}

func (b *AccountBuilder) WithPeriodStart(periodStart time.Time) *AccountBuilder {
	b.account.PeriodStart = periodStart
	return b
}

func (b *AccountBuilder) Build() domain.Account {
	return b.account
}
