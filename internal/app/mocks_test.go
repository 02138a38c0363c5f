package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/superbrain63/superbrain-ai/internal/adapters/accountrepository"
	"github.com/superbrain63/superbrain-ai/internal/domain"
)

var testNow = time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC)

func fixedNow() time.Time {
	return testNow
}

func newTestPolicy(t *testing.T, free int64) domain.QuotaPolicy {
	t.Helper()
	policy, err := domain.NewQuotaPolicy(domain.QuotaTable{
		domain.TierFree:    domain.LimitedQuota(free),
		domain.TierPremium: domain.UnlimitedQuota(),
	}, 24*time.Hour)
	require.NoError(t, err)
	return policy
}

// failingRepository fails every operation with err
type failingRepository struct {
	err error
}

func (r *failingRepository) GetAccount(ctx context.Context, userID string) (domain.Account, error) {
	return domain.Account{}, r.err
}

func (r *failingRepository) UpdateAccount(ctx context.Context, userID string, update accountrepository.UpdateFunc) (domain.Account, error) {
	return domain.Account{}, r.err
}

func (r *failingRepository) PutAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	return domain.Account{}, r.err
}

type mockCompletionProvider struct {
	t *testing.T

	mu         sync.Mutex
	calls      int
	completion domain.Completion
	err        error
}

func (m *mockCompletionProvider) Complete(ctx context.Context, messages []domain.ChatMessage) (domain.Completion, error) {
	m.t.Helper()
	require.NotEmpty(m.t, messages)
	_, hasDeadline := ctx.Deadline()
	require.True(m.t, hasDeadline)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.completion, m.err
}
