package accountrepository

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/domaintest"
)

type repositoryFactory func(t *testing.T, nowFunc func() time.Time) AccountRepository

func requireEqualAccounts(t *testing.T, expected, actual domain.Account) {
	t.Helper()
	require.Equal(t, expected.UserID, actual.UserID)
	require.Equal(t, expected.Tier, actual.Tier)
	require.Equal(t, expected.UsageCount, actual.UsageCount)

	// Time can get truncated when round-tripping through a store
	require.WithinDuration(t, expected.PeriodStart, actual.PeriodStart, time.Millisecond)
}

// runRepositoryTests exercises the behaviour every AccountRepository implementation shares
func runRepositoryTests(t *testing.T, newRepository repositoryFactory) {
	t.Helper()

	now := time.Date(2025, time.March, 14, 15, 9, 26, 0, time.UTC)
	nowFunc := func() time.Time { return now }

	policy, err := domain.NewQuotaPolicy(domain.QuotaTable{
		domain.TierFree:    domain.LimitedQuota(1),
		domain.TierPremium: domain.UnlimitedQuota(),
	}, 24*time.Hour)
	require.NoError(t, err)

	consume := func(decision *domain.Decision) UpdateFunc {
		return func(current domain.Account) (domain.Account, error) {
			d, next, err := policy.Evaluate(current, now)
			if err != nil {
				return domain.Account{}, err
			}
			*decision = d
			return next, nil
		}
	}

	t.Run("get missing account", func(t *testing.T) {
		t.Parallel()
		repo := newRepository(t, nowFunc)

		_, err := repo.GetAccount(t.Context(), domaintest.NewUserID(t))
		require.ErrorIs(t, err, domain.ErrAccountNotFound)
	})

	t.Run("update creates a fresh account", func(t *testing.T) {
		t.Parallel()
		repo := newRepository(t, nowFunc)
		userID := domaintest.NewUserID(t)

		var seen domain.Account
		account, err := repo.UpdateAccount(t.Context(), userID, func(current domain.Account) (domain.Account, error) {
			seen = current
			return current, nil
		})
		require.NoError(t, err)

		expected := domain.NewAccount(userID, now)
		requireEqualAccounts(t, expected, seen)
		requireEqualAccounts(t, expected, account)

		stored, err := repo.GetAccount(t.Context(), userID)
		require.NoError(t, err)
		requireEqualAccounts(t, expected, stored)
	})

	t.Run("update persists changes", func(t *testing.T) {
		t.Parallel()
		repo := newRepository(t, nowFunc)
		userID := domaintest.NewUserID(t)

		var decision domain.Decision
		account, err := repo.UpdateAccount(t.Context(), userID, consume(&decision))
		require.NoError(t, err)
		require.True(t, decision.Admitted())
		require.Equal(t, int64(1), account.UsageCount)

		account, err = repo.UpdateAccount(t.Context(), userID, consume(&decision))
		require.NoError(t, err)
		require.False(t, decision.Admitted())
		require.Equal(t, domain.DenyReasonQuotaExceeded, decision.Reason)
		require.Equal(t, int64(1), account.UsageCount)

		account, err = repo.UpdateAccount(t.Context(), userID, func(current domain.Account) (domain.Account, error) {
			return current.WithTier(domain.TierPremium), nil
		})
		require.NoError(t, err)
		require.Equal(t, domain.TierPremium, account.Tier)

		stored, err := repo.GetAccount(t.Context(), userID)
		require.NoError(t, err)
		requireEqualAccounts(t, domaintest.NewAccount(userID, now).
			WithTier(domain.TierPremium).
			WithUsageCount(1).
			Build(), stored)
	})

	t.Run("failed update leaves account unchanged", func(t *testing.T) {
		t.Parallel()
		repo := newRepository(t, nowFunc)
		userID := domaintest.NewUserID(t)

		_, err := repo.PutAccount(t.Context(), domaintest.NewAccount(userID, now).WithUsageCount(4).Build())
		require.NoError(t, err)

		updateErr := errors.New("nope")
		current, err := repo.UpdateAccount(t.Context(), userID, func(current domain.Account) (domain.Account, error) {
			return current.WithTier(domain.TierPremium), updateErr
		})
		require.ErrorIs(t, err, updateErr)
		require.Equal(t, int64(4), current.UsageCount)

		stored, err := repo.GetAccount(t.Context(), userID)
		require.NoError(t, err)
		require.Equal(t, domain.TierFree, stored.Tier)
		require.Equal(t, int64(4), stored.UsageCount)
	})

	t.Run("corrupt state is surfaced and left untouched", func(t *testing.T) {
		t.Parallel()
		repo := newRepository(t, nowFunc)
		userID := domaintest.NewUserID(t)

		_, err := repo.PutAccount(t.Context(), domaintest.NewAccount(userID, now).WithUsageCount(-3).Build())
		require.NoError(t, err)

		var decision domain.Decision
		_, err = repo.UpdateAccount(t.Context(), userID, consume(&decision))
		require.ErrorIs(t, err, domain.ErrCorruptState)

		stored, err := repo.GetAccount(t.Context(), userID)
		require.NoError(t, err)
		require.Equal(t, int64(-3), stored.UsageCount)
	})

	t.Run("missing period start round trips", func(t *testing.T) {
		t.Parallel()
		repo := newRepository(t, nowFunc)
		userID := domaintest.NewUserID(t)

		_, err := repo.PutAccount(t.Context(), domaintest.NewAccount(userID, time.Time{}).Build())
		require.NoError(t, err)

		stored, err := repo.GetAccount(t.Context(), userID)
		require.NoError(t, err)
		require.True(t, stored.PeriodStart.IsZero())
		require.ErrorIs(t, stored.Validate(), domain.ErrCorruptState)
	})

	t.Run("put overwrites", func(t *testing.T) {
		t.Parallel()
		repo := newRepository(t, nowFunc)
		userID := domaintest.NewUserID(t)

		_, err := repo.PutAccount(t.Context(), domaintest.NewAccount(userID, now).WithUsageCount(-1).Build())
		require.NoError(t, err)

		repaired := domaintest.NewAccount(userID, now.Add(time.Hour)).WithTier(domain.TierPremium).Build()
		account, err := repo.PutAccount(t.Context(), repaired)
		require.NoError(t, err)
		requireEqualAccounts(t, repaired, account)

		stored, err := repo.GetAccount(t.Context(), userID)
		require.NoError(t, err)
		requireEqualAccounts(t, repaired, stored)
	})

	t.Run("concurrent consumption admits exactly once", func(t *testing.T) {
		t.Parallel()
		repo := newRepository(t, nowFunc)
		userID := domaintest.NewUserID(t)

		const callers = 20

		var wg sync.WaitGroup
		var mu sync.Mutex
		admitted := 0
		denied := 0
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				var decision domain.Decision
				_, err := repo.UpdateAccount(t.Context(), userID, consume(&decision))
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if decision.Admitted() {
					admitted++
				} else {
					denied++
				}
			}()
		}
		wg.Wait()

		require.Equal(t, 1, admitted)
		require.Equal(t, callers-1, denied)

		stored, err := repo.GetAccount(t.Context(), userID)
		require.NoError(t, err)
		require.Equal(t, int64(1), stored.UsageCount)
	})
}
