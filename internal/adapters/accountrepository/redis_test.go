package accountrepository

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/domaintest"
)

func newTestRedis(t *testing.T, nowFunc func() time.Time) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return NewRedis(client, "test", nowFunc), mr
}

func TestRedis(t *testing.T) {
	t.Parallel()

	runRepositoryTests(t, func(t *testing.T, nowFunc func() time.Time) AccountRepository {
		repo, _ := newTestRedis(t, nowFunc)
		return repo
	})

	t.Run("stored layout", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2025, time.March, 14, 15, 9, 26, 0, time.UTC)
		repo, mr := newTestRedis(t, func() time.Time { return now })
		userID := domaintest.NewUserID(t)

		_, err := repo.PutAccount(t.Context(), domaintest.NewAccount(userID, now).WithTier(domain.TierPremium).WithUsageCount(7).Build())
		require.NoError(t, err)

		key := "test:account:" + userID
		require.Equal(t, "premium", mr.HGet(key, "tier"))
		require.Equal(t, "7", mr.HGet(key, "usage_count"))
		require.Equal(t, "2025-03-14T15:09:26Z", mr.HGet(key, "period_start"))
	})

	t.Run("unreadable fields are corrupt state", func(t *testing.T) {
		t.Parallel()

		now := time.Date(2025, time.March, 14, 15, 9, 26, 0, time.UTC)
		repo, mr := newTestRedis(t, func() time.Time { return now })

		cases := map[string][]string{
			"usage count":  {"tier", "free", "usage_count", "many", "period_start", "2025-03-14T15:09:26Z"},
			"period start": {"tier", "free", "usage_count", "1", "period_start", "yesterday"},
		}
		for name, fields := range cases {
			t.Run(name, func(t *testing.T) {
				t.Parallel()
				userID := domaintest.NewUserID(t)
				mr.HSet("test:account:"+userID, fields...)

				_, err := repo.GetAccount(t.Context(), userID)
				require.ErrorIs(t, err, domain.ErrCorruptState)

				_, err = repo.UpdateAccount(t.Context(), userID, func(current domain.Account) (domain.Account, error) {
					return current, nil
				})
				require.ErrorIs(t, err, domain.ErrCorruptState)

				// Repair path overwrites the unreadable record
				_, err = repo.PutAccount(t.Context(), domain.NewAccount(userID, now))
				require.NoError(t, err)
				account, err := repo.GetAccount(t.Context(), userID)
				require.NoError(t, err)
				require.Equal(t, int64(0), account.UsageCount)
			})
		}
	})
}
