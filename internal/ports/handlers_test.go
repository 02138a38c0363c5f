package ports_test

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/superbrain63/superbrain-ai/internal/adapters/accountrepository"
	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/ports"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func noopMiddleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h(w, r)
	}
}

func newAllowedOrigins(t *testing.T) *ports.DomainSuffixes {
	t.Helper()
	allowedOrigins, err := ports.NewDomainSuffixes("example.com", "test.com")
	require.NoError(t, err)
	return allowedOrigins
}

var testPeriodStart = time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)

func newTestUsage(tier domain.Tier, quota domain.Quota, used int64) domain.Usage {
	var remaining int64
	if !quota.IsUnlimited() {
		remaining = max(quota.Limit()-used, 0)
	}
	return domain.Usage{
		Account: domain.Account{
			UserID:      "user-1",
			Tier:        tier,
			UsageCount:  used,
			PeriodStart: testPeriodStart,
		},
		Quota:     quota,
		Remaining: remaining,
		ResetAt:   testPeriodStart.Add(24 * time.Hour),
	}
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

func newTestRepo() *accountrepository.Memory {
	return accountrepository.NewMemory(time.Now)
}
