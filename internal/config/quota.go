package config

import (
	"github.com/superbrain63/superbrain-ai/internal/domain"
)

// QuotaPolicy builds the per-tier quota policy from the configured limits
func (c *Config) QuotaPolicy() (domain.QuotaPolicy, error) {
	premium := domain.UnlimitedQuota()
	if limit, ok := c.PremiumDailyLimit(); ok {
		premium = domain.LimitedQuota(limit)
	}

	return domain.NewQuotaPolicy(domain.QuotaTable{
		domain.TierFree:    domain.LimitedQuota(c.FreeDailyLimit()),
		domain.TierPremium: premium,
	}, c.QuotaPeriod())
}
