package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Quota is the maximum number of requests per period for a tier
type Quota struct {
	limit     int64
	unlimited bool
}

func LimitedQuota(limit int64) Quota {
	return Quota{limit: limit}
}

func UnlimitedQuota() Quota {
	return Quota{unlimited: true}
}

func (q Quota) IsUnlimited() bool {
	return q.unlimited
}

// Limit returns the finite limit. Only meaningful when !IsUnlimited().
func (q Quota) Limit() int64 {
	return q.limit
}

// Allows reports whether one more request fits after usageCount requests
func (q Quota) Allows(usageCount int64) bool {
	if q.unlimited {
		return true
	}
	return usageCount < q.limit
}

func (q Quota) String() string {
	if q.unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(q.limit, 10)
}

type QuotaTable map[Tier]Quota

func (t QuotaTable) QuotaFor(tier Tier) (Quota, error) {
	quota, ok := t[tier]
	if !ok {
		return Quota{}, fmt.Errorf("%w: %q has no quota", ErrUnknownTier, tier)
	}
	return quota, nil
}

type Outcome string

const (
	OutcomeAdmit Outcome = "admit"
	OutcomeDeny  Outcome = "deny"
)

type DenyReason string

const DenyReasonQuotaExceeded DenyReason = "quota_exceeded"

type Decision struct {
	Outcome Outcome
	Reason  DenyReason
}

func Admit() Decision {
	return Decision{Outcome: OutcomeAdmit}
}

func Deny(reason DenyReason) Decision {
	return Decision{Outcome: OutcomeDeny, Reason: reason}
}

func (d Decision) Admitted() bool {
	return d.Outcome == OutcomeAdmit
}

// Usage is a read-only view of an account against its quota
type Usage struct {
	Account Account
	Quota   Quota
	// Remaining requests in the current period. Zero when the quota is unlimited.
	Remaining int64
	ResetAt   time.Time
}

type QuotaPolicy struct {
	table  QuotaTable
	period time.Duration
}

func NewQuotaPolicy(table QuotaTable, period time.Duration) (QuotaPolicy, error) {
	if period <= 0 {
		return QuotaPolicy{}, fmt.Errorf("quota period must be positive, got %s", period)
	}
	if len(table) == 0 {
		return QuotaPolicy{}, fmt.Errorf("quota table is empty")
	}
	for tier, quota := range table {
		if !quota.IsUnlimited() && quota.Limit() < 0 {
			return QuotaPolicy{}, fmt.Errorf("negative quota %d for tier %s", quota.Limit(), tier)
		}
	}

	// Copy so later changes to the caller's map are not observed
	owned := make(QuotaTable, len(table))
	for tier, quota := range table {
		owned[tier] = quota
	}

	return QuotaPolicy{table: owned, period: period}, nil
}

func (p QuotaPolicy) Period() time.Duration {
	return p.period
}

func (p QuotaPolicy) QuotaFor(tier Tier) (Quota, error) {
	return p.table.QuotaFor(tier)
}

// The window covers [PeriodStart, PeriodStart+period)
func (p QuotaPolicy) periodExpired(account Account, now time.Time) bool {
	return !now.Before(account.PeriodStart.Add(p.period))
}

func (p QuotaPolicy) validate(account Account) (Quota, error) {
	if err := account.Validate(); err != nil {
		return Quota{}, err
	}
	quota, err := p.QuotaFor(account.Tier)
	if err != nil {
		return Quota{}, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	return quota, nil
}

// Evaluate decides whether the account may make one more request at now.
//
// The returned account is the state to persist: reset if the period has
// expired, and incremented if the request is admitted. A denied request
// leaves the usage count untouched.
func (p QuotaPolicy) Evaluate(account Account, now time.Time) (Decision, Account, error) {
	quota, err := p.validate(account)
	if err != nil {
		return Decision{}, account, err
	}

	if p.periodExpired(account, now) {
		account.UsageCount = 0
		account.PeriodStart = now
	}

	if !quota.Allows(account.UsageCount) {
		return Deny(DenyReasonQuotaExceeded), account, nil
	}

	account.UsageCount++
	return Admit(), account, nil
}

// Usage describes the account as the next Evaluate would see it, without
// consuming anything.
func (p QuotaPolicy) Usage(account Account, now time.Time) (Usage, error) {
	quota, err := p.validate(account)
	if err != nil {
		return Usage{}, err
	}

	if p.periodExpired(account, now) {
		account.UsageCount = 0
		account.PeriodStart = now
	}

	var remaining int64
	if !quota.IsUnlimited() {
		remaining = max(quota.Limit()-account.UsageCount, 0)
	}

	return Usage{
		Account:   account,
		Quota:     quota,
		Remaining: remaining,
		ResetAt:   account.PeriodStart.Add(p.period),
	}, nil
}
