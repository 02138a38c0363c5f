package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/superbrain63/superbrain-ai/internal/domain"
)

type accountOutput struct {
	UserID      string    `json:"userId"`
	Tier        string    `json:"tier"`
	UsageCount  int64     `json:"usageCount"`
	PeriodStart time.Time `json:"periodStart"`
	Valid       bool      `json:"valid"`
	Expired     bool      `json:"expired"`
	Problem     string    `json:"problem,omitempty"`
	Remaining   *int64    `json:"remaining,omitempty"`
	ResetAt     time.Time `json:"resetAt,omitzero"`
}

// accountToOutput describes the stored account, reporting instead of rejecting invalid state.
// usageCount and periodStart are the stored values. When the period has expired,
// remaining and resetAt describe the fresh period the next request will start.
func accountToOutput(account domain.Account, policy domain.QuotaPolicy, now time.Time) accountOutput {
	output := accountOutput{
		UserID:      account.UserID,
		Tier:        string(account.Tier),
		UsageCount:  account.UsageCount,
		PeriodStart: account.PeriodStart,
		Valid:       true,
	}

	usage, err := policy.Usage(account, now)
	if err != nil {
		output.Valid = false
		output.Problem = err.Error()
		return output
	}

	output.Expired = !usage.Account.PeriodStart.Equal(account.PeriodStart)
	if !usage.Quota.IsUnlimited() {
		remaining := usage.Remaining
		output.Remaining = &remaining
	}
	output.ResetAt = usage.ResetAt

	return output
}

func writeOutput(w io.Writer, output any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
