package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/superbrain63/superbrain-ai/internal/domain"
)

type appMetricsCollection struct {
	decisionCount   metric.Int64Counter
	tierChangeCount metric.Int64Counter
	corruptCount    metric.Int64Counter
}

var metrics appMetricsCollection

func init() {
	const name = "superbrain/app"
	meter := otel.Meter(name)

	decisionCount, err := meter.Int64Counter(
		"app/decision_count",
		metric.WithDescription("Quota decisions by outcome and tier"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create decision count metric: %w", err))
	}

	tierChangeCount, err := meter.Int64Counter(
		"app/tier_change_count",
		metric.WithDescription("Tier changes applied, by source"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create tier change count metric: %w", err))
	}

	corruptCount, err := meter.Int64Counter(
		"app/corrupt_state_count",
		metric.WithDescription("Requests rejected because the stored account was corrupt"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create corrupt state count metric: %w", err))
	}

	metrics = appMetricsCollection{
		decisionCount:   decisionCount,
		tierChangeCount: tierChangeCount,
		corruptCount:    corruptCount,
	}
}

func recordDecision(ctx context.Context, decision domain.Decision, tier domain.Tier) {
	metrics.decisionCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(decision.Outcome)),
		attribute.String("reason", string(decision.Reason)),
		attribute.String("tier", string(tier)),
	))
}

func recordTierChange(ctx context.Context, source string, tier domain.Tier) {
	metrics.tierChangeCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("tier", string(tier)),
	))
}

func recordCorruptState(ctx context.Context, operation string) {
	metrics.corruptCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}
