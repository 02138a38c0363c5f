package ports

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/superbrain63/superbrain-ai/internal/domain"
)

type portsMetricsCollection struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

var metrics portsMetricsCollection

func init() {
	const name = "superbrain/ports"
	meter := otel.Meter(name)

	requestCount, err := meter.Int64Counter(
		"ports/request_count",
		metric.WithDescription("Requests by route, status, quota decision and tier"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create request count metric: %w", err))
	}

	requestDuration, err := meter.Float64Histogram(
		"ports/request_duration_seconds",
		metric.WithDescription("Processing time for received requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create request duration metric: %w", err))
	}

	metrics = portsMetricsCollection{
		requestCount:    requestCount,
		requestDuration: requestDuration,
	}
}

// requestLabels is filled in by handlers once they know the outcome of a request
type requestLabels struct {
	decision string
	tier     string
}

type requestLabelsKey struct{}

func labelDecision(ctx context.Context, decision domain.Decision) {
	if labels, ok := ctx.Value(requestLabelsKey{}).(*requestLabels); ok {
		labels.decision = string(decision.Outcome)
	}
}

func labelTier(ctx context.Context, tier domain.Tier) {
	if labels, ok := ctx.Value(requestLabelsKey{}).(*requestLabels); ok {
		labels.tier = string(tier)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// buildMetricsMiddleware records one request count and duration per request to route.
// The user id is left out to keep cardinality bounded.
func buildMetricsMiddleware(route string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			labels := &requestLabels{decision: "none", tier: "unknown"}
			ctx := context.WithValue(r.Context(), requestLabelsKey{}, labels)
			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next(recorder, r.WithContext(ctx))

			attributesOption := metric.WithAttributes(
				attribute.String("route", route),
				attribute.String("method", r.Method),
				attribute.String("status_code", strconv.Itoa(recorder.statusCode)),
				attribute.String("decision", labels.decision),
				attribute.String("tier", labels.tier),
			)

			metrics.requestCount.Add(ctx, 1, attributesOption)
			metrics.requestDuration.Record(ctx, time.Since(start).Seconds(), attributesOption)
		}
	}
}
