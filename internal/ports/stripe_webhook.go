package ports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/superbrain63/superbrain-ai/internal/app"
	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/logging"
	"github.com/superbrain63/superbrain-ai/internal/ratelimiting"
	"github.com/superbrain63/superbrain-ai/internal/reporting"
)

const maxWebhookBodyBytes = 64 * 1024

type ParsePaymentEvent func(ctx context.Context, payload []byte, signatureHeader string) (domain.PaymentEvent, bool, error)

type webhookResponse struct {
	Received bool `json:"received"`
	Applied  bool `json:"applied"`
}

// MakeStripeWebhookHandler applies upgrades from Stripe checkout events.
// Events that can never be applied get a 4xx, other failures a 500.
func MakeStripeWebhookHandler(
	parsePaymentEvent ParsePaymentEvent,
	handlePaymentEvent app.HandlePaymentEvent,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(20),
		ratelimiting.BurstSize(400),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("stripe-webhook"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("stripe-webhook"),
		NewRateLimitMiddleware(ipRateLimiter, makeOnLimitExceeded(ipRateLimiter)),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		defer r.Body.Close()
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			reporting.Report(ctx, fmt.Errorf("failed to read webhook body: %w", err))
			writeError(ctx, w, http.StatusBadRequest, "failed to read request body")
			return
		}

		event, ok, err := parsePaymentEvent(ctx, payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "Rejected webhook delivery", "error", err.Error())
			writeAppError(ctx, w, err)
			return
		}
		if !ok {
			writeJSON(ctx, w, http.StatusOK, webhookResponse{Received: true})
			return
		}

		ctx = reporting.SetUserIDInContext(ctx, event.UserID)
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"eventId": event.ID})
		ctx = logging.AddUserToContext(ctx, event.UserID)
		ctx = logging.AddMetaToContext(ctx, slog.String("eventId", event.ID))

		_, applied, err := handlePaymentEvent(ctx, event)
		if err != nil {
			// NOTE: HandlePaymentEvent implementations handle their own error reporting
			if statusCode, _ := errorToResponse(err); statusCode != http.StatusInternalServerError {
				writeAppError(ctx, w, err)
				return
			}
			writeError(ctx, w, http.StatusInternalServerError, "failed to apply payment event")
			return
		}

		labelTier(ctx, event.Tier)
		logging.FromContext(ctx).InfoContext(ctx, "Handled payment event", "applied", applied)
		writeJSON(ctx, w, http.StatusOK, webhookResponse{Received: true, Applied: applied})
	}

	return middleware(handler)
}
