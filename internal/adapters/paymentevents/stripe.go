package paymentevents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/logging"
)

const signatureTolerance = 5 * time.Minute

// metadataUserIDKey is read when the checkout session carries no client_reference_id
const metadataUserIDKey = "user_id"

type stripeParser struct {
	secret string
	tracer trace.Tracer
}

func NewStripeParser(webhookSecret string) *stripeParser {
	return &stripeParser{
		secret: webhookSecret,
		tracer: otel.Tracer("superbrain/paymentevents/stripe"),
	}
}

// ParseEvent verifies a Stripe webhook delivery and extracts the upgrade it represents.
// Returns false for verified events that do not upgrade anyone.
func (p *stripeParser) ParseEvent(ctx context.Context, payload []byte, signatureHeader string) (domain.PaymentEvent, bool, error) {
	ctx, span := p.tracer.Start(ctx, "Stripe.ParseEvent")
	defer span.End()

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, p.secret, webhook.ConstructEventOptions{
		Tolerance:                signatureTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		// Not reported, anyone can post to the webhook
		return domain.PaymentEvent{}, false, fmt.Errorf("%w: %w", domain.ErrInvalidPaymentEvent, err)
	}

	span.SetAttributes(attribute.String("stripe.event_type", string(event.Type)))

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
	default:
		logging.FromContext(ctx).InfoContext(ctx, "Ignoring stripe event", "eventType", string(event.Type))
		return domain.PaymentEvent{}, false, nil
	}

	if event.Data == nil {
		return domain.PaymentEvent{}, false, fmt.Errorf("%w: event %s has no data", domain.ErrInvalidPaymentEvent, event.ID)
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return domain.PaymentEvent{}, false, fmt.Errorf("%w: failed to decode checkout session: %w", domain.ErrInvalidPaymentEvent, err)
	}

	// Async payment methods complete the session before the money arrives
	if event.Type == stripe.EventTypeCheckoutSessionCompleted && session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		logging.FromContext(ctx).InfoContext(ctx, "Ignoring unpaid checkout session", "sessionId", session.ID)
		return domain.PaymentEvent{}, false, nil
	}

	userID := session.ClientReferenceID
	if userID == "" {
		userID = session.Metadata[metadataUserIDKey]
	}
	if userID == "" {
		return domain.PaymentEvent{}, false, fmt.Errorf("%w: checkout session %s does not identify a user", domain.ErrInvalidPaymentEvent, session.ID)
	}

	return domain.PaymentEvent{
		ID:     event.ID,
		UserID: userID,
		Tier:   domain.TierPremium,
	}, true, nil
}
