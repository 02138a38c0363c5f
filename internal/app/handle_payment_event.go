package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/superbrain63/superbrain-ai/internal/adapters/cache"
	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/logging"
	"github.com/superbrain63/superbrain-ai/internal/reporting"
)

// HandlePaymentEvent applies the tier change a verified payment event asks for.
// Redelivered events are acknowledged without being applied again.
// Returns the resulting account and whether this call applied the event.
type HandlePaymentEvent func(ctx context.Context, event domain.PaymentEvent) (domain.Account, bool, error)

func BuildHandlePaymentEvent(seenEvents cache.Cache[domain.Account], applyTierChange ApplyTierChange) HandlePaymentEvent {
	return func(ctx context.Context, event domain.PaymentEvent) (domain.Account, bool, error) {
		if event.ID == "" {
			return domain.Account{}, false, fmt.Errorf("%w: missing event id", domain.ErrInvalidPaymentEvent)
		}
		if event.Tier == "" {
			return domain.Account{}, false, fmt.Errorf("%w: missing tier", domain.ErrInvalidPaymentEvent)
		}

		ctx = logging.AddMetaToContext(ctx, slog.String("eventId", event.ID))

		// Redelivery cannot fix these, so reject them before claiming the event
		if err := domain.ValidateUserID(event.UserID); err != nil {
			err = fmt.Errorf("%w: %w", domain.ErrInvalidPaymentEvent, err)
			reporting.Report(ctx, err)
			return domain.Account{}, false, err
		}

		account, applied, err := cache.GetOrCreate(ctx, seenEvents, event.ID, func() (domain.Account, error) {
			return applyTierChange(ctx, event.UserID, event.Tier, TierChangeSourcePayment)
		})
		if err != nil {
			err = fmt.Errorf("failed to apply payment event: %w", err)
			if !errors.Is(err, domain.ErrCorruptState) {
				reporting.Report(ctx, err)
			}
			return domain.Account{}, false, err
		}

		if !applied {
			logging.FromContext(ctx).InfoContext(ctx, "Ignoring redelivered payment event")
		}

		return account, applied, nil
	}
}
