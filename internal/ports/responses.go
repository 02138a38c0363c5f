package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/logging"
	"github.com/superbrain63/superbrain-ai/internal/reporting"
)

const upgradePrompt = "You have used all requests in your plan for this period. Upgrade to premium to keep going."

type usageResponse struct {
	Tier        string    `json:"tier"`
	Used        int64     `json:"used"`
	Limit       *int64    `json:"limit,omitempty"`
	Remaining   int64     `json:"remaining"`
	Unlimited   bool      `json:"unlimited"`
	PeriodStart time.Time `json:"periodStart"`
	ResetAt     time.Time `json:"resetAt"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

func usageToResponse(usage domain.Usage) usageResponse {
	response := usageResponse{
		Tier:        string(usage.Account.Tier),
		Used:        usage.Account.UsageCount,
		Remaining:   usage.Remaining,
		Unlimited:   usage.Quota.IsUnlimited(),
		PeriodStart: usage.Account.PeriodStart.UTC(),
		ResetAt:     usage.ResetAt.UTC(),
	}
	if !usage.Quota.IsUnlimited() {
		limit := usage.Quota.Limit()
		response.Limit = &limit
	}
	return response
}

// errorToResponse maps errors from the app layer to a status code and a cause safe to show the user
func errorToResponse(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidUserID):
		return http.StatusBadRequest, "invalid user id"
	case errors.Is(err, domain.ErrCorruptState):
		return http.StatusConflict, "corrupt account state"
	case errors.Is(err, domain.ErrTemporarilyUnavailable):
		return http.StatusServiceUnavailable, "temporarily unavailable"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusBadGateway, "completion provider unavailable"
	case errors.Is(err, domain.ErrInvalidAccessCode):
		return http.StatusForbidden, "invalid access code"
	case errors.Is(err, domain.ErrAccessCodesDisabled):
		return http.StatusNotFound, "access codes disabled"
	case errors.Is(err, domain.ErrInvalidPaymentEvent):
		return http.StatusBadRequest, "invalid payment event"
	case errors.Is(err, domain.ErrUnknownTier):
		return http.StatusBadRequest, "unknown tier"
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, response any) {
	data, err := json.Marshal(response)
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to marshal response: %w", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"cause":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

func writeError(ctx context.Context, w http.ResponseWriter, statusCode int, cause string) {
	logging.FromContext(ctx).InfoContext(ctx, "Returning error response", "statusCode", statusCode, "cause", cause)
	writeJSON(ctx, w, statusCode, errorResponse{Success: false, Cause: cause})
}

// writeAppError responds to an error returned by the app layer.
// The app layer reports its own errors.
func writeAppError(ctx context.Context, w http.ResponseWriter, err error) {
	statusCode, cause := errorToResponse(err)
	writeError(ctx, w, statusCode, cause)
}

// addUserToContext returns the raw X-User-Id header and a context tagged with it
func addUserToContext(ctx context.Context, r *http.Request) (context.Context, string) {
	userID := r.Header.Get("X-User-Id")

	loggedUserID := userID
	if loggedUserID == "" {
		loggedUserID = "<missing>"
	}
	ctx = reporting.SetUserIDInContext(ctx, loggedUserID)
	ctx = logging.AddUserToContext(ctx, userID)

	return ctx, userID
}
