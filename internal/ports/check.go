package ports

import (
	"log/slog"
	"net/http"

	"github.com/superbrain63/superbrain-ai/internal/app"
	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/logging"
)

type decisionResponse struct {
	Success  bool          `json:"success"`
	Decision string        `json:"decision"`
	Reason   string        `json:"reason,omitempty"`
	Usage    usageResponse `json:"usage"`
}

func decisionToResponse(decision domain.Decision, usage domain.Usage) decisionResponse {
	return decisionResponse{
		Success:  true,
		Decision: string(decision.Outcome),
		Reason:   string(decision.Reason),
		Usage:    usageToResponse(usage),
	}
}

// MakeCheckHandler consumes one request from the caller's quota.
// A denied request is a successful response with decision "deny".
func MakeCheckHandler(
	checkAndConsume app.CheckAndConsume,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildAccountRouteMiddleware(
		accountRoute{
			name:   "check",
			method: http.MethodPost,
			limits: rateLimits{
				ipRefill:   8,
				ipBurst:    240,
				userRefill: 2,
				userBurst:  60,
			},
		},
		allowedOrigins,
		rootLogger,
		sentryMiddleware,
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, userID := addUserToContext(r.Context(), r)

		decision, usage, err := checkAndConsume(ctx, userID)
		if err != nil {
			writeAppError(ctx, w, err)
			return
		}

		labelDecision(ctx, decision)
		labelTier(ctx, usage.Account.Tier)
		ctx = logging.AddMetaToContext(ctx, slog.String("decision", string(decision.Outcome)))
		logging.FromContext(ctx).InfoContext(ctx, "Returning decision")

		writeJSON(ctx, w, http.StatusOK, decisionToResponse(decision, usage))
	}

	return middleware(handler)
}
