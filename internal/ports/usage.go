package ports

import (
	"log/slog"
	"net/http"

	"github.com/superbrain63/superbrain-ai/internal/app"
)

type getUsageResponse struct {
	Success bool          `json:"success"`
	Usage   usageResponse `json:"usage"`
}

func MakeUsageHandler(
	getUsage app.GetUsage,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildAccountRouteMiddleware(
		accountRoute{
			name:   "usage",
			method: http.MethodGet,
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

		usage, err := getUsage(ctx, userID)
		if err != nil {
			writeAppError(ctx, w, err)
			return
		}

		labelTier(ctx, usage.Account.Tier)
		writeJSON(ctx, w, http.StatusOK, getUsageResponse{
			Success: true,
			Usage:   usageToResponse(usage),
		})
	}

	return middleware(handler)
}
