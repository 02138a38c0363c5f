package ports

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/superbrain63/superbrain-ai/internal/app"
	"github.com/superbrain63/superbrain-ai/internal/logging"
)

const maxRedeemBodyBytes = 4 * 1024

type redeemResponse struct {
	Success bool   `json:"success"`
	Tier    string `json:"tier"`
}

func MakeRedeemHandler(
	redeemAccessCode app.RedeemAccessCode,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildAccountRouteMiddleware(
		accountRoute{
			name:   "redeem",
			method: http.MethodPost,
			// Guessing codes should be slow
			limits: rateLimits{
				ipRefill:   0.05,
				ipBurst:    10,
				userRefill: 0.05,
				userBurst:  5,
			},
		},
		allowedOrigins,
		rootLogger,
		sentryMiddleware,
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx, userID := addUserToContext(r.Context(), r)

		defer r.Body.Close()
		request := struct {
			Code string `json:"code"`
		}{}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRedeemBodyBytes)).Decode(&request); err != nil {
			writeError(ctx, w, http.StatusBadRequest, "failed to parse request body")
			return
		}
		if request.Code == "" {
			writeError(ctx, w, http.StatusBadRequest, "missing code")
			return
		}

		account, err := redeemAccessCode(ctx, userID, request.Code)
		if err != nil {
			writeAppError(ctx, w, err)
			return
		}

		labelTier(ctx, account.Tier)
		logging.FromContext(ctx).InfoContext(ctx, "Redeemed access code", "tier", string(account.Tier))

		writeJSON(ctx, w, http.StatusOK, redeemResponse{
			Success: true,
			Tier:    string(account.Tier),
		})
	}

	return middleware(handler)
}
