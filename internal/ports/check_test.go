package ports_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/superbrain63/superbrain-ai/internal/app"
	"github.com/superbrain63/superbrain-ai/internal/domain"
	"github.com/superbrain63/superbrain-ai/internal/ports"
)

func TestMakeCheckHandler(t *testing.T) {
	t.Parallel()

	makeCheckAndConsume := func(t *testing.T, expectedUserID string, decision domain.Decision, usage domain.Usage, err error) (app.CheckAndConsume, *bool) {
		called := false
		return func(ctx context.Context, userID string) (domain.Decision, domain.Usage, error) {
			t.Helper()
			require.Equal(t, expectedUserID, userID)

			called = true

			return decision, usage, err
		}, &called
	}

	makeRequest := func(userID string) *http.Request {
		req := httptest.NewRequest("POST", "/v1/check", nil)
		if userID != "" {
			req.Header.Set("X-User-Id", userID)
		}
		return req
	}

	t.Run("admit", func(t *testing.T) {
		t.Parallel()

		checkAndConsume, called := makeCheckAndConsume(t, "user-1", domain.Admit(), newTestUsage(domain.TierFree, domain.LimitedQuota(5), 3), nil)
		handler := ports.MakeCheckHandler(checkAndConsume, newAllowedOrigins(t), testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeRequest("user-1"))

		require.True(t, *called)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "application/json", w.Result().Header.Get("Content-Type"))
		require.JSONEq(t, `{
			"success": true,
			"decision": "admit",
			"usage": {
				"tier": "free",
				"used": 3,
				"limit": 5,
				"remaining": 2,
				"unlimited": false,
				"periodStart": "2026-03-14T00:00:00Z",
				"resetAt": "2026-03-15T00:00:00Z"
			}
		}`, w.Body.String())
	})

	t.Run("deny", func(t *testing.T) {
		t.Parallel()

		checkAndConsume, called := makeCheckAndConsume(t, "user-1", domain.Deny(domain.DenyReasonQuotaExceeded), newTestUsage(domain.TierFree, domain.LimitedQuota(5), 5), nil)
		handler := ports.MakeCheckHandler(checkAndConsume, newAllowedOrigins(t), testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeRequest("user-1"))

		require.True(t, *called)
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{
			"success": true,
			"decision": "deny",
			"reason": "quota_exceeded",
			"usage": {
				"tier": "free",
				"used": 5,
				"limit": 5,
				"remaining": 0,
				"unlimited": false,
				"periodStart": "2026-03-14T00:00:00Z",
				"resetAt": "2026-03-15T00:00:00Z"
			}
		}`, w.Body.String())
	})

	t.Run("unlimited usage omits limit", func(t *testing.T) {
		t.Parallel()

		checkAndConsume, _ := makeCheckAndConsume(t, "user-1", domain.Admit(), newTestUsage(domain.TierPremium, domain.UnlimitedQuota(), 1234), nil)
		handler := ports.MakeCheckHandler(checkAndConsume, newAllowedOrigins(t), testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeRequest("user-1"))

		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{
			"success": true,
			"decision": "admit",
			"usage": {
				"tier": "premium",
				"used": 1234,
				"remaining": 0,
				"unlimited": true,
				"periodStart": "2026-03-14T00:00:00Z",
				"resetAt": "2026-03-15T00:00:00Z"
			}
		}`, w.Body.String())
	})

	errorCases := []struct {
		name       string
		err        error
		statusCode int
		cause      string
	}{
		{
			name:       "corrupt state",
			err:        fmt.Errorf("%w: negative usage count -1", domain.ErrCorruptState),
			statusCode: http.StatusConflict,
			cause:      "corrupt account state",
		},
		{
			name:       "invalid user id",
			err:        fmt.Errorf("%w: empty", domain.ErrInvalidUserID),
			statusCode: http.StatusBadRequest,
			cause:      "invalid user id",
		},
		{
			name:       "temporarily unavailable",
			err:        fmt.Errorf("check_and_consume: %w", domain.ErrTemporarilyUnavailable),
			statusCode: http.StatusServiceUnavailable,
			cause:      "temporarily unavailable",
		},
		{
			name:       "unexpected error",
			err:        errors.New("connection reset by peer"),
			statusCode: http.StatusInternalServerError,
			cause:      "internal server error",
		},
	}
	for _, c := range errorCases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			checkAndConsume, called := makeCheckAndConsume(t, "user-1", domain.Decision{}, domain.Usage{}, c.err)
			handler := ports.MakeCheckHandler(checkAndConsume, newAllowedOrigins(t), testLogger, noopMiddleware)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, makeRequest("user-1"))

			require.True(t, *called)
			require.Equal(t, c.statusCode, w.Code)
			require.JSONEq(t, fmt.Sprintf(`{"success":false,"cause":%q}`, c.cause), w.Body.String())
			require.NotContains(t, w.Body.String(), "connection reset")
		})
	}

	t.Run("missing user id is passed through", func(t *testing.T) {
		t.Parallel()

		checkAndConsume, called := makeCheckAndConsume(t, "", domain.Decision{}, domain.Usage{}, fmt.Errorf("%w: empty", domain.ErrInvalidUserID))
		handler := ports.MakeCheckHandler(checkAndConsume, newAllowedOrigins(t), testLogger, noopMiddleware)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeRequest(""))

		require.True(t, *called)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rate limited per user", func(t *testing.T) {
		t.Parallel()

		checkAndConsume, _ := makeCheckAndConsume(t, "user-1", domain.Admit(), newTestUsage(domain.TierFree, domain.LimitedQuota(5), 1), nil)
		handler := ports.MakeCheckHandler(checkAndConsume, newAllowedOrigins(t), testLogger, noopMiddleware)

		limited := 0
		for range 100 {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, makeRequest("user-1"))
			if w.Code == http.StatusTooManyRequests {
				limited++
				require.JSONEq(t, `{"success":false,"cause":"rate limit exceeded"}`, w.Body.String())
			}
		}
		require.Greater(t, limited, 0)
	})
}
