package ports

import (
	"log/slog"
	"net/http"

	"github.com/superbrain63/superbrain-ai/internal/logging"
	"github.com/superbrain63/superbrain-ai/internal/ratelimiting"
	"github.com/superbrain63/superbrain-ai/internal/reporting"
)

func NewRateLimitMiddleware(rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

// ComposeMiddlewares applies middlewares outermost first
func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(h http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}
}

type rateLimits struct {
	ipRefill   ratelimiting.RefillPerSecond
	ipBurst    ratelimiting.BurstSize
	userRefill ratelimiting.RefillPerSecond
	userBurst  ratelimiting.BurstSize
}

func makeOnLimitExceeded(rateLimiter ratelimiting.RequestRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logging.FromContext(ctx).InfoContext(ctx, "Rate limit exceeded", "key", rateLimiter.KeyFor(r))
		writeError(ctx, w, http.StatusTooManyRequests, "rate limit exceeded")
	}
}

// buildRateLimitMiddleware limits by connection address, then by X-User-Id
func buildRateLimitMiddleware(limits rateLimits) func(http.HandlerFunc) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(limits.ipRefill, limits.ipBurst)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)
	userIDLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(limits.userRefill, limits.userBurst)
	userIDRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		// NOTE: Rate limiting based on user controlled value
		userIDLimiter,
		ratelimiting.UserIDKeyFunc,
	)

	return ComposeMiddlewares(
		NewRateLimitMiddleware(ipRateLimiter, makeOnLimitExceeded(ipRateLimiter)),
		NewRateLimitMiddleware(userIDRateLimiter, makeOnLimitExceeded(userIDRateLimiter)),
	)
}

// accountRoute describes a browser facing route acting on the caller's account
type accountRoute struct {
	name   string
	method string
	limits rateLimits
}

func buildAccountRouteMiddleware(
	route accountRoute,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) func(http.HandlerFunc) http.HandlerFunc {
	return ComposeMiddlewares(
		buildMetricsMiddleware(route.name),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware(route.name),
		BuildCORSMiddleware(allowedOrigins, route.method),
		buildRateLimitMiddleware(route.limits),
	)
}
