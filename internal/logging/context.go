package logging

import (
	"context"
	"log/slog"
)

const missingValue = "<missing>"

type loggerKey struct{}

// FromContext returns the request logger, or the process default tagged as a fallback
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default().With(slog.String("logger", "fallback"))
}

func AddToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// AddMetaToContext attaches attrs to every later log line of the request.
// Later values for the same key win in the JSON output.
func AddMetaToContext(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	return AddToContext(ctx, FromContext(ctx).With(args...))
}

// AddUserToContext tags the request logger with the account being acted on
func AddUserToContext(ctx context.Context, userID string) context.Context {
	if userID == "" {
		userID = missingValue
	}
	return AddMetaToContext(ctx, slog.String("userId", userID))
}

// AddAccountToContext tags the request logger with the account's tier and usage
func AddAccountToContext(ctx context.Context, userID string, tier string, usageCount int64) context.Context {
	if userID == "" {
		userID = missingValue
	}
	return AddMetaToContext(ctx,
		slog.String("userId", userID),
		slog.String("tier", tier),
		slog.Int64("usageCount", usageCount),
	)
}
