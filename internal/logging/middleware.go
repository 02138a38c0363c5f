package logging

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

func NewRequestLoggerMiddleware(logger *slog.Logger) func(next http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-User-Id")
			if userID == "" {
				userID = missingValue
			}

			userAgent := r.UserAgent()
			if userAgent == "" {
				userAgent = missingValue
			}

			requestLogger := logger.With(
				slog.String("correlationID", uuid.NewString()),
				slog.String("methodPath", r.Method+" "+r.URL.Path),
				slog.String("userId", userID),
				slog.String("userAgent", userAgent),
			)

			next(w, r.WithContext(AddToContext(r.Context(), requestLogger)))
		}
	}
}
