package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/superbrain63/superbrain-ai/internal/logging"
)

// logLines decodes every JSON log line written to buf, dropping "time"
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	lines := make([]map[string]any, 0)
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &entry))
		require.Contains(t, entry, "time")
		delete(entry, "time")
		lines = append(lines, entry)
	}
	return lines
}

func newContextWithLogger(t *testing.T) (context.Context, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, nil)).With(slog.String("port", "check"))
	return logging.AddToContext(t.Context(), logger), buf
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	t.Run("stored logger", func(t *testing.T) {
		t.Parallel()

		logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
		ctx := logging.AddToContext(t.Context(), logger)
		require.Same(t, logger, logging.FromContext(ctx))
	})

	t.Run("fallback", func(t *testing.T) {
		t.Parallel()

		require.NotNil(t, logging.FromContext(context.Background()))
	})
}

func TestAddMetaToContext(t *testing.T) {
	t.Parallel()

	ctx, buf := newContextWithLogger(t)

	require.Equal(t, ctx, logging.AddMetaToContext(ctx))

	ctx = logging.AddMetaToContext(ctx, slog.String("decision", "admit"))
	logging.FromContext(ctx).Info("Evaluated request")

	ctx = logging.AddMetaToContext(ctx, slog.String("decision", "deny"), slog.String("reason", "quota_exceeded"))
	logging.FromContext(ctx).Info("Evaluated request")

	lines := logLines(t, buf)
	require.Len(t, lines, 2)
	require.Equal(t, map[string]any{
		"level":    "INFO",
		"msg":      "Evaluated request",
		"port":     "check",
		"decision": "admit",
	}, lines[0])
	require.Equal(t, "deny", lines[1]["decision"])
	require.Equal(t, "quota_exceeded", lines[1]["reason"])
}

func TestAddUserToContext(t *testing.T) {
	t.Parallel()

	for userID, expected := range map[string]string{
		"user-1": "user-1",
		"":       "<missing>",
	} {
		t.Run(expected, func(t *testing.T) {
			t.Parallel()

			ctx, buf := newContextWithLogger(t)
			ctx = logging.AddUserToContext(ctx, userID)
			logging.FromContext(ctx).Info("Returning decision")

			lines := logLines(t, buf)
			require.Len(t, lines, 1)
			require.Equal(t, expected, lines[0]["userId"])
		})
	}
}

func TestAddAccountToContext(t *testing.T) {
	t.Parallel()

	ctx, buf := newContextWithLogger(t)
	ctx = logging.AddAccountToContext(ctx, "user-1", "free", 7)
	logging.FromContext(ctx).Info("Evaluated request")

	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	require.Equal(t, map[string]any{
		"level":      "INFO",
		"msg":        "Evaluated request",
		"port":       "check",
		"userId":     "user-1",
		"tier":       "free",
		"usageCount": float64(7),
	}, lines[0])
}
