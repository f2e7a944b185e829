package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithTurn returns a logger with chat-turn context fields attached.
// Use this for all logging within one tutoring turn.
func WithTurn(ownerID string, courseID int64, provider string) *slog.Logger {
	return slog.With(
		"owner_id", ownerID,
		"course_id", courseID,
		"provider", provider,
	)
}

// WithJob returns a logger scoped to one background job run.
func WithJob(name string) *slog.Logger {
	return slog.With("job", name)
}
