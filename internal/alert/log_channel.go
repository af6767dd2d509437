package alert

import (
	"context"
	"log/slog"
)

// LogChannel emits alerts through log/slog at warn level, the default
// sink when no external notification integration is configured.
type LogChannel struct{}

var _ Channel = LogChannel{}

func (LogChannel) Send(ctx context.Context, message string) error {
	slog.WarnContext(ctx, "scheduler alert", "message", message)
	return nil
}
