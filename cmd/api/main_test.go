package main

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewLogger_LevelMapping(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
		muted   slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 1},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"bogus", slog.LevelInfo, slog.LevelDebug},
		{"", slog.LevelInfo, slog.LevelDebug},
	}

	for _, tc := range tests {
		t.Run("level "+tc.level, func(t *testing.T) {
			logger := newLogger(tc.level)
			ctx := context.Background()

			if !logger.Enabled(ctx, tc.enabled) {
				t.Errorf("level %q: expected %v to be enabled", tc.level, tc.enabled)
			}
			if logger.Enabled(ctx, tc.muted) {
				t.Errorf("level %q: expected %v to be muted", tc.level, tc.muted)
			}
		})
	}
}
