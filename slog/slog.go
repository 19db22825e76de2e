// Package slog decorates docrag services with log/slog logging. Successful
// calls log at debug level and failures at warn level, each with the call
// duration.
package slog

import (
	"context"
	"log/slog"
	"time"
)

func logCall(ctx context.Context, logger *slog.Logger, msg string, begin time.Time, err error, attrs ...any) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, "err", err)
	}
	attrs = append(attrs, "duration", time.Since(begin))
	logger.Log(ctx, level, msg, attrs...)
}
