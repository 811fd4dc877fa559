package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/samber/lo"
)

type loggingCtxKey struct{}

// New constructs the standard stderr text logger.
// verbose drops the level to Debug.
func New(verbose bool) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lo.Ternary(verbose, slog.LevelDebug, slog.LevelInfo),
	}))
}

func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggingCtxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

func ToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggingCtxKey{}, logger)
}
