package logging

import (
	"context"
	"log/slog"
	"os"
)

type loggerKey struct{}

var fallbackLogger = slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(slog.String("logger", "fallback"))

// FromContext returns the logger stored in ctx, or a stdout logger tagged as
// the fallback so stray log lines can be found.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return fallbackLogger
}

func AddToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

func AddMetaToContext(ctx context.Context, attrs ...slog.Attr) context.Context {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return AddToContext(ctx, FromContext(ctx).With(args...))
}

// AddScriptToContext tags every later log line with the script being loaded
func AddScriptToContext(ctx context.Context, name, url string) context.Context {
	return AddMetaToContext(ctx, slog.Group("script",
		slog.String("name", name),
		slog.String("url", url),
	))
}
