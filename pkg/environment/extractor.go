package environment

import (
	"context"
	"log/slog"
)

// LoggerExtractor returns a context extractor that adds the environment
// attribute to log records when one is present in the context.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if env := FromContext(ctx); env != "" {
			return slog.String("env", env.String()), true
		}
		return slog.Attr{}, false
	}
}
