// Package logger provides a slog.Logger factory with environment-aware
// defaults and automatic context attribute extraction.
//
// The factory produces JSON output at INFO level by default, which suits
// production log aggregation. Development environments get human-readable
// text output at DEBUG level.
//
// Basic usage:
//
//	log := logger.New(
//		logger.WithEnvironment(environment.Production, "notifyhub"),
//	)
//	logger.SetAsDefault(log)
//
// Context extractors inject request-scoped attributes into every record
// logged with that context:
//
//	log := logger.New(
//		logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
//			if id, ok := ctx.Value(requestIDKey).(string); ok {
//				return slog.String("request_id", id), true
//			}
//			return slog.Attr{}, false
//		}),
//	)
//
// The attr helpers (Error, RecipientID, ConnectionID, ...) keep attribute
// keys consistent across the codebase.
package logger
