package observability

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// InitLogger initializes the global zerolog logger
func InitLogger(serviceName, env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().
			Str("service", serviceName).
			Logger()
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		log.Logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Caller().
			Str("service", serviceName).
			Logger()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// LoggerFromContext returns a logger with trace context and the caller's user id when known
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	logCtx := log.With()

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		logCtx = logCtx.
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String())
	}
	if userID, ok := ctx.Value(userIDKey{}).(string); ok && userID != "" {
		logCtx = logCtx.Str("user_id", userID)
	}

	logger := logCtx.Logger()
	return &logger
}

type userIDKey struct{}

// WithUserID attaches the caller's user id to ctx for log enrichment
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetLogger returns the global logger
func GetLogger() *zerolog.Logger {
	return &log.Logger
}
