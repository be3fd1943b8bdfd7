// Package logger configures zerolog for the binaries and enriches log lines with trace ids.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	Service string
	Level   string
	Pretty  bool
	Output  io.Writer
}

// Setup replaces the global zerolog logger and returns it.
func Setup(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	l := zerolog.New(out).Level(level).With().Timestamp().Str("service", opts.Service).Logger()
	log.Logger = l
	zerolog.DefaultContextLogger = &log.Logger
	return l
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// FromContext returns the logger stored in ctx (or the global one) with the
// request id and the trace/span ids of the active span attached.
func FromContext(ctx context.Context) *zerolog.Logger {
	base := zerolog.Ctx(ctx)
	if base.GetLevel() == zerolog.Disabled {
		base = &log.Logger
	}

	lc := base.With()
	enriched := false
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		lc = lc.Str("request_id", id)
		enriched = true
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		lc = lc.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		enriched = true
	}
	if !enriched {
		return base
	}
	l := lc.Logger()
	return &l
}
