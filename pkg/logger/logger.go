package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Version     string
	Level       zerolog.Level
	// WarnStack attaches a goroutine stack to Warn entries as well as Error.
	WarnStack bool
	// Format selects "json" (default) or "console" output.
	Format string
	Output io.Writer
}

// Logger carries a base zerolog logger and derives per-request children that
// travel in a context.Context.
type Logger struct {
	base      zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(strings.TrimSpace(opts.Format), "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	fields := zerolog.New(out).Level(level).With().Timestamp().Str("service", opts.ServiceName)
	if opts.Version != "" {
		fields = fields.Str("version", opts.Version)
	}
	return &Logger{base: fields.Logger(), warnStack: opts.WarnStack}
}

// ParseLevel maps LISTINGFORGE_LOG_LEVEL onto a zerolog level, falling back to
// info for blank or unknown values.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Zerolog returns the logger bound to ctx, or the base logger.
func (l *Logger) Zerolog(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if child, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return child
		}
	}
	return &l.base
}

func (l *Logger) with(ctx context.Context, build func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	child := build(l.Zerolog(ctx).With()).Logger()
	return context.WithValue(ctx, ctxKey{}, &child)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Interface(key, value)
	})
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Fields(fields)
	})
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithAccountID(ctx context.Context, accountID string) context.Context {
	return l.WithField(ctx, "account_id", accountID)
}

func (l *Logger) WithListingID(ctx context.Context, listingID string) context.Context {
	return l.WithField(ctx, "listing_id", listingID)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.Zerolog(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.Zerolog(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.Zerolog(ctx).Warn()
	if l.warnStack {
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

// Error always records the stack; err may be nil.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	l.Zerolog(ctx).Error().Err(err).Str("stack", stackTrace()).Msg(msg)
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
