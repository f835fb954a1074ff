package util

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// LogFunc represents a function that takes a context,
// format string and number of interface{} and logs accordingly.
type LogFunc func(context.Context, string, ...interface{})

// NewLogger returns a logger writing one line per event to every output,
// formatted as "<timestamp> - [<LEVEL>] - <message>".
// Events below level are dropped.
func NewLogger(level zerolog.Level, outs ...io.Writer) zerolog.Logger {
	writers := make([]io.Writer, 0, len(outs))
	for _, out := range outs {
		writers = append(writers, newLineWriter(out))
	}
	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// NewFileLogger returns a logger writing to STDOUT and to the file at path,
// which is created if needed and always appended to.
// The caller is responsible for closing the returned file.
func NewFileLogger(path string, level zerolog.Level) (zerolog.Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return zerolog.Nop(), nil, errors.Wrapf(err, "could not open log file %s", path)
	}
	return NewLogger(level, os.Stdout, f), f, nil
}

func newLineWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:     out,
		NoColor: true,
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			zerolog.MessageFieldName,
		},
		FormatTimestamp: func(i interface{}) string {
			return fmt.Sprint(i)
		},
		FormatLevel: func(i interface{}) string {
			return fmt.Sprintf("- [%s] -", strings.ToUpper(fmt.Sprint(i)))
		},
	}
}

// GetStandardEntries gets a slice of []ContextEntry given
// a prefix and logger. Errors are also reported to sentry.
// The Debug and Info LogFuncs default to their standard versions
// since they are not included.
func GetStandardEntries(prefix string, logger *zerolog.Logger) []ContextEntry {
	return []ContextEntry{
		{
			Key:   LoggerPrefix,
			Value: prefix,
		},
		{
			Key:   Logger,
			Value: logger,
		},
		{
			Key:   Err,
			Value: LogFunc(SentryErrf),
		},
	}
}

// SentryErrf implements LogFunc, logging an error and notifying
// sentry of it when a client is configured. The hub in the context
// is used when present. Events are sent in the background, so callers
// flush once before exiting.
func SentryErrf(ctx context.Context, format string, v ...interface{}) {
	StandardErrf(ctx, format, v...)

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}
	hub.CaptureException(fmt.Errorf(format, v...))
}

// Generic function used to output a formatted string with the logger
// stored in the context at the given level.
func printf(ctx context.Context, level zerolog.Level, format string, v ...interface{}) {
	logger, ok := ctx.Value(Logger).(*zerolog.Logger)
	if !ok || logger == nil {
		panic("logger does not exist")
	}
	if prefix, ok := ctx.Value(LoggerPrefix).(string); ok && prefix != "" {
		format = prefix + ": " + format
	}
	logger.WithLevel(level).Msgf(format, v...)
}

// StandardDebugf is a LogFunc that logs at debug level.
func StandardDebugf(ctx context.Context, format string, v ...interface{}) {
	printf(ctx, zerolog.DebugLevel, format, v...)
}

// StandardInfof is a LogFunc that logs at info level.
func StandardInfof(ctx context.Context, format string, v ...interface{}) {
	printf(ctx, zerolog.InfoLevel, format, v...)
}

// StandardErrf is a LogFunc that logs at error level.
func StandardErrf(ctx context.Context, format string, v ...interface{}) {
	printf(ctx, zerolog.ErrorLevel, format, v...)
}

// Generic function used to call a LogFunc stored in the context using a ContextKey key,
// calling a default LogFunc if the key is not set.
func logf(ctx context.Context, key ContextKey, defaultLogf LogFunc, format string, v ...interface{}) {
	if f, ok := ctx.Value(key).(LogFunc); ok && f != nil {
		f(ctx, format, v...)
	} else {
		defaultLogf(ctx, format, v...)
	}
}

// Debugf is a LogFunc that attempts to call the Debug LogFunc in the context, defaulting
// to StandardDebugf if unset.
func Debugf(ctx context.Context, format string, v ...interface{}) {
	logf(ctx, Debug, StandardDebugf, format, v...)
}

// Infof is a LogFunc that attempts to call the Info LogFunc in the context, defaulting
// to StandardInfof if unset.
func Infof(ctx context.Context, format string, v ...interface{}) {
	logf(ctx, Info, StandardInfof, format, v...)
}

// Errf is a LogFunc that attempts to call the Err LogFunc in the context, defaulting
// to StandardErrf if unset.
func Errf(ctx context.Context, format string, v ...interface{}) {
	logf(ctx, Err, StandardErrf, format, v...)
}
