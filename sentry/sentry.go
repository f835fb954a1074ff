package sentry

import (
	"os"
	"time"

	"github.com/cdnjs/png-optimizer/util"

	"github.com/getsentry/sentry-go"
)

// Init configures the Sentry client when SENTRY_DSN is set.
func Init() error {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment(),
	})
}

// Events are tagged "development" in debug mode unless
// SENTRY_ENVIRONMENT says otherwise.
func environment() string {
	if env := os.Getenv("SENTRY_ENVIRONMENT"); env != "" {
		return env
	}
	if util.IsDebug() {
		return "development"
	}
	return "production"
}

// Flush waits for the errors captured during the run to be sent.
func Flush() {
	sentry.Flush(util.SentryFlushTime)
}

// PanicHandler registers panic handler to record the error in Sentry
func PanicHandler() {
	err := recover()

	if err != nil {
		sentry.CurrentHub().Recover(err)
		sentry.Flush(time.Second * 5)
		panic(err)
	}
}
