package util

import "time"

const (
	// LogFileName is the file, relative to the working directory,
	// that every run appends its log to.
	LogFileName = "png-optimizer.log"

	// PngPattern matches png files at any depth, including
	// the root of the walked directory.
	PngPattern = "{*.png,**/*.png}"

	// MaxAgeHours is the age in whole hours above which
	// a file is considered already processed.
	MaxAgeHours int64 = 24

	// SentryFlushTime is how long we wait for an event to reach sentry.
	SentryFlushTime = 2 * time.Second
)
