package util

import (
	"context"
)

// ContextKey is the key type used for context.WithValue().
type ContextKey int

// ContextEntry represents a key-value entry for a context.
type ContextEntry struct {
	Key   ContextKey
	Value interface{}
}

const (
	// LoggerPrefix is the key to the string that is outputted first when logging.
	//
	// For example, the LoggerPrefix may represent a directory being scanned,
	// so logging "hello world" with the prefix "/srv/images" outputs
	// "/srv/images: hello world".
	LoggerPrefix ContextKey = iota

	// Logger is the key for a *zerolog.Logger.
	Logger

	// Debug is the LogFunc that is called when outputting a debug statement.
	Debug

	// Err is the LogFunc that is called when outputting an error.
	Err

	// Info is the LogFunc that is called when outputting an info.
	Info
)

// ContextWithEntries derives a context from parent with a variadic number of
// key-value entries. A new context is created for each entry. While a single
// value as a map may be more efficient, there are only a handful of potential
// ContextEntry entries, so the complexity can be ignored.
func ContextWithEntries(parent context.Context, entries ...ContextEntry) context.Context {
	for _, entry := range entries {
		parent = context.WithValue(parent, entry.Key, entry.Value)
	}
	return parent
}
