package gc

// log.go binds the store to the application's shared logger using a functional-option
// constructor: callers configure it with WithLogger, and components fall back to
// log.DefaultLogger() when none is given.

import "github.com/smoynes/talus/internal/log"

// Option configures a CollectedSpace at construction.
type Option func(*CollectedSpace)

// WithLogger configures the space, and the GC worker it starts, to log to l instead of the
// package default.
func WithLogger(l *log.Logger) Option {
	return func(cs *CollectedSpace) {
		cs.log = l
	}
}

func defaultLogger() *log.Logger {
	return log.DefaultLogger()
}
