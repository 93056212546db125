// Package-level configuration for structured logging.
//
// Logging is an infrastructure cross-cutting concern shared by every loop,
// signal, and invocation in the process, so a single package-level logger is
// the default; individual loops may override it via [WithLogger].
package crossthread

import (
	"sync"

	"github.com/joeycumines/logiface"
)

var globalLogger struct {
	sync.RWMutex
	logger *logiface.Logger[logiface.Event]
}

// SetLogger sets the package-level structured logger. A nil logger disables
// package-level logging (logiface treats a nil logger as a no-op).
func SetLogger(logger *logiface.Logger[logiface.Event]) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = logger
}

// getLogger safely retrieves the package-level logger. May return nil, which
// is safe to build log events against.
func getLogger() *logiface.Logger[logiface.Event] {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.logger
}
