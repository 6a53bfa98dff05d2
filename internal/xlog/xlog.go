// Package xlog is the shared diagnostic logging substrate for the core
// packages. It wraps zerolog so that rendezvous and epoch can emit
// structured, leveled trace events without forcing a logging policy on
// callers: by default everything is discarded, and a caller wires a
// real sink with SetLogger.
package xlog

import (
	"io"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var logger atomic.Pointer[zerolog.Logger]

func init() {
	discard := zerolog.New(io.Discard)
	logger.Store(&discard)
}

// SetLogger installs l as the destination for all core package
// diagnostics. It is safe to call concurrently with logging calls.
func SetLogger(l zerolog.Logger) {
	logger.Store(&l)
}

// Component returns a child logger namespaced to component, e.g.
// "rendezvous" or "epoch".
func Component(component string) zerolog.Logger {
	return logger.Load().With().Str("component", component).Logger()
}

// debugAssertionsEnabled gates the DebugAssert helper. It is a plain
// constant, false as shipped, so every DebugAssert call compiles away
// to a no-op unless the constant is edited to true.
const debugAssertionsEnabled = false

// DebugAssert panics with msg if debug assertions are enabled and cond
// is false. It exists to document and, with assertions enabled,
// enforce programmer-contract invariants that are undefined behavior
// rather than runtime errors in production: a nil Owned, a Shared
// dereferenced after its guard unpinned, a double Deferred.Call.
func DebugAssert(cond bool, msg string) {
	if debugAssertionsEnabled && !cond {
		panic(msg)
	}
}
