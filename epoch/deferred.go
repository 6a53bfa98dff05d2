package epoch

import "github.com/rzcore/corepc/internal/xlog"

// Deferred is a one-shot retirement action. Some implementations pack
// small closures inline in a fixed-size buffer and only box larger
// ones, to dodge a heap allocation for the common case; that trick
// doesn't carry over here, since a Go func value is already just a
// pointer to a heap-allocated closure environment with no stable,
// introspectable layout to copy into a byte buffer. What does carry
// over is the single-shot contract: Call invokes the wrapped function
// exactly once. Calling it again is a programmer error: the second
// call does not re-run the action, and panics when debug assertions
// are enabled.
type Deferred struct {
	fn func()
}

// NewDeferred wraps f for one later invocation.
func NewDeferred(f func()) Deferred {
	return Deferred{fn: f}
}

// Call invokes the wrapped function exactly once, consuming d.
func (d *Deferred) Call() {
	fn := d.fn
	xlog.DebugAssert(fn != nil, "epoch: Deferred called twice")
	d.fn = nil
	if fn != nil {
		fn()
	}
}
