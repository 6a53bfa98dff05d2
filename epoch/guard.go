package epoch

import (
	"sync/atomic"

	"github.com/rzcore/corepc/internal/xlog"
)

// Guard is evidence that the current thread is pinned in the current
// global epoch. It bounds how long a Shared produced through it stays
// safe to dereference: while pinned, any pointer observed via
// Atomic.Load remains valid even after being unlinked; after Unpin,
// such pointers are not safe to dereference (checked cheaply in debug
// builds by Shared.Deref).
//
// Guards are thread-local in spirit: nothing stops a Go value from
// crossing goroutines, but doing so defeats the whole protocol, so
// don't.
type Guard struct {
	pinned atomic.Bool
	epoch  atomic.Uint64
}

// Pin establishes the current thread as active in the current global
// epoch and returns the Guard evidencing that; call Unpin (typically
// via defer) when done.
func Pin() *Guard {
	g := &Guard{}
	g.pinned.Store(true)
	g.epoch.Store(globalEpoch.Load())
	pinned.Store(g, struct{}{})

	if pinCount.Add(1)%pinSampleInterval == 0 {
		tryAdvance()
	}
	return g
}

// Unpin declares the thread inactive. Safe to call more than once;
// only the first call has an effect.
func (g *Guard) Unpin() {
	if !g.pinned.CompareAndSwap(true, false) {
		return
	}
	pinned.Delete(g)
	tryAdvance()
}

// Defer schedules f to run once every thread that was pinned when Defer
// was called has unpinned. f is filed under the global epoch current at
// the call, not this Guard's own (possibly older) epoch, so a thread
// that pinned after this Guard still holds f back.
func (g *Guard) Defer(f func()) {
	xlog.DebugAssert(g.pinned.Load(), "epoch: Defer called on an unpinned Guard")
	pushGarbage(globalEpoch.Load(), NewDeferred(f))
}

// DeferDestroy schedules the owned value behind o to become eligible
// for garbage collection once it is safe to do so. Go has no manual
// free, so this drops the last reference instead: capturing o in the
// deferred closure and doing nothing else with it. Once Call runs and
// returns, the closure's only reference is gone and the garbage
// collector can reclaim the pointee on its own schedule.
func DeferDestroy[T any](g *Guard, o Owned[T]) {
	g.Defer(func() {
		_ = o
	})
}
