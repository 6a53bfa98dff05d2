// Package spinlock implements a short-critical-section lock for
// protecting small, O(1) sections of code with no syscalls, the
// contract a rendezvous channel's inner record needs. It is built
// entirely out of exported sync/atomic, unlike the runtime's own
// internal mutex, so it can live outside the standard library.
package spinlock

import (
	"sync/atomic"

	"github.com/rzcore/corepc/internal/backoff"
)

// Spinlock is a mutual-exclusion lock that never parks the calling
// goroutine on contention; it busy-waits with exponential backoff
// instead. Only appropriate for critical sections that do O(1) work
// and never block.
type Spinlock struct {
	locked atomic.Bool
}

// Lock blocks, spinning, until the lock is acquired.
func (s *Spinlock) Lock() {
	var b backoff.Backoff
	for !s.locked.CompareAndSwap(false, true) {
		b.Spin()
	}
}

// Unlock releases the lock. The caller must hold it.
func (s *Spinlock) Unlock() {
	s.locked.Store(false)
}

// TryLock attempts to acquire the lock without spinning, returning
// whether it succeeded.
func (s *Spinlock) TryLock() bool {
	return s.locked.CompareAndSwap(false, true)
}
