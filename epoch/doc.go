// Package epoch provides epoch-based reclamation for lock-free data
// structures: an atomic tagged pointer, owning and borrowed handles
// over it, a pin/guard scope bounding how long a borrowed handle stays
// valid, and a deferred-destruction slot for retirement actions that
// must wait until every thread that could still see the old pointer
// has moved on.
//
// The problem this solves: once a node is unlinked from a lock-free
// structure, other threads may still hold a Shared snapshot of it
// obtained before the unlink. Reading a published pointer and
// validating it with a compare-and-swap is the whole point of
// lock-free code. The node cannot be freed until no such snapshot can
// exist anymore. Pinning the current epoch via Pin records "I might be
// holding snapshots from this epoch"; a Deferred scheduled through a
// Guard only runs once every thread has either left that epoch or
// advanced past it.
//
// A typical Treiber stack push looks like:
//
//	g := epoch.Pin()
//	defer g.Unpin()
//	for {
//		head := s.head.Load(epoch.Relaxed, g)
//		n.next.Store(head, epoch.Relaxed)
//		if _, err := s.head.CompareAndSet(head, n, epoch.Release, g); err == nil {
//			return
//		}
//	}
//
// The pin/park and short-critical-section idioms are shared with the
// sibling rendezvous package.
package epoch
