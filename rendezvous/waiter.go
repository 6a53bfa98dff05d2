package rendezvous

import "container/list"

// waiter is one entry in a waiterRegistry: it binds a thread context,
// the operation id it represents, and the packet address that
// operation will hand off through.
type waiter struct {
	ctx    *threadContext
	op     Operation
	packet uintptr
}

// waiterRegistry is an ordered FIFO sequence of waiters for one side
// of a channel (either all pending senders, or all pending
// receivers). Every method here is called while the owning Channel
// holds its inner spinlock, so the registry itself needs no locking
// of its own: it is a plain intrusive structure, a container/list
// linked list plus an index for O(1) removal by Operation.
type waiterRegistry struct {
	waiters list.List
	byOp    map[Operation]*list.Element
}

func newWaiterRegistry() *waiterRegistry {
	return &waiterRegistry{
		byOp: make(map[Operation]*list.Element),
	}
}

// registerWithPacket pushes a new waiter onto the back of the
// registry (FIFO order of registration).
func (r *waiterRegistry) registerWithPacket(op Operation, packetAddr uintptr, ctx *threadContext) {
	w := &waiter{ctx: ctx, op: op, packet: packetAddr}
	elem := r.waiters.PushBack(w)
	r.byOp[op] = elem
}

// trySelect pops the first entry whose context is not current (to
// avoid self-rendezvous within one select session) and whose
// select-arbitration succeeds, returning its waiter. It returns nil if
// no eligible entry could be paired right now.
func (r *waiterRegistry) trySelect(current *threadContext) *waiter {
	for e, next := r.waiters.Front(), (*list.Element)(nil); e != nil; e = next {
		next = e.Next()
		w := e.Value.(*waiter)
		if w.ctx == current {
			continue
		}
		if w.ctx.trySelect(w.op, w.packet) {
			r.waiters.Remove(e)
			delete(r.byOp, w.op)
			return w
		}
		// Arbitration lost this entry to a concurrent close/abort
		// racing in; it is stale, drop it and keep scanning.
		r.waiters.Remove(e)
		delete(r.byOp, w.op)
	}
	return nil
}

// unregister removes the waiter registered under op, if still
// present, and returns it (so the caller can reclaim/free its
// packet). Returns nil if op already won or was already removed.
func (r *waiterRegistry) unregister(op Operation) *waiter {
	elem, ok := r.byOp[op]
	if !ok {
		return nil
	}
	delete(r.byOp, op)
	r.waiters.Remove(elem)
	return elem.Value.(*waiter)
}

// canSelect reports whether this registry has at least one waiter not
// owned by current, meaning a pairing attempt against it could succeed
// right now.
func (r *waiterRegistry) canSelect(current *threadContext) bool {
	for e := r.waiters.Front(); e != nil; e = e.Next() {
		if e.Value.(*waiter).ctx != current {
			return true
		}
	}
	return false
}

// close select-fails every waiter with Closed and wakes it, then
// clears the registry.
func (r *waiterRegistry) close() {
	for e := r.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		w.ctx.tryClose()
	}
	r.waiters.Init()
	r.byOp = make(map[Operation]*list.Element)
}
