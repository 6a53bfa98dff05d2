package rendezvous

import (
	"sync/atomic"
	"time"

	"github.com/rzcore/corepc/internal/ids"
)

// selectState is the state machine of a waiting context:
// Waiting -> {Selected, Aborted, Closed}. Waiting is the unique
// initial state; the other three are terminal for this operation.
type selectState int32

const (
	stateWaiting selectState = iota
	stateSelected
	stateAborted
	stateClosed
)

// threadContext is a per-attempt structure: one is created for each
// blocking Send, Recv, or Select session and lives only for the
// duration of that one call. It carries the state machine, a
// park/ready primitive, and the slot used to retrieve the packet a
// winning selector matched.
type threadContext struct {
	state selectStateBox

	// selectedOp records which Operation this context was matched to,
	// valid once state has moved to stateSelected.
	selectedOp atomic.Uintptr

	// acceptedPacket is the address of the packet the selecting party
	// chose, written by whichever registry successfully calls
	// trySelect on this context.
	acceptedPacket atomic.Uintptr

	// wake is the park primitive. It is buffered so that a wakeup that
	// races ahead of the park is never lost: every sleep is paired with
	// a single wakeup, even if the wakeup happens before the sleep.
	wake chan struct{}

	id string
}

// selectStateBox wraps atomic.Int32 so the zero value is directly
// usable as stateWaiting without an explicit constructor call.
type selectStateBox struct {
	v atomic.Int32
}

func (s *selectStateBox) load() selectState {
	return selectState(s.v.Load())
}

func (s *selectStateBox) compareAndSwap(old, new selectState) bool {
	return s.v.CompareAndSwap(int32(old), int32(new))
}

func newThreadContext() *threadContext {
	return &threadContext{
		wake: make(chan struct{}, 1),
		id:   ids.New(),
	}
}

// trySelect attempts to transition this context from Waiting to
// Selected on behalf of op, waking the parked caller on success.
func (c *threadContext) trySelect(op Operation, packetAddr uintptr) bool {
	if !c.state.compareAndSwap(stateWaiting, stateSelected) {
		return false
	}
	c.selectedOp.Store(uintptr(op))
	c.acceptedPacket.Store(packetAddr)
	c.ring()
	return true
}

// tryAbort transitions Waiting -> Aborted, used on deadline elapse.
func (c *threadContext) tryAbort() bool {
	return c.state.compareAndSwap(stateWaiting, stateAborted)
}

// tryClose transitions Waiting -> Closed, used by Channel.Close.
func (c *threadContext) tryClose() bool {
	ok := c.state.compareAndSwap(stateWaiting, stateClosed)
	if ok {
		c.ring()
	}
	return ok
}

// ring signals the park channel without blocking if it is already
// signaled (the buffer-of-1 absorbs at most one pending wakeup, which
// is all a single attempt ever needs).
func (c *threadContext) ring() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// waitUntil parks until the context leaves Waiting or deadline
// elapses (a nil deadline means wait forever). It returns the final
// state.
func (c *threadContext) waitUntil(deadline *time.Time) selectState {
	if deadline == nil {
		<-c.wake
		return c.state.load()
	}

	d := time.Until(*deadline)
	if d <= 0 {
		// Deadline already passed: give the context one last chance
		// to have been selected concurrently before declaring abort.
		if c.state.load() == stateWaiting {
			c.tryAbort()
		}
		return c.state.load()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.wake:
		return c.state.load()
	case <-timer.C:
		if c.state.load() == stateWaiting {
			c.tryAbort()
		}
		return c.state.load()
	}
}

// acceptPacket returns the matched packet's address, valid once state
// is stateSelected.
func (c *threadContext) acceptPacket() uintptr {
	return c.acceptedPacket.Load()
}
