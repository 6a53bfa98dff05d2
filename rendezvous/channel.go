// Package rendezvous implements a synchronous, zero-capacity,
// multi-producer/multi-consumer channel: every send must meet a recv
// in time, neither side proceeds until both are present, and the
// operation is selectable so an external coordinator (Select, in this
// package) can offer many pending operations across many channels and
// commit to exactly one.
package rendezvous

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rzcore/corepc/internal/spinlock"
	"github.com/rzcore/corepc/internal/xlog"
)

// Channel is the inner representation shared by every Sender and
// Receiver handle over one rendezvous channel. It is never used
// directly: obtain handles via New.
type Channel[T any] struct {
	inner spinlock.Spinlock

	// senders/receivers are the waiter registries, guarded by inner.
	senders   *waiterRegistry
	receivers *waiterRegistry

	// closed is read lock-free by String, which only wants a snapshot;
	// every transition still happens under
	// inner so Close stays monotonic.
	closed atomic.Bool

	senderRefs   atomic.Int64
	receiverRefs atomic.Int64
}

// New constructs a zero-capacity rendezvous channel and returns its
// two clonable handles.
func New[T any]() (*Sender[T], *Receiver[T]) {
	ch := &Channel[T]{
		senders:   newWaiterRegistry(),
		receivers: newWaiterRegistry(),
	}
	ch.senderRefs.Store(1)
	ch.receiverRefs.Store(1)
	return &Sender[T]{ch: ch}, &Receiver[T]{ch: ch}
}

// Capacity always reports 0: this is a zero-buffer channel.
func (c *Channel[T]) Capacity() int { return 0 }

// Len always reports 0.
func (c *Channel[T]) Len() int { return 0 }

// IsEmpty always reports true.
func (c *Channel[T]) IsEmpty() bool { return true }

// IsFull always reports true.
func (c *Channel[T]) IsFull() bool { return true }

// String implements fmt.Stringer with a terse debug summary.
func (c *Channel[T]) String() string {
	return fmt.Sprintf("rendezvous.Channel{closed:%t}", c.closed.Load())
}

// startSend is the fast path shared by TrySend and the Sender's
// Selectable.trySelect: pair with a waiting receiver if one exists,
// discover the channel is closed, or report "no immediate partner".
func (c *Channel[T]) startSend(tok *Token, exclude *threadContext) bool {
	c.inner.Lock()
	defer c.inner.Unlock()

	if w := c.receivers.trySelect(exclude); w != nil {
		tok.Zero = w.packet
		return true
	}
	if c.closed.Load() {
		tok.Zero = 0
		return true
	}
	return false
}

// startRecv is symmetric with startSend, senders/receivers swapped.
func (c *Channel[T]) startRecv(tok *Token, exclude *threadContext) bool {
	c.inner.Lock()
	defer c.inner.Unlock()

	if w := c.senders.trySelect(exclude); w != nil {
		tok.Zero = w.packet
		return true
	}
	if c.closed.Load() {
		tok.Zero = 0
		return true
	}
	return false
}

// writeToken publishes msg into the packet tok refers to. A zero
// token means the channel was closed at pairing time.
func (c *Channel[T]) writeToken(tok *Token, msg T) (T, bool) {
	if tok.Zero == 0 {
		return msg, false
	}
	p := packetFromAddr[T](tok.Zero)
	p.msg = msg
	p.ready.Store(true)
	return msg, true
}

// readToken consumes the message from the packet tok refers to,
// handling both packet provenances: a stack packet's message is
// already present and just needs ready set so the producer can
// return; a heap packet (a select participant's) must be waited on,
// and once read is left for the Go garbage collector to reclaim
// instead of an explicit free.
func (c *Channel[T]) readToken(tok *Token) (T, bool) {
	var zero T
	if tok.Zero == 0 {
		return zero, false
	}
	p := packetFromAddr[T](tok.Zero)
	if p.onStack {
		msg := p.msg
		p.ready.Store(true)
		return msg, true
	}
	p.waitReady()
	return p.msg, true
}

// TrySend hands msg to an already-waiting receiver without blocking.
func (c *Channel[T]) TrySend(msg T) error {
	var tok Token
	c.inner.Lock()

	if w := c.receivers.trySelect(nil); w != nil {
		tok.Zero = w.packet
		c.inner.Unlock()
		c.writeToken(&tok, msg)
		return nil
	}
	if c.closed.Load() {
		c.inner.Unlock()
		return &SendError[T]{Msg: msg, Reason: SendClosed}
	}
	c.inner.Unlock()
	return &SendError[T]{Msg: msg, Reason: SendFull}
}

// Send blocks until a receiver is found or the channel closes.
func (c *Channel[T]) Send(msg T) error {
	return c.sendDeadline(msg, nil)
}

// SendDeadline blocks until a receiver is found, the channel closes,
// or deadline elapses.
func (c *Channel[T]) SendDeadline(msg T, deadline time.Time) error {
	return c.sendDeadline(msg, &deadline)
}

func (c *Channel[T]) sendDeadline(msg T, deadline *time.Time) error {
	var tok Token
	c.inner.Lock()

	if w := c.receivers.trySelect(nil); w != nil {
		tok.Zero = w.packet
		c.inner.Unlock()
		c.writeToken(&tok, msg)
		return nil
	}
	if c.closed.Load() {
		c.inner.Unlock()
		return &SendError[T]{Msg: msg, Reason: SendClosed}
	}

	ctx := newThreadContext()
	p := newStackPacketWithMessage(msg)
	op := hookOperation(&tok)
	c.senders.registerWithPacket(op, p.addr(), ctx)
	c.inner.Unlock()

	log := xlog.Component("rendezvous")
	log.Debug().Str("op", "send").Str("ctx", ctx.id).Msg("parked waiting for receiver")

	switch ctx.waitUntil(deadline) {
	case stateAborted:
		c.inner.Lock()
		c.senders.unregister(op)
		c.inner.Unlock()
		return &SendError[T]{Msg: p.msg, Reason: SendTimeout}
	case stateClosed:
		c.inner.Lock()
		c.senders.unregister(op)
		c.inner.Unlock()
		return &SendError[T]{Msg: p.msg, Reason: SendClosed}
	default: // stateSelected
		p.waitReady()
		return nil
	}
}

// TryRecv attempts to pair with a waiting sender without blocking.
func (c *Channel[T]) TryRecv() (T, error) {
	var tok Token
	var zero T
	c.inner.Lock()

	if w := c.senders.trySelect(nil); w != nil {
		tok.Zero = w.packet
		c.inner.Unlock()
		msg, _ := c.readToken(&tok)
		return msg, nil
	}
	if c.closed.Load() {
		c.inner.Unlock()
		return zero, &RecvError{Reason: RecvClosed}
	}
	c.inner.Unlock()
	return zero, &RecvError{Reason: RecvEmpty}
}

// Recv blocks until a sender is found or the channel closes.
func (c *Channel[T]) Recv() (T, error) {
	return c.recvDeadline(nil)
}

// RecvDeadline blocks until a sender is found, the channel closes, or
// deadline elapses.
func (c *Channel[T]) RecvDeadline(deadline time.Time) (T, error) {
	return c.recvDeadline(&deadline)
}

func (c *Channel[T]) recvDeadline(deadline *time.Time) (T, error) {
	var tok Token
	var zero T
	c.inner.Lock()

	if w := c.senders.trySelect(nil); w != nil {
		tok.Zero = w.packet
		c.inner.Unlock()
		msg, _ := c.readToken(&tok)
		return msg, nil
	}
	if c.closed.Load() {
		c.inner.Unlock()
		return zero, &RecvError{Reason: RecvClosed}
	}

	ctx := newThreadContext()
	p := newStackPacket[T]()
	op := hookOperation(&tok)
	c.receivers.registerWithPacket(op, p.addr(), ctx)
	c.inner.Unlock()

	log := xlog.Component("rendezvous")
	log.Debug().Str("op", "recv").Str("ctx", ctx.id).Msg("parked waiting for sender")

	switch ctx.waitUntil(deadline) {
	case stateAborted:
		c.inner.Lock()
		c.receivers.unregister(op)
		c.inner.Unlock()
		return zero, &RecvError{Reason: RecvTimeout}
	case stateClosed:
		c.inner.Lock()
		c.receivers.unregister(op)
		c.inner.Unlock()
		return zero, &RecvError{Reason: RecvClosed}
	default: // stateSelected
		p.waitReady()
		return p.msg, nil
	}
}

// Close closes the channel and wakes every blocked sender and
// receiver. It returns true iff this call performed the transition:
// the close itself is monotonic, and only the first caller gets true.
func (c *Channel[T]) Close() bool {
	c.inner.Lock()
	defer c.inner.Unlock()

	if c.closed.Load() {
		return false
	}
	c.closed.Store(true)
	c.senders.close()
	c.receivers.close()
	xlog.Component("rendezvous").Debug().Msg("channel closed")
	return true
}
