package rendezvous

import "time"

// Sender is a clonable sending handle over a rendezvous Channel.
type Sender[T any] struct {
	ch *Channel[T]
}

// Clone returns a new Sender handle sharing the same channel,
// incrementing its sender reference count.
func (s *Sender[T]) Clone() *Sender[T] {
	s.ch.senderRefs.Add(1)
	return &Sender[T]{ch: s.ch}
}

// TrySend hands msg to an already-waiting receiver without blocking.
func (s *Sender[T]) TrySend(msg T) error { return s.ch.TrySend(msg) }

// Send blocks until a receiver is found or the channel closes.
func (s *Sender[T]) Send(msg T) error { return s.ch.Send(msg) }

// SendDeadline blocks until a receiver is found, the channel closes,
// or deadline elapses.
func (s *Sender[T]) SendDeadline(msg T, deadline time.Time) error {
	return s.ch.SendDeadline(msg, deadline)
}

// Close decrements this handle's share of channel ownership; when the
// last Sender handle closes, the channel transitions to closed. Closing
// one of several cloned Senders leaves the channel open. Returns true
// iff this call caused the channel to transition to closed.
func (s *Sender[T]) Close() bool {
	if s.ch.senderRefs.Add(-1) > 0 {
		return false
	}
	return s.ch.Close()
}

// Capacity always reports 0.
func (s *Sender[T]) Capacity() int { return s.ch.Capacity() }

// Len always reports 0.
func (s *Sender[T]) Len() int { return s.ch.Len() }

// IsEmpty always reports true.
func (s *Sender[T]) IsEmpty() bool { return s.ch.IsEmpty() }

// IsFull always reports true.
func (s *Sender[T]) IsFull() bool { return s.ch.IsFull() }

// Receiver is a clonable receiving handle over a rendezvous Channel.
type Receiver[T any] struct {
	ch *Channel[T]
}

// Clone returns a new Receiver handle sharing the same channel,
// incrementing its receiver reference count.
func (r *Receiver[T]) Clone() *Receiver[T] {
	r.ch.receiverRefs.Add(1)
	return &Receiver[T]{ch: r.ch}
}

// TryRecv attempts to pair with a waiting sender without blocking.
func (r *Receiver[T]) TryRecv() (T, error) { return r.ch.TryRecv() }

// Recv blocks until a sender is found or the channel closes.
func (r *Receiver[T]) Recv() (T, error) { return r.ch.Recv() }

// RecvDeadline blocks until a sender is found, the channel closes, or
// deadline elapses.
func (r *Receiver[T]) RecvDeadline(deadline time.Time) (T, error) {
	return r.ch.RecvDeadline(deadline)
}

// Close decrements this handle's share of channel ownership; when the
// last Receiver handle closes, the channel transitions to closed.
// Returns true iff this call caused the channel to transition to
// closed.
func (r *Receiver[T]) Close() bool {
	if r.ch.receiverRefs.Add(-1) > 0 {
		return false
	}
	return r.ch.Close()
}

// Capacity always reports 0.
func (r *Receiver[T]) Capacity() int { return r.ch.Capacity() }

// Len always reports 0.
func (r *Receiver[T]) Len() int { return r.ch.Len() }

// IsEmpty always reports true.
func (r *Receiver[T]) IsEmpty() bool { return r.ch.IsEmpty() }

// IsFull always reports true.
func (r *Receiver[T]) IsFull() bool { return r.ch.IsFull() }
