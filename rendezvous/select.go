package rendezvous

import (
	"sync/atomic"
	"time"
)

// caseHandle is the capability Select and TrySelect need from one
// candidate operation: a non-blocking try, registering/unregistering
// as a parked waiter, and a completion step that performs the case's
// type-specific write/read once a winner is known. It is implemented
// by *SendCase[T] and *RecvCase[T]; Select and TrySelect operate on it
// without ever needing to know T themselves, the same way the
// registry carries packet addresses as untyped words.
type caseHandle interface {
	trySelect(tok *Token, exclude *threadContext) bool
	register(op Operation, ctx *threadContext) bool
	unregister(op Operation)
	accept(tok *Token, ctx *threadContext)
	complete(tok *Token) (any, error)
}

// SendCase is a select candidate offering to send msg on s.
type SendCase[T any] struct {
	sender *Sender[T]
	msg    T
}

// Send builds a select case offering to send msg on s.
func Send[T any](s *Sender[T], msg T) *SendCase[T] {
	return &SendCase[T]{sender: s, msg: msg}
}

func (c *SendCase[T]) trySelect(tok *Token, exclude *threadContext) bool {
	return c.sender.ch.startSend(tok, exclude)
}

func (c *SendCase[T]) register(op Operation, ctx *threadContext) bool {
	ch := c.sender.ch
	p := newHeapPacket[T]()
	p.msg = c.msg

	ch.inner.Lock()
	ch.senders.registerWithPacket(op, p.addr(), ctx)
	ready := ch.receivers.canSelect(ctx) || ch.closed.Load()
	ch.inner.Unlock()
	return ready
}

func (c *SendCase[T]) unregister(op Operation) {
	ch := c.sender.ch
	ch.inner.Lock()
	ch.senders.unregister(op)
	ch.inner.Unlock()
}

func (c *SendCase[T]) accept(tok *Token, ctx *threadContext) {
	tok.Zero = ctx.acceptPacket()
}

func (c *SendCase[T]) complete(tok *Token) (any, error) {
	if _, ok := c.sender.ch.writeToken(tok, c.msg); !ok {
		return nil, &SendError[T]{Msg: c.msg, Reason: SendClosed}
	}
	return nil, nil
}

// RecvCase is a select candidate offering to receive on r.
type RecvCase[T any] struct {
	receiver *Receiver[T]
}

// Recv builds a select case offering to receive on r.
func Recv[T any](r *Receiver[T]) *RecvCase[T] {
	return &RecvCase[T]{receiver: r}
}

func (c *RecvCase[T]) trySelect(tok *Token, exclude *threadContext) bool {
	return c.receiver.ch.startRecv(tok, exclude)
}

func (c *RecvCase[T]) register(op Operation, ctx *threadContext) bool {
	ch := c.receiver.ch
	p := newHeapPacket[T]()

	ch.inner.Lock()
	ch.receivers.registerWithPacket(op, p.addr(), ctx)
	ready := ch.senders.canSelect(ctx) || ch.closed.Load()
	ch.inner.Unlock()
	return ready
}

func (c *RecvCase[T]) unregister(op Operation) {
	ch := c.receiver.ch
	ch.inner.Lock()
	ch.receivers.unregister(op)
	ch.inner.Unlock()
}

func (c *RecvCase[T]) accept(tok *Token, ctx *threadContext) {
	tok.Zero = ctx.acceptPacket()
}

func (c *RecvCase[T]) complete(tok *Token) (any, error) {
	msg, ok := c.receiver.ch.readToken(tok)
	if !ok {
		return nil, &RecvError{Reason: RecvClosed}
	}
	return msg, nil
}

// selectRotation gives each Select/TrySelect call a different starting
// offset into the case list so that, across many calls, no single
// early case is favored. A shared rotating counter gets the same
// fairness guarantee as shuffling the case order per call, more
// cheaply, for the small case counts and frequent calls this is meant
// for.
var selectRotation atomic.Uint64

func rotationOffset(n int) int {
	if n == 0 {
		return 0
	}
	return int(selectRotation.Add(1) % uint64(n))
}

var opIDs atomic.Uint64

func newOperation() Operation {
	return Operation(opIDs.Add(1))
}

// TrySelect performs one non-blocking pass over cases in rotating
// order and commits to the first one ready, or returns ErrWouldBlock
// if none are.
func TrySelect(cases ...caseHandle) (int, any, error) {
	var tok Token
	start := rotationOffset(len(cases))
	for k := 0; k < len(cases); k++ {
		i := (start + k) % len(cases)
		if cases[i].trySelect(&tok, nil) {
			val, err := cases[i].complete(&tok)
			return i, val, err
		}
	}
	return -1, nil, ErrWouldBlock
}

// Select blocks until exactly one of cases can proceed and commits to
// it. A case whose channel is already closed counts as able to proceed
// and completes with that channel's closed error. If one of the
// channels closes while Select is parked, Select returns -1 and
// ErrClosed. Ties are broken by a rotating starting offset for
// fairness across repeated calls.
func Select(cases ...caseHandle) (int, any, error) {
	return selectUntil(cases, nil)
}

// SelectDeadline is Select with a deadline; on elapse it returns
// ErrSelectTimeout, the equivalent of adding a timeout arm to the
// select.
func SelectDeadline(deadline time.Time, cases ...caseHandle) (int, any, error) {
	return selectUntil(cases, &deadline)
}

func selectUntil(cases []caseHandle, deadline *time.Time) (int, any, error) {
	var tok Token
	start := rotationOffset(len(cases))

	for k := 0; k < len(cases); k++ {
		i := (start + k) % len(cases)
		if cases[i].trySelect(&tok, nil) {
			val, err := cases[i].complete(&tok)
			return i, val, err
		}
	}

	ctx := newThreadContext()
	ops := make([]Operation, len(cases))
	ready := make([]bool, len(cases))
	for k := 0; k < len(cases); k++ {
		i := (start + k) % len(cases)
		ops[i] = newOperation()
		ready[i] = cases[i].register(ops[i], ctx)
	}

	// Close the race window between the first try-select pass and
	// registration: a partner that was already parked before we
	// registered will not itself re-scan, and register reports it as
	// ready. Pairing with it directly could commit a second case if a
	// partner has meanwhile selected ctx, so withdraw ctx instead: if
	// the abort wins, nobody selected it, and every registration is
	// torn down before starting over; if it loses, ctx was selected and
	// waitUntil below returns at once.
	for k := 0; k < len(cases); k++ {
		i := (start + k) % len(cases)
		if ready[i] && ctx.tryAbort() {
			for j, c := range cases {
				c.unregister(ops[j])
			}
			return selectUntil(cases, deadline)
		}
	}

	state := ctx.waitUntil(deadline)

	switch state {
	case stateAborted:
		for i, c := range cases {
			c.unregister(ops[i])
		}
		return -1, nil, ErrSelectTimeout
	case stateClosed:
		for i, c := range cases {
			c.unregister(ops[i])
		}
		return -1, nil, ErrClosed
	default: // stateSelected
		selectedOp := Operation(ctx.selectedOp.Load())
		winner := -1
		for i, op := range ops {
			if op == selectedOp {
				winner = i
				continue
			}
			cases[i].unregister(op)
		}
		if winner == -1 {
			return -1, nil, ErrClosed
		}
		cases[winner].accept(&tok, ctx)
		val, err := cases[winner].complete(&tok)
		return winner, val, err
	}
}
