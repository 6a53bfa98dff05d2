package rendezvous

import (
	"sync/atomic"
	"unsafe"

	"github.com/rzcore/corepc/internal/backoff"
)

// packet is a single-slot rendezvous buffer: exactly one side writes
// msg and exactly one side reads it, with ready ordering the two. The
// packet is created by whichever side waits (registers a waiter); the
// other side fulfills through it. Which side sets ready depends on the
// provenance: see Channel.writeToken and Channel.readToken.
type packet[T any] struct {
	// onStack records provenance: true if this packet belongs to one
	// blocking Send/Recv call and goes out of scope when it returns, as
	// opposed to a select participant's packet, which is allocated
	// ahead of time and outlives the registering call until whichever
	// side fulfills it.
	onStack bool

	ready atomic.Bool
	msg   T
}

func newStackPacket[T any]() *packet[T] {
	return &packet[T]{onStack: true}
}

func newStackPacketWithMessage[T any](msg T) *packet[T] {
	p := &packet[T]{onStack: true}
	p.msg = msg
	return p
}

func newHeapPacket[T any]() *packet[T] {
	return &packet[T]{onStack: false}
}

// waitReady busy-waits, with backoff, until the packet becomes ready
// for reading or writing.
func (p *packet[T]) waitReady() {
	var b backoff.Backoff
	for !p.ready.Load() {
		b.Snooze()
	}
}

func (p *packet[T]) addr() uintptr {
	return uintptr(unsafe.Pointer(p))
}

func packetFromAddr[T any](addr uintptr) *packet[T] {
	return (*packet[T])(unsafe.Pointer(addr)) //nolint:govet // address recovered from a value produced by (*packet[T]).addr
}
