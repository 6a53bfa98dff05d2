package epoch

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/rzcore/corepc/internal/xlog"
)

// Atomic is a word holding (raw_ptr | tag), a tagged atomic pointer
// generic over the pointee type T. The low bits of any *T returned by
// Go's allocator are known zero, so the pointer itself already serves
// as the owning handle; no separate handle abstraction is needed.
type Atomic[T any] struct {
	data atomic.Uintptr
}

// NewAtomic constructs an Atomic holding a fresh Owned(val).
func NewAtomic[T any](val T) *Atomic[T] {
	a := &Atomic[T]{}
	a.data.Store(NewOwned(val).intoUsize())
	return a
}

// NewNullAtomic constructs an Atomic whose initial value is null, tag
// zero.
func NewNullAtomic[T any]() *Atomic[T] {
	return &Atomic[T]{}
}

// AtomicFromRaw wraps a pre-existing *T. Panics if raw is not
// ALIGN-aligned.
func AtomicFromRaw[T any](raw *T) *Atomic[T] {
	addr := uintptr(unsafe.Pointer(raw))
	checkAligned(addr)
	a := &Atomic[T]{}
	a.data.Store(addr)
	return a
}

// AtomicFromShared builds an Atomic whose initial tagged word is s,
// tag included, useful for seeding an Atomic with an already-tagged
// null pointer.
func AtomicFromShared[T any](s Shared[T]) *Atomic[T] {
	a := &Atomic[T]{}
	a.data.Store(s.intoUsize())
	return a
}

// Load reads the current tagged pointer. ord is accepted for API
// symmetry with Store/Swap/CompareAndSet; every Load is implemented
// with Go's sequentially-consistent atomic load regardless of which
// Ordering is requested.
func (a *Atomic[T]) Load(ord Ordering, g *Guard) Shared[T] {
	return sharedFromUsize[T](a.data.Load(), g)
}

// LoadConsume is the consume-ordered load variant. Go's memory model
// has no ordering weaker than Acquire to offer here, so this is
// Load(Acquire, g) under another name.
func (a *Atomic[T]) LoadConsume(g *Guard) Shared[T] {
	return a.Load(Acquire, g)
}

// Store installs new, which may be an Owned[T] or a Shared[T].
func (a *Atomic[T]) Store(new pointer[T], ord Ordering) {
	a.data.Store(new.intoUsize())
}

// Swap installs new and returns the previously installed value.
func (a *Atomic[T]) Swap(new pointer[T], ord Ordering, g *Guard) Shared[T] {
	old := a.data.Swap(new.intoUsize())
	return sharedFromUsize[T](old, g)
}

// CompareAndSetError is returned by CompareAndSet/CompareAndSetWeak on
// failure: current is what was actually installed (not necessarily
// what the caller expected), and New is hand back so the caller can
// retry without having lost ownership of it.
type CompareAndSetError[T any] struct {
	Current Shared[T]
	New     pointer[T]
}

func (e *CompareAndSetError[T]) Error() string {
	return fmt.Sprintf("epoch: compare_and_set failed, current tag=%d", e.Current.Tag())
}

// CompareAndSet attempts to replace current with new, deriving the
// failure ordering from ord by weakening it one notch. On success,
// ownership of new transfers into the Atomic; on failure, new is
// returned intact via the error so the caller can retry.
func (a *Atomic[T]) CompareAndSet(current Shared[T], new pointer[T], ord Ordering, g *Guard) (Shared[T], error) {
	return a.CompareAndSetWithFailure(current, new, ord, strongestFailureOrdering(ord), g)
}

// CompareAndSetWithFailure is CompareAndSet with an explicit
// (success, failure) ordering pair; failure must not be Release or
// AcqRel and must be no stronger than success. The rule is enforced,
// not just documented.
func (a *Atomic[T]) CompareAndSetWithFailure(current Shared[T], new pointer[T], success, failure Ordering, g *Guard) (Shared[T], error) {
	validateFailureOrdering(failure)
	// Rank each ordering's load half: Relaxed/Release order no load,
	// Acquire/AcqRel order it as Acquire, SeqCst is strongest.
	loadRank := [...]int{Relaxed: 0, Acquire: 1, Release: 0, AcqRel: 1, SeqCst: 2}
	if loadRank[failure] > loadRank[success] {
		panic("epoch: CAS failure ordering must be no stronger than success")
	}
	old := current.intoUsize()
	newWord := new.intoUsize()
	if a.data.CompareAndSwap(old, newWord) {
		return sharedFromUsize[T](newWord, g), nil
	}
	cur := a.data.Load()
	return Shared[T]{}, &CompareAndSetError[T]{Current: sharedFromUsize[T](cur, g), New: new}
}

// CompareAndSetWeak is the spuriously-failing CAS variant. Go's
// atomic.Uintptr.CompareAndSwap never spuriously fails, so this is
// identical to CompareAndSet.
func (a *Atomic[T]) CompareAndSetWeak(current Shared[T], new pointer[T], ord Ordering, g *Guard) (Shared[T], error) {
	return a.CompareAndSet(current, new, ord, g)
}

// fetchMutate is the shared CAS-retry-loop implementation behind
// FetchAnd/FetchOr/FetchXor: returns the value that was installed
// immediately before f's effect took hold, the "old" value a
// fetch-and-mutate operation always reports.
func (a *Atomic[T]) fetchMutate(f func(old uintptr) uintptr, g *Guard) Shared[T] {
	for {
		old := a.data.Load()
		if a.data.CompareAndSwap(old, f(old)) {
			return sharedFromUsize[T](old, g)
		}
	}
}

// FetchAnd ANDs the tag bits of the stored word with val (val's high
// bits beyond ALIGN are ignored by masking them to 1 first, so raw
// bits are never touched), returning the pre-mutation Shared.
func (a *Atomic[T]) FetchAnd(val uintptr, ord Ordering, g *Guard) Shared[T] {
	return a.fetchMutate(func(old uintptr) uintptr {
		return old & (val | ^tagMask)
	}, g)
}

// FetchOr ORs val (masked to the tag bits) into the stored word's tag.
func (a *Atomic[T]) FetchOr(val uintptr, ord Ordering, g *Guard) Shared[T] {
	return a.fetchMutate(func(old uintptr) uintptr {
		return old | (val & tagMask)
	}, g)
}

// FetchXor XORs val (masked to the tag bits) into the stored word's
// tag.
func (a *Atomic[T]) FetchXor(val uintptr, ord Ordering, g *Guard) Shared[T] {
	return a.fetchMutate(func(old uintptr) uintptr {
		return old ^ (val & tagMask)
	}, g)
}

// IntoOwned consumes the atomic, converting its current value into an
// Owned. This revokes the reclamation protocol's protection, so the
// caller must guarantee exclusive access (no concurrent
// Load/Store/CAS in flight).
func (a *Atomic[T]) IntoOwned() Owned[T] {
	xlog.Component("epoch").Debug().Msg("atomic converted into owned")
	return ownedFromUsize[T](a.data.Load())
}
