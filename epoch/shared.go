package epoch

import (
	"unsafe"

	"github.com/rzcore/corepc/internal/xlog"
)

// Shared is a borrowed pointer-plus-tag, valid only while the Guard it
// was produced under (or passed alongside) stays pinned. It is
// copyable and compares by full tagged word: two pointers to the same
// object with different tags are not equal.
type Shared[T any] struct {
	ptr   *T
	tag   uintptr
	guard *Guard
}

// Null returns the null Shared, the epoch equivalent of a nil pointer.
func Null[T any]() Shared[T] { return Shared[T]{} }

// IsNull reports whether s carries no pointer.
func (s Shared[T]) IsNull() bool { return s.ptr == nil }

// Tag returns the tag bits s carries.
func (s Shared[T]) Tag() uintptr { return s.tag }

// WithTag returns a copy of s carrying tag (truncated to ALIGN-1).
// For any t < ALIGN, WithTag(t).Tag() == t and WithTag(t).AsRaw() ==
// s.AsRaw(): the tag round-trips without disturbing the pointer.
func (s Shared[T]) WithTag(tag uintptr) Shared[T] {
	return Shared[T]{ptr: s.ptr, tag: tag & tagMask, guard: s.guard}
}

// AsRaw returns the untagged pointer.
func (s Shared[T]) AsRaw() *T { return s.ptr }

// Deref dereferences s. This presupposes the guard s was produced
// under is still pinned and the pointee has not been concurrently
// freed. In debug builds this package can at least catch the first of
// those, dereferencing after the guard has unpinned, cheaply; it
// cannot catch premature frees, which remain the caller's contract to
// honor.
func (s Shared[T]) Deref() *T {
	if s.guard != nil {
		xlog.DebugAssert(s.guard.pinned.Load(), "epoch: Shared dereferenced after its guard unpinned")
	}
	return s.ptr
}

// Equal compares two Shared values by full tagged word: same pointer
// AND same tag.
func (s Shared[T]) Equal(other Shared[T]) bool {
	return s.intoUsize() == other.intoUsize()
}

// IntoOwned converts a Shared into an Owned, reclaiming unique
// ownership of the pointee. Unsafe in the same sense as
// Atomic.IntoOwned: the caller must guarantee no other Shared to the
// same object is still in use.
func (s Shared[T]) IntoOwned() Owned[T] {
	return Owned[T]{ptr: s.ptr, tag: s.tag}
}

func (s Shared[T]) intoUsize() uintptr {
	return composeTag(uintptr(unsafe.Pointer(s.ptr)), s.tag)
}

func sharedFromUsize[T any](data uintptr, g *Guard) Shared[T] {
	raw, tag := decomposeTag(data)
	return Shared[T]{ptr: (*T)(unsafe.Pointer(raw)), tag: tag, guard: g} //nolint:govet
}
