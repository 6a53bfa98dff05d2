package epoch

import (
	"unsafe"

	"github.com/rzcore/corepc/internal/xlog"
)

// Owned is unique ownership of a heap-allocated T, addressable with a
// tag. The zero value is a null Owned and a programmer error to use:
// never construct one directly, use NewOwned.
type Owned[T any] struct {
	ptr *T
	tag uintptr
}

// NewOwned heap-allocates val and returns unique ownership of it.
func NewOwned[T any](val T) Owned[T] {
	p := new(T)
	*p = val
	checkAligned(uintptr(unsafe.Pointer(p)))
	return Owned[T]{ptr: p}
}

// OwnedFromRaw takes ownership of a pre-existing *T. raw must be
// non-nil and ALIGN-aligned, matching AtomicFromRaw's contract.
func OwnedFromRaw[T any](raw *T) Owned[T] {
	if raw == nil {
		panic("epoch: OwnedFromRaw: nil pointer")
	}
	checkAligned(uintptr(unsafe.Pointer(raw)))
	return Owned[T]{ptr: raw}
}

// Tag returns the tag bits this Owned carries.
func (o Owned[T]) Tag() uintptr { return o.tag }

// WithTag returns a copy of o carrying tag (truncated to ALIGN-1).
func (o Owned[T]) WithTag(tag uintptr) Owned[T] {
	return Owned[T]{ptr: o.ptr, tag: tag & tagMask}
}

// Deref returns the owned pointer, ignoring the tag. Panics (in debug
// builds) if o is the zero Owned: dereferencing a null Owned is a
// programmer error.
func (o Owned[T]) Deref() *T {
	xlog.DebugAssert(o.ptr != nil, "epoch: Deref of a null Owned")
	return o.ptr
}

// IntoBox hands back the raw pointer this Owned uniquely owns.
func (o Owned[T]) IntoBox() *T { return o.Deref() }

func (o Owned[T]) intoUsize() uintptr {
	xlog.DebugAssert(o.ptr != nil, "epoch: converting a null Owned")
	return composeTag(uintptr(unsafe.Pointer(o.ptr)), o.tag)
}

func ownedFromUsize[T any](data uintptr) Owned[T] {
	raw, tag := decomposeTag(data)
	return Owned[T]{ptr: (*T)(unsafe.Pointer(raw)), tag: tag} //nolint:govet
}
