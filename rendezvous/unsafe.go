package rendezvous

import "unsafe"

// tokenAddr returns the address of a Token as a uintptr, used only as
// an opaque, comparable identity and never dereferenced back from the
// integer. Confined to this one file.
func tokenAddr(t *Token) uintptr {
	return uintptr(unsafe.Pointer(t))
}
