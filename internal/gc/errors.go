package gc

// errors.go collects the store's error classes, following the sentinel-error-plus-structured-type
// idiom used throughout the teacher's vm package (see vm.ErrMemory / vm.MemoryError).
//
// Three classes, per design: allocator failures surface as a zero value (NullVAddr / nil slice)
// and are handled upward by retry; programming errors (misuse of the API) return a CSStatus error
// at the CollectedSpace boundary but panic at the AT/AB/MB layers, where the source treats them as
// undefined behaviour; concurrency contention (shift finding nothing to move) is reported as a
// ShiftResult, not an error.

import (
	"errors"
	"fmt"
)

// ErrOutOfSpace is returned by [MemoryBlock.Malloc] when no free piece is large enough, and by
// [MemoryBlock.Malloc] and [MemorySpace.Malloc] (wrapped) for a zero-byte request. An
// [AddressTable] with an empty free stack reports [ATNoSpace] instead.
var ErrOutOfSpace = errors.New("gc: out of space")

// ErrClosed names the error for an operation on a torn-down store. No operation in this package
// returns it: a store has no close or teardown call.
var ErrClosed = errors.New("gc: store closed")

// ErrNullReference is returned when a caller dereferences [NullVAddr].
var ErrNullReference = errors.New("gc: dereference of null vaddr")

// ErrNotAllocated is returned when a caller dereferences a VAddr that names no live allocation,
// whether because it was freed or because it never existed.
var ErrNotAllocated = errors.New("gc: vaddr not allocated")

// CSStatus is a status code returned at the [CollectedSpace] boundary for programming errors a
// caller can reasonably recover from, modelled on the source's cs_status_code enum.
type CSStatus int

const (
	// CSSuccess is the zero status. No function in this package returns it: exported
	// CollectedSpace methods return a nil error on success instead.
	CSSuccess CSStatus = iota

	// CSEmptyObjectCreation is returned when both the reference table length and the data size
	// requested for a new object are zero.
	CSEmptyObjectCreation

	// CSEmptyRootCreation is returned when both the reference table length and the data size
	// requested for a new root are zero.
	CSEmptyRootCreation

	// CSRootIndexOutOfBounds is returned when a RootID names a slot beyond the root set.
	CSRootIndexOutOfBounds

	// CSRootIndexInvalid is returned when a RootID names a slot that is not currently allocated.
	CSRootIndexInvalid

	// CSRootOffsetOutOfBounds is returned when a reference-table offset is out of bounds for an
	// object's rt_len.
	CSRootOffsetOutOfBounds

	// CSDataOffsetOutOfBounds is returned when a data read/write offset+length overruns da_size.
	CSDataOffsetOutOfBounds
)

func (c CSStatus) String() string {
	switch c {
	case CSSuccess:
		return "success"
	case CSEmptyObjectCreation:
		return "empty object creation"
	case CSEmptyRootCreation:
		return "empty root creation"
	case CSRootIndexOutOfBounds:
		return "root index out of bounds"
	case CSRootIndexInvalid:
		return "root index invalid"
	case CSRootOffsetOutOfBounds:
		return "root offset out of bounds"
	case CSDataOffsetOutOfBounds:
		return "data offset out of bounds"
	default:
		return fmt.Sprintf("CSStatus(%d)", int(c))
	}
}

// Error implements the error interface, so a CSStatus can be returned (and compared with
// errors.Is) directly as an error value.
func (c CSStatus) Error() string {
	return "gc: " + c.String()
}

// StatusError wraps a [CSStatus] with the operation-specific detail that produced it, in the same
// spirit as vm.MemoryError wrapping vm.ErrMemory with an address.
type StatusError struct {
	Status CSStatus
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return e.Status.Error()
	}

	return fmt.Sprintf("%s: %s", e.Status, e.Detail)
}

func (e *StatusError) Is(target error) bool {
	if status, ok := target.(CSStatus); ok {
		return e.Status == status
	}

	se := &StatusError{}
	if errors.As(target, &se) {
		return se.Status == e.Status
	}

	return false
}

func (e *StatusError) Unwrap() error {
	return e.Status
}

func statusErr(status CSStatus, format string, args ...any) error {
	return &StatusError{Status: status, Detail: fmt.Sprintf(format, args...)}
}
