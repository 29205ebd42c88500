package types

import "errors"

// -----------------------------------------------------------------------------
// Typed Errors (stable categories for programmatic handling)
// -----------------------------------------------------------------------------

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindNotFound      ErrKind = iota + 1 // requested pool/shelf absent
	ErrKindAlreadyExists                    // creation over an existing, valid entity
	ErrKindBusy                             // lost a race for exclusive progress; retryable
	ErrKindCorrupt                          // bad magic, bad size, failed mapping
	ErrKindState                            // invalid operation for current handle state
	ErrKindInvalid                          // caller passed an out-of-range argument
	ErrKindNoSpace                          // heap exhausted until it is resized
)

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause

	base *Error // sentinel this error was derived from
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether e was derived from target via Errorf, so that
// errors.Is(err, ErrCorrupt) holds for every corruption report.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return e.base != nil && e.base == t
}

// Errorf builds an error of the same kind as sentinel with extra context.
func Errorf(sentinel *Error, msg string, cause error) *Error {
	return &Error{
		Kind: sentinel.Kind,
		Msg:  sentinel.Msg + ": " + msg,
		Err:  cause,
		base: sentinel,
	}
}

// Sentinels commonly returned by implementations.
var (
	// ErrNotFound indicates the pool id or shelf does not exist (ID_NOT_FOUND).
	ErrNotFound = &Error{Kind: ErrKindNotFound, Msg: "not found"}
	// ErrAlreadyExists indicates the pool id or shelf is already present (ID_FOUND).
	ErrAlreadyExists = &Error{Kind: ErrKindAlreadyExists, Msg: "already exists"}
	// ErrBusy indicates another process holds the resize indicator (HEAP_BUSY).
	ErrBusy = &Error{Kind: ErrKindBusy, Msg: "heap busy"}
	// ErrCorrupt indicates a region failed validation and must not be retried.
	ErrCorrupt = &Error{Kind: ErrKindCorrupt, Msg: "corrupt region"}
	// ErrNotOpen indicates the handle has not been opened in this process.
	ErrNotOpen = &Error{Kind: ErrKindState, Msg: "not open"}
	// ErrInvalidPoolID indicates a pool id outside 1..MaxPools-1.
	ErrInvalidPoolID = &Error{Kind: ErrKindInvalid, Msg: "invalid pool id"}
	// ErrNoSpace indicates every zone of the heap is exhausted.
	ErrNoSpace = &Error{Kind: ErrKindNoSpace, Msg: "no space left in heap"}
	// ErrTooLarge indicates an allocation above MaxBlockSize or a heap above MaxZones.
	ErrTooLarge = &Error{Kind: ErrKindInvalid, Msg: "request too large"}
	// ErrBadPointer indicates a pointer that does not reference a live block.
	ErrBadPointer = &Error{Kind: ErrKindInvalid, Msg: "bad pointer"}
	// ErrUnsupported indicates the platform cannot share the allocator
	// between processes.
	ErrUnsupported = &Error{Kind: ErrKindState, Msg: "unsupported platform"}
)

// -----------------------------------------------------------------------------
// Result codes
// -----------------------------------------------------------------------------

// ErrorCode is the coarse result a caller of the allocator branches on.
type ErrorCode int

const (
	NoError       ErrorCode = iota // success
	IDFound                        // the pool id already exists
	IDNotFound                     // the pool id does not exist
	HeapBusy                       // a resize is in progress elsewhere; retry later
	Unrecoverable                  // corruption, mapping failure or misuse
)

func (c ErrorCode) String() string {
	switch c {
	case NoError:
		return "NO_ERROR"
	case IDFound:
		return "ID_FOUND"
	case IDNotFound:
		return "ID_NOT_FOUND"
	case HeapBusy:
		return "HEAP_BUSY"
	default:
		return "UNRECOVERABLE"
	}
}

// CodeOf maps an error returned by this module to its ErrorCode.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return NoError
	case errors.Is(err, ErrAlreadyExists):
		return IDFound
	case errors.Is(err, ErrNotFound):
		return IDNotFound
	case errors.Is(err, ErrBusy):
		return HeapBusy
	default:
		return Unrecoverable
	}
}

// Retryable reports whether err only means "try again later".
func Retryable(err error) bool {
	return errors.Is(err, ErrBusy)
}
