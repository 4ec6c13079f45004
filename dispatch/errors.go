package dispatch

import "errors"

// Error taxonomy from spec.md §6. These are sentinel values rather than a
// single error type with a code field, following the `errors.Is`-friendly
// idiom the teacher uses for its own fixed error sets (e.g. vlog's
// `Configured` sentinel).
var (
	ErrInval       = errors.New("dispatch: invalid argument")
	ErrNoMem       = errors.New("dispatch: allocation failed")
	ErrBusy        = errors.New("dispatch: busy")
	ErrInterrupted = errors.New("dispatch: interrupted")
	ErrTimedOut    = errors.New("dispatch: timed out")
	ErrTerminated  = errors.New("dispatch: terminated")
	ErrNoSuchThing = errors.New("dispatch: no such thing")
	ErrRange       = errors.New("dispatch: out of range")
)
