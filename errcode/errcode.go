// Package errcode classifies the error kinds from spec.md §7 as a stable,
// comparable identifier plus an optional wrapper that keeps context and a
// cause, the way the teacher keeps bus-facing codes separate from Go's
// wrapped-error chains.
package errcode

// Code is a stable error identifier. It is a string newtype, comparable,
// allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (spec.md §7).
const (
	OK Code = "ok"

	// ConfigInvalid: construction-time validation failure of an animation
	// or sensor. Reject the individual entity, keep loading the rest.
	ConfigInvalid Code = "config_invalid"

	// BusIO: I²C layer failure. Marks the chip degraded.
	BusIO Code = "bus_io"

	// UnknownStep: pin mapper received a step not in the map.
	UnknownStep Code = "unknown_step"

	// Busy: engine rejected start() while already running.
	Busy Code = "busy"

	// NotFound: registry miss.
	NotFound Code = "not_found"

	// Fatal: unrecoverable — I²C bus unavailable at startup, engine thread
	// died. Propagated to the process supervisor.
	Fatal Code = "fatal"

	Error Code = "error" // generic fallback
)

// E keeps a code, the failing operation, a message and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := e.Op
	if s != "" {
		s += ": "
	}
	s += string(e.C)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error. nil maps to OK.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// New builds an *E with the given code, operation and message.
func New(c Code, op, msg string) *E {
	return &E{C: c, Op: op, Msg: msg}
}

// Wrap builds an *E around an existing cause.
func Wrap(c Code, op string, err error) *E {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}
