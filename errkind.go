// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import "github.com/bassosimone/errclass"

// Kind enumerates the ways a [Socket] operation can fail.
//
// Every [Socket] surfaces exactly one [Kind] through [Callbacks.OnError]
// before entering [StateError]. Kind answers "which operation failed";
// it is distinct from the errno-level classification an [ErrClassifier]
// produces for log fields, which answers "what the OS said".
type Kind int

const (
	// KindSocket is returned when the underlying socket(2)-equivalent call fails.
	KindSocket Kind = iota

	// KindBind is returned when bind(2) fails for a listener or an outbound socket.
	KindBind

	// KindConnect is returned when connect(2) fails, either synchronously (not
	// EINPROGRESS) or as reported by SO_ERROR once the pending connect resolves.
	KindConnect

	// KindWrite is returned when a send(2)-equivalent call fails for a reason
	// other than would-block.
	KindWrite

	// KindResolve names a failure to obtain a literal address. The core never
	// performs name resolution (see package doc) and takes addresses as
	// netip.Addr values, so no code path in this package produces it.
	KindResolve

	// KindTimeout is returned when a Connecting socket's deadline elapses.
	KindTimeout

	// KindNomoresockets names the condition of having no room for another
	// descriptor. No code path in this package produces it: the engines do
	// not enforce a descriptor limit.
	KindNomoresockets
)

// String returns a short name for the [Kind], suitable for log fields.
func (k Kind) String() string {
	switch k {
	case KindSocket:
		return "socket"
	case KindBind:
		return "bind"
	case KindConnect:
		return "connect"
	case KindWrite:
		return "write"
	case KindResolve:
		return "resolve"
	case KindTimeout:
		return "timeout"
	case KindNomoresockets:
		return "nomoresockets"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with the [Kind] of operation that failed.
//
// Error implements the standard unwrapping protocol so callers can use
// [errors.Is] and [errors.As] against the wrapped cause.
type Error struct {
	// Kind is the operation that failed.
	Kind Kind

	// Err is the underlying error, if any. May be nil for conditions (such
	// as a parse failure) that carry no OS-level error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

// Unwrap implements the standard unwrapping protocol.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an [*Error] for the given [Kind] and cause.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// ErrClassifier classifies errors into categorical strings for analysis.
//
// Implementations map errors to short, descriptive labels (e.g., "ETIMEDOUT",
// "ECONNRESET") that facilitate systematic analysis of log output. This is
// orthogonal to [Kind]: Kind says which operation failed, the classifier
// says what the OS reported.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to the [ErrClassifier] interface.
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// DefaultErrClassifier classifies errors using [errclass.New], mapping
// errno-level causes to short labels suitable for log fields.
var DefaultErrClassifier = ErrClassifierFunc(func(err error) string {
	if err == nil {
		return ""
	}
	return errclass.New(err)
})
