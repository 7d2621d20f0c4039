// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import (
	"context"
	"errors"
	"time"
)

// Mode is the readiness direction an [Engine] watches a [Handle] for.
//
// A handle may be registered under exactly one [Mode] at a time (the
// one-mode-per-handle rule, Testable Property 4). To observe the other
// direction, the owner must [Engine.Modify] the registration.
type Mode int

const (
	// ModeRead watches for read-readiness (data available, or a pending
	// connection on a listener).
	ModeRead Mode = iota

	// ModeWrite watches for write-readiness (send buffer has room, or an
	// outbound connect has resolved).
	ModeWrite
)

// String returns a short name for m, suitable for log fields.
func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

// Event reports that h became ready in the given direction.
type Event struct {
	Handle Handle
	Mode   Mode
}

// ErrAlreadyRegistered is returned by [Engine.Register] when the handle is
// already registered.
var ErrAlreadyRegistered = errors.New("sockcore: handle already registered")

// Engine multiplexes many non-blocking descriptors through a single
// readiness-notification loop.
//
// Implementations wrap a platform readiness primitive (epoll, poll, kqueue,
// or equivalent). All methods are safe to call only from the single
// goroutine that owns the Engine; see the package doc's Concurrency Model.
type Engine interface {
	// Register begins watching h for readiness in the given mode. Returns
	// [ErrAlreadyRegistered] if h is already registered.
	Register(h Handle, mode Mode) error

	// Modify changes the mode a registered handle is watched under.
	// Equivalent to Deregister followed by Register, for backends lacking
	// an atomic modify primitive.
	Modify(h Handle, mode Mode) error

	// Deregister stops watching h. Idempotent: deregistering an unknown or
	// already-deregistered handle is not an error.
	Deregister(h Handle) error

	// Wait blocks until at least one registered handle is ready or timeout
	// elapses (zero means return immediately with whatever is already
	// ready; a negative timeout means no timeout). A deadline on ctx
	// shortens the wait; cancelling ctx does not interrupt a wait blocked
	// on registered handles, and ctx.Err() is returned once the wait ends.
	// The returned slice may be empty.
	Wait(ctx context.Context, timeout time.Duration) ([]Event, error)

	// Close releases the underlying OS resource. The Engine must not be
	// used afterward.
	Close() error
}
