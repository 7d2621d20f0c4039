// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import (
	"log/slog"
	"time"
)

// ReadOutcome tags the result of a [Hook.Read] call.
//
// This is the explicit sum type Open Question 1 calls for: the original
// Read path returned a raw buffer pointer on success and NULL on both EOF
// and error, leaving the caller to inspect errno to tell them apart. Here
// the outcome is named explicitly.
type ReadOutcome int

const (
	// ReadBytes indicates n bytes of plaintext were written to dst.
	ReadBytes ReadOutcome = iota

	// ReadWouldBlock indicates no bytes are currently available; Want
	// reports which readiness the caller must wait for before retrying.
	ReadWouldBlock

	// ReadEOF indicates the peer closed its write side (or a 0-length
	// recv), and the socket should begin closing.
	ReadEOF

	// ReadError indicates a fatal I/O error; see the accompanying error.
	ReadError
)

// ReadResult is the outcome of a [Hook.Read] call.
type ReadResult struct {
	Outcome ReadOutcome
	N       int
	Want    Mode // meaningful only when Outcome == ReadWouldBlock
	Err     error
}

// WriteOutcome tags the result of a [Hook.Write] call.
type WriteOutcome int

const (
	// WriteWrote indicates N bytes of src were consumed.
	WriteWrote WriteOutcome = iota

	// WriteWouldBlock indicates zero bytes were consumed; Want reports
	// which readiness the caller must wait for before retrying.
	WriteWouldBlock

	// WriteError indicates a fatal I/O error.
	WriteError
)

// WriteResult is the outcome of a [Hook.Write] call.
type WriteResult struct {
	Outcome WriteOutcome
	N       int
	Want    Mode // meaningful only when Outcome == WriteWouldBlock
	Err     error
}

// Hook intercepts the bytes flowing in and out of a [Socket] so that
// framing, encryption, or compression can be layered transparently.
//
// A [Socket]'s hook stack is ordered outer (closest to application bytes)
// to inner (closest to the kernel socket), fixed between OnAttach and
// OnDetach. The socket calls only the outermost hook; each hook is
// responsible for calling the next inner hook, down to the innermost,
// which reads from or writes to the raw descriptor.
type Hook interface {
	// OnAttach is called once when the hook is installed on s. It may
	// allocate per-connection state.
	OnAttach(s *Socket)

	// OnDetach is called once at close. It must release all per-connection
	// state and must be idempotent.
	OnDetach(s *Socket)

	// Read produces up to len(dst) bytes of plaintext into dst, calling the
	// next inner hook as needed. It may consume input without producing
	// output (e.g. handshake traffic).
	Read(dst []byte) ReadResult

	// Write consumes up to all of src. A short count means the caller
	// retains the residue and retries later.
	Write(src []byte) WriteResult

	// HandshakeDone reports whether this hook (and everything beneath it)
	// has finished any session-establishment work, gating application-level
	// events that must wait for it (e.g. encryption completing).
	HandshakeDone() bool
}

// hookChain is the fixed, ordered stack of hooks for one [Socket], plus a
// raw descriptor hook the socket drives when the stack is empty.
type hookChain struct {
	hooks []Hook
	raw   *rawHook
}

// newHookChain builds the chain outer->inner. The raw descriptor hook is
// not linked beneath hooks: it is used only when hooks is empty, and
// otherwise each hook's own wiring decides what the innermost one reaches.
func newHookChain(h Handle, hooks []Hook) *hookChain {
	raw := &rawHook{handle: h}
	return &hookChain{hooks: hooks, raw: raw}
}

func (c *hookChain) attach(s *Socket) {
	for _, h := range c.hooks {
		h.OnAttach(s)
	}
}

func (c *hookChain) detach(s *Socket) {
	for i := len(c.hooks) - 1; i >= 0; i-- {
		c.hooks[i].OnDetach(s)
	}
}

// outermost returns the hook the socket drives directly, or the raw
// descriptor hook if no hooks are installed.
func (c *hookChain) outermost() Hook {
	if len(c.hooks) == 0 {
		return c.raw
	}
	return c.hooks[0]
}

func (c *hookChain) handshakeDone() bool {
	return c.outermost().HandshakeDone()
}

// rawHook is the innermost link of every chain: it reads from and writes to
// the kernel socket directly via syscalls on the socket's handle.
type rawHook struct {
	handle Handle
}

var _ Hook = (*rawHook)(nil)

func (r *rawHook) OnAttach(*Socket)      {}
func (r *rawHook) OnDetach(*Socket)      {}
func (r *rawHook) HandshakeDone() bool   { return true }
func (r *rawHook) Read(dst []byte) ReadResult {
	n, err := sysRead(r.handle, dst)
	return classifyRead(n, err)
}
func (r *rawHook) Write(src []byte) WriteResult {
	n, err := sysWrite(r.handle, src)
	return classifyWrite(n, err)
}

// LoggingHook is a pass-through [Hook] that logs every Read/Write call at
// Debug level, useful as an outer or inner link to observe traffic without
// transforming it. It never changes want-mode or handshake status on its
// own; HandshakeDone delegates to the next inner hook.
type LoggingHook struct {
	// Next is the hook this one wraps. Must be set before attaching.
	Next Hook

	// Logger receives the Debug-level read/write events.
	Logger SLogger

	// TimeNow is used to timestamp events.
	TimeNow func() time.Time
}

var _ Hook = (*LoggingHook)(nil)

// NewLoggingHook returns a [*LoggingHook] wrapping next, logging through
// logger using cfg's clock.
func NewLoggingHook(next Hook, logger SLogger, cfg *Config) *LoggingHook {
	return &LoggingHook{Next: next, Logger: logger, TimeNow: cfg.TimeNow}
}

// OnAttach implements [Hook].
func (h *LoggingHook) OnAttach(s *Socket) {
	h.Next.OnAttach(s)
}

// OnDetach implements [Hook].
func (h *LoggingHook) OnDetach(s *Socket) {
	h.Next.OnDetach(s)
}

// HandshakeDone implements [Hook].
func (h *LoggingHook) HandshakeDone() bool {
	return h.Next.HandshakeDone()
}

// Read implements [Hook].
func (h *LoggingHook) Read(dst []byte) ReadResult {
	t0 := h.TimeNow()
	result := h.Next.Read(dst)
	h.Logger.Debug("hookRead",
		slog.Int("requested", len(dst)),
		slog.Int("n", result.N),
		slog.Any("err", result.Err),
		slog.Time("t0", t0),
		slog.Time("t", h.TimeNow()),
	)
	return result
}

// Write implements [Hook].
func (h *LoggingHook) Write(src []byte) WriteResult {
	t0 := h.TimeNow()
	result := h.Next.Write(src)
	h.Logger.Debug("hookWrite",
		slog.Int("requested", len(src)),
		slog.Int("n", result.N),
		slog.Any("err", result.Err),
		slog.Time("t0", t0),
		slog.Time("t", h.TimeNow()),
	)
	return result
}
