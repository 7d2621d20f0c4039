// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import (
	"log/slog"
	"net/netip"
	"time"
)

// State is the lifecycle stage of a [Socket].
type State int

const (
	// StateDisconnected is the initial state before any open call.
	StateDisconnected State = iota

	// StateConnecting is entered by [OpenClient]; the socket is
	// registered for write-readiness until the connect resolves.
	StateConnecting

	// StateListening is entered by [OpenListener].
	StateListening

	// StateConnected is entered once a client connect completes, an
	// incoming connection is adopted, or (trivially) never left by a
	// listener's children until they close.
	StateConnected

	// StateError is terminal; the only valid operation is [Socket.Close].
	StateError
)

// String returns a short name for the [State], suitable for log fields.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// SocketStats are the cumulative byte and call counters kept per [Socket].
//
// Not part of spec.md's original contract; supplemented from
// original_source/src/inspsocket.cpp, which tracks analogous counters on
// StreamSocket for `/STATS` reporting. Kept here because Testable Property 2
// (buffer conservation) is much easier to assert against a running total
// than by re-deriving it from log output.
type SocketStats struct {
	BytesIn  uint64
	BytesOut uint64
	Reads    uint64
	Writes   uint64
}

// Callbacks is the polymorphic capability set a [Socket] owner implements.
//
// A false return from OnDataReady or OnWriteReady requests that the owner's
// caller tear the connection down at the next opportunity.
type Callbacks interface {
	// OnConnected is called once when an outbound connect completes.
	OnConnected() bool

	// OnError is called once with the failure [Kind] before the socket
	// enters [StateError].
	OnError(kind Kind)

	// OnDisconnect is called once when a read on a Connected socket reports
	// that the peer closed the connection (EOF), just before the socket
	// closes. It is not called for closes the owner or a callback's false
	// return initiates. The returned int is opaque to the core
	// (carried over from the original callback signature for parity;
	// callers are free to ignore it).
	OnDisconnect() int

	// OnIncomingConnection is called by a [Listener] for each accepted
	// connection, before [Adopt] constructs the child.
	OnIncomingConnection(fd Handle, ip netip.Addr) int

	// OnDataReady is called after a successful read; returning false
	// requests teardown.
	OnDataReady() bool

	// OnWriteReady is called once request_write_ready's requested
	// readiness is observed; returning false requests teardown.
	OnWriteReady() bool

	// OnTimeout is called once if a Connecting socket's deadline elapses.
	OnTimeout()

	// OnClose is called exactly once, however Close was reached.
	OnClose()
}

// Socket is a single non-blocking, buffered, hook-wrapped descriptor and its
// state machine. See the package doc's Core Abstraction section.
//
// A Socket is driven entirely by its owning event loop: [Socket.PollReady]
// on every readiness event, [Socket.Tick] once per loop iteration. No Socket
// method may be called concurrently with another on the same Socket.
type Socket struct {
	id      string
	handle  Handle
	state   State
	engine  Engine
	hooks   *hookChain
	cb      Callbacks
	logger  SLogger
	errCls  ErrClassifier
	timeNow func() time.Time

	remoteAddr netip.AddrPort
	localAddr  netip.AddrPort

	outQueue     [][]byte
	closePending bool
	closed       bool
	wantsWrite   bool
	hookWantsWrite bool
	deadline     time.Time

	lastRead    []byte
	lastReadBuf []byte
	readBufSize int

	stats SocketStats
}

// newSocket builds a [*Socket] with no handle yet registered; callers use
// one of [OpenClient], [OpenListener], or [Adopt] to
// bring it to a live state.
func newSocket(engine Engine, cfg *Config, cb Callbacks, hooks []Hook) *Socket {
	return &Socket{
		id:          NewConnectionID(),
		handle:      InvalidHandle,
		state:       StateDisconnected,
		engine:      engine,
		cb:          cb,
		logger:      cfg.Logger,
		errCls:      cfg.ErrClassifier,
		timeNow:     cfg.TimeNow,
		readBufSize: cfg.ReadBufferSize,
	}
}

// ID returns the connection's UUIDv7 span ID, attached to every log record
// this socket emits.
func (s *Socket) ID() string { return s.id }

// State returns the socket's current lifecycle state.
func (s *Socket) State() State { return s.state }

// Handle returns the socket's OS descriptor, or [InvalidHandle] before open.
func (s *Socket) Handle() Handle { return s.handle }

// Stats returns the cumulative byte and call counters.
func (s *Socket) Stats() SocketStats { return s.stats }

// RemoteAddr returns the peer address as a string, or "" if unknown.
func (s *Socket) RemoteAddr() string {
	if !s.remoteAddr.IsValid() {
		return ""
	}
	return s.remoteAddr.String()
}

// LocalAddr returns the local address as a string, or "" if unknown.
func (s *Socket) LocalAddr() string {
	if !s.localAddr.IsValid() {
		return ""
	}
	return s.localAddr.String()
}

func (s *Socket) logFields() []any {
	return []any{slog.String("connID", s.id), slog.String("state", s.state.String())}
}

// OpenClient begins a non-blocking outbound connection to ip:port.
//
// timeout bounds how long the socket may remain Connecting; zero uses
// cfg.ConnectTimeout. hooks is the fixed, ordered outer->inner hook stack
// (may be empty for a plain TCP socket).
func OpenClient(engine Engine, cfg *Config, cb Callbacks, ip netip.Addr, port int, timeout time.Duration, hooks []Hook) (*Socket, error) {
	s := newSocket(engine, cfg, cb, hooks)

	h, err := sysSocket(ip)
	if err != nil {
		s.state = StateError
		return nil, NewError(KindSocket, err)
	}

	if bind, ok := ChooseOutboundBind(cfg); ok {
		if err := sysBind(h, bind); err != nil {
			_ = sysClose(h)
			s.state = StateError
			return nil, NewError(KindBind, err)
		}
	}

	if err := sysConnect(h, netip.AddrPortFrom(ip, uint16(port))); err != nil {
		_ = sysClose(h)
		s.state = StateError
		return nil, NewError(KindConnect, err)
	}

	if timeout <= 0 {
		timeout = cfg.ConnectTimeout
	}

	s.handle = h
	s.hooks = newHookChain(h, hooks)
	s.remoteAddr = netip.AddrPortFrom(ip, uint16(port))
	s.state = StateConnecting
	s.deadline = s.timeNow().Add(timeout)
	s.hooks.attach(s)

	if err := s.engine.Register(h, ModeWrite); err != nil {
		_ = sysClose(h)
		s.state = StateError
		return nil, NewError(KindSocket, err)
	}

	s.logger.Info("socketOpenClient", append(s.logFields(),
		slog.String("ip", ip.String()),
		slog.Int("port", port),
		slog.Duration("timeout", timeout),
	)...)
	return s, nil
}

// OpenListener begins listening on ip:port.
func OpenListener(engine Engine, cfg *Config, cb Callbacks, ip netip.Addr, port int) (*Socket, error) {
	s := newSocket(engine, cfg, cb, nil)

	h, err := sysListenBind(ip, port, 128)
	if err != nil {
		s.state = StateError
		return nil, NewError(KindBind, err)
	}

	s.handle = h
	s.hooks = newHookChain(h, nil)
	s.localAddr = netip.AddrPortFrom(ip, uint16(port))
	s.state = StateListening

	if err := s.engine.Register(h, ModeRead); err != nil {
		_ = sysClose(h)
		s.state = StateError
		return nil, NewError(KindSocket, err)
	}

	s.logger.Info("socketOpenListener", append(s.logFields(),
		slog.String("ip", ip.String()),
		slog.Int("port", port),
	)...)
	return s, nil
}

// Adopt wraps an already-accepted descriptor as a Connected [Socket].
// Used by [Listener.OnIncomingConnection]; exported so a caller adopting descriptors
// from elsewhere (e.g. a pre-accept queue) can reuse the same path.
func Adopt(engine Engine, cfg *Config, cb Callbacks, fd Handle, peer netip.Addr, hooks []Hook) (*Socket, error) {
	s := newSocket(engine, cfg, cb, hooks)
	s.handle = fd
	s.hooks = newHookChain(fd, hooks)
	s.remoteAddr = netip.AddrPortFrom(peer, 0)
	s.state = StateConnected
	s.hooks.attach(s)

	if err := s.engine.Register(fd, ModeRead); err != nil {
		_ = sysClose(fd)
		s.state = StateError
		return nil, NewError(KindSocket, err)
	}

	s.logger.Info("socketAdopt", append(s.logFields(), slog.String("peer", peer.String()))...)
	return s, nil
}

// Write enqueues bytes for transmission and attempts an immediate flush.
//
// Returns false if the socket is close-pending (the write is dropped,
// matching spec.md §4.2's "returns false if close-pending").
func (s *Socket) Write(b []byte) bool {
	if s.closePending || len(b) == 0 {
		return !s.closePending
	}
	chunk := append([]byte(nil), b...)
	s.outQueue = append(s.outQueue, chunk)
	s.flush()
	return true
}

// RequestWriteReady arms the "wants-write" flag and flips the engine
// registration to Write, so the next readiness event delivers OnWriteReady.
func (s *Socket) RequestWriteReady() {
	if s.state != StateConnected || s.closePending {
		return
	}
	s.wantsWrite = true
	_ = s.engine.Modify(s.handle, ModeWrite)
	s.logger.Debug("socketRequestWriteReady", s.logFields()...)
}

// Close marks the socket close-pending and tears it down immediately:
// hooks are detached, the handle is deregistered and closed, and OnClose
// fires. Idempotent.
func (s *Socket) Close() {
	if s.closed {
		return
	}
	s.closePending = true
	s.teardown()
}

func (s *Socket) teardown() {
	if s.closed {
		return
	}
	s.closed = true
	if s.hooks != nil {
		s.hooks.detach(s)
	}
	if s.handle.Valid() {
		_ = s.engine.Deregister(s.handle)
		_ = sysClose(s.handle)
	}
	s.logger.Info("socketClose", s.logFields()...)
	s.cb.OnClose()
}

func (s *Socket) fail(kind Kind, err error) {
	if s.state == StateError {
		return
	}
	s.state = StateError
	s.closePending = true
	s.logger.Info("socketError",
		append(s.logFields(), slog.String("kind", kind.String()),
			slog.String("errClass", s.errCls.Classify(err)), slog.Any("err", err))...)
	s.cb.OnError(kind)
}

// PollReady advances the state machine in response to one readiness event
// for the given mode.
func (s *Socket) PollReady(mode Mode) {
	switch s.state {
	case StateConnecting:
		s.pollConnecting()
	case StateListening:
		s.pollListening()
	case StateConnected:
		s.pollConnected(mode)
	default:
	}
}

func (s *Socket) pollConnecting() {
	if err := sysConnectError(s.handle); err != nil {
		s.fail(KindConnect, err)
		return
	}
	s.state = StateConnected
	_ = s.engine.Modify(s.handle, ModeRead)
	s.logger.Info("socketConnected", s.logFields()...)
	if !s.cb.OnConnected() {
		s.Close()
	}
}

func (s *Socket) pollListening() {
	fd, peer, err := sysAccept(s.handle)
	if err != nil {
		return
	}
	s.logger.Debug("socketIncomingConnection", append(s.logFields(), slog.String("peer", peer.String()))...)
	s.cb.OnIncomingConnection(fd, peer)
}

func (s *Socket) pollConnected(mode Mode) {
	if mode == ModeWrite {
		// A write-ready event means the descriptor is writable again,
		// regardless of whether a hook or an explicit RequestWriteReady
		// asked for it; re-arm Read first, then flush, then notify the
		// owner only if it was the one that asked.
		appRequested := s.wantsWrite
		s.wantsWrite = false
		s.hookWantsWrite = false
		_ = s.engine.Modify(s.handle, ModeRead)
		s.flush()
		if appRequested {
			s.logger.Debug("socketWriteReady", s.logFields()...)
			if !s.cb.OnWriteReady() {
				s.Close()
			}
		}
		return
	}

	result := s.hooks.outermost().Read(s.readBuf())
	switch result.Outcome {
	case ReadBytes:
		s.stats.BytesIn += uint64(result.N)
		s.stats.Reads++
		s.lastRead = s.lastReadBuf[:result.N]
		if !s.cb.OnDataReady() {
			s.Close()
			return
		}
		s.flush()
	case ReadWouldBlock:
		if result.Want == ModeWrite {
			s.applyHookWantWrite(true)
		} else {
			s.applyHookWantWrite(false)
		}
	case ReadEOF:
		s.logger.Info("socketEOF", s.logFields()...)
		_ = s.cb.OnDisconnect()
		s.Close()
	case ReadError:
		s.fail(KindSocket, result.Err)
	}
}

// applyHookWantWrite flips the engine registration when a hook's want-mode
// changes, honoring spec.md §4.4's want-mode aggregation: "if any hook wants
// Write, the engine is flipped via request_write_ready."
func (s *Socket) applyHookWantWrite(want bool) {
	if want == s.hookWantsWrite {
		return
	}
	s.hookWantsWrite = want
	if want {
		_ = s.engine.Modify(s.handle, ModeWrite)
	} else {
		_ = s.engine.Modify(s.handle, ModeRead)
	}
}

// LastRead returns the bytes most recently delivered to OnDataReady.
func (s *Socket) LastRead() []byte { return s.lastRead }

// readBuf lazily allocates the fixed-size read buffer reused across calls,
// sized from cfg.ReadBufferSize (falling back to defaultReadBufferSize for a
// zero-value Socket built outside [newSocket]).
func (s *Socket) readBuf() []byte {
	if s.lastReadBuf == nil {
		size := s.readBufSize
		if size <= 0 {
			size = defaultReadBufferSize
		}
		s.lastReadBuf = make([]byte, size)
	}
	return s.lastReadBuf
}

// flush transmits as much of the outbound queue as the hook chain accepts
// without blocking, replacing a partially-sent head chunk with its unsent
// suffix rather than splitting it into additional queue entries.
func (s *Socket) flush() {
	for len(s.outQueue) > 0 {
		head := s.outQueue[0]
		result := s.hooks.outermost().Write(head)
		switch result.Outcome {
		case WriteWrote:
			s.stats.BytesOut += uint64(result.N)
			s.stats.Writes++
			if result.N >= len(head) {
				s.outQueue = s.outQueue[1:]
				continue
			}
			s.outQueue[0] = head[result.N:]
			return
		case WriteWouldBlock:
			s.applyHookWantWrite(true)
			return
		case WriteError:
			s.fail(KindWrite, result.Err)
			return
		}
	}
	s.applyHookWantWrite(false)
}

// Tick enforces the Connecting deadline and opportunistically flushes.
func (s *Socket) Tick(now time.Time) {
	if s.state == StateConnecting && !s.deadline.IsZero() && now.After(s.deadline) {
		s.logger.Info("socketTimeout", append(s.logFields(),
			slog.Time("now", now),
			slog.Time("deadline", s.deadline),
		)...)
		s.cb.OnTimeout()
		s.fail(KindTimeout, nil)
		return
	}
	if s.state == StateConnected {
		s.flush()
	}
	if s.closePending && !s.closed {
		s.teardown()
	}
}
