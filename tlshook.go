// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/safeconn"
	"golang.org/x/sync/errgroup"
)

// TLSEngine builds the concrete TLS implementation a [TLSHook] drives for
// the outbound-connect direction.
//
// Abstracting over engine construction (rather than calling [tls.Client]
// directly) lets tests substitute a stub implementation such as
// [github.com/bassosimone/tlsstub.FuncTLSEngine].
type TLSEngine interface {
	// Client builds a new client-side [TLSConn] (outbound-connect direction).
	Client(conn net.Conn, config *tls.Config) TLSConn

	// Name returns the engine name, used only for log fields.
	Name() string
}

// TLSServerEngine is the accept-side counterpart of [TLSEngine].
//
// It is a separate interface, rather than a method on [TLSEngine] itself,
// so that [TLSEngine] keeps the exact client-only shape of the reference
// engine abstraction (and so stub engines built only for outbound testing
// keep satisfying it). [TLSHook] requires its Engine to also implement this
// interface when run in the accept direction.
type TLSServerEngine interface {
	// Server builds a new server-side [TLSConn] (inbound-accept direction).
	Server(conn net.Conn, config *tls.Config) TLSConn
}

// TLSEngineStdlib implements [TLSEngine] and [TLSServerEngine] over the
// standard library.
//
// The zero value is ready to use.
type TLSEngineStdlib struct{}

var (
	_ TLSEngine       = TLSEngineStdlib{}
	_ TLSServerEngine = TLSEngineStdlib{}
)

// Client implements [TLSEngine] using [tls.Client].
func (TLSEngineStdlib) Client(conn net.Conn, config *tls.Config) TLSConn {
	return tls.Client(conn, config)
}

// Server implements [TLSServerEngine] using [tls.Server].
func (TLSEngineStdlib) Server(conn net.Conn, config *tls.Config) TLSConn {
	return tls.Server(conn, config)
}

// Name implements [TLSEngine]. Returns "stdlib".
func (TLSEngineStdlib) Name() string {
	return "stdlib"
}

// TLSConn abstracts over [*tls.Conn] so [TLSEngine] implementations other
// than the standard library can be substituted in tests.
type TLSConn interface {
	ConnectionState() tls.ConnectionState
	HandshakeContext(ctx context.Context) error
	net.Conn
}

type tlsStatus int

const (
	tlsNone tlsStatus = iota
	tlsHandshaking
	tlsOpen
	tlsClosed
)

// TLSHook is the reference [Hook] implementation: it performs the TLS
// handshake and record-layer framing over the raw descriptor reached via
// Next.
//
// Because [crypto/tls] exposes no non-blocking want-read/want-write API,
// the handshake and the post-handshake record layer run on a dedicated
// goroutine per connection (see tlsbridge.go), bridged back to this hook's
// non-blocking Read/Write via [wireConn], [byteQueue], and [sendQueue]. The
// hook still reports a read-want and a write-want per direction, the same
// four-way cross product OpenSSL's SSL_get_error would report, derived from
// whichever side of the bridge is currently stalled.
type TLSHook struct {
	// Next is the inner hook this one wraps — ultimately the raw socket.
	Next Hook

	// Engine builds the concrete TLS connection. Defaults to
	// [TLSEngineStdlib] via [NewTLSHook].
	Engine TLSEngine

	// TLSConfig is cloned per connection (its Time field is overridden from
	// Config.TimeNow).
	TLSConfig *tls.Config

	// Outbound is true for the connect direction, false for accept.
	Outbound bool

	Logger        SLogger
	ErrClassifier ErrClassifier
	TimeNow       func() time.Time
	ReadChunkSize int

	mu       sync.Mutex
	status   tlsStatus
	readWant  Mode
	writeWant Mode
	err      error
	cert     CertificateInfo
	hasCert  bool

	socket *Socket
	wire   *wireConn
	appIn  *byteQueue
	appOut *sendQueue
	cancel context.CancelFunc
	group  *errgroup.Group
	tlsConn TLSConn

	detachOnce sync.Once
	pendingOut []byte
}

var _ Hook = (*TLSHook)(nil)

// NewTLSHook returns a [*TLSHook] wrapping next, performing the handshake
// described by tlsConfig in the given direction.
func NewTLSHook(cfg *Config, tlsConfig *tls.Config, outbound bool, next Hook, logger SLogger) *TLSHook {
	runtimex.Assert(tlsConfig != nil)
	runtimex.Assert(next != nil)
	return &TLSHook{
		Next:          next,
		Engine:        TLSEngineStdlib{},
		TLSConfig:     tlsConfig,
		Outbound:      outbound,
		Logger:        logger,
		ErrClassifier: cfg.ErrClassifier,
		TimeNow:       cfg.TimeNow,
		ReadChunkSize: cfg.ReadBufferSize,
		readWant:      ModeRead,
		writeWant:     ModeRead,
	}
}

// OnAttach implements [Hook]. Moves the session from None to Handshaking
// and starts the bridge goroutine.
func (h *TLSHook) OnAttach(s *Socket) {
	h.Next.OnAttach(s)
	h.socket = s

	h.mu.Lock()
	h.status = tlsHandshaking
	h.mu.Unlock()

	h.wire = newWireConn(dummyAddr{s.RemoteAddr()}, dummyAddr{s.RemoteAddr()})
	h.appIn = newByteQueue(4 * h.chunkSize())
	h.appOut = newSendQueue(4 * h.chunkSize())

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	h.group = group
	group.Go(func() error { return h.runBridge(gctx) })
}

// OnDetach implements [Hook]. Idempotent: releases the bridge goroutine and
// all per-connection state.
func (h *TLSHook) OnDetach(s *Socket) {
	h.detachOnce.Do(func() {
		if h.cancel != nil {
			h.cancel()
		}
		if h.wire != nil {
			h.wire.Close()
		}
		if h.appOut != nil {
			h.appOut.close()
		}
		if h.appIn != nil {
			h.appIn.finish(errBridgeClosed)
		}
	})
	h.Next.OnDetach(s)
}

// HandshakeDone implements [Hook].
func (h *TLSHook) HandshakeDone() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status == tlsOpen
}

// CertificateInfo returns the peer certificate metadata recorded at
// handshake completion, if any.
func (h *TLSHook) CertificateInfo() (CertificateInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cert, h.hasCert
}

func (h *TLSHook) chunkSize() int {
	if h.ReadChunkSize <= 0 {
		return defaultReadBufferSize
	}
	return h.ReadChunkSize
}

func (h *TLSHook) tlsConfig() *tls.Config {
	cfg := h.TLSConfig.Clone()
	cfg.Time = h.TimeNow
	// The reference hook accepts self-signed and otherwise untrusted peers
	// and records the trust outcome in CertificateInfo rather than failing
	// the handshake; spec.md §4.5 "Certificate inspection".
	cfg.InsecureSkipVerify = true
	return cfg
}

// verifyPeerChain runs the standard library chain verification that
// cfg.InsecureSkipVerify disabled inside the handshake itself, so
// [extractCertificateInfo] can report a real trust outcome instead of one
// that is always nil. A nil peer chain (no certificates presented) verifies
// trivially; extractCertificateInfo already treats that case as "no info".
func verifyPeerChain(state tls.ConnectionState, roots *x509.CertPool, now time.Time) error {
	if len(state.PeerCertificates) == 0 {
		return nil
	}
	leaf := state.PeerCertificates[0]
	intermediates := x509.NewCertPool()
	for _, cert := range state.PeerCertificates[1:] {
		intermediates.AddCert(cert)
	}
	_, err := leaf.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   now,
	})
	return err
}

// Read implements [Hook].
func (h *TLSHook) Read(dst []byte) ReadResult {
	h.pumpOutbound()
	h.pumpInbound()

	n, eof, err := h.appIn.pop(dst)
	if err != nil {
		return ReadResult{Outcome: ReadError, Err: err}
	}
	if n > 0 {
		return ReadResult{Outcome: ReadBytes, N: n}
	}
	if eof {
		return ReadResult{Outcome: ReadEOF}
	}

	h.mu.Lock()
	want := h.readWant
	h.mu.Unlock()
	return ReadResult{Outcome: ReadWouldBlock, Want: want}
}

// Write implements [Hook].
func (h *TLSHook) Write(src []byte) WriteResult {
	h.pumpOutbound()
	h.pumpInbound()

	h.mu.Lock()
	failed := h.status == tlsClosed
	writeWant := h.writeWant
	h.mu.Unlock()
	if failed {
		return WriteResult{Outcome: WriteError, Err: h.lastError()}
	}

	n := h.appOut.offer(src)
	if n == 0 {
		return WriteResult{Outcome: WriteWouldBlock, Want: writeWant}
	}
	return WriteResult{Outcome: WriteWrote, N: n}
}

func (h *TLSHook) lastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// pumpOutbound drains ciphertext the bridge goroutine has queued for
// transmission into Next.Write, honoring the outbound residue policy
// (the unsent suffix is retained, not re-split) used by [Socket] itself.
func (h *TLSHook) pumpOutbound() {
	if len(h.pendingOut) > 0 {
		if !h.flushPending() {
			return
		}
	}
	for {
		chunk := h.wire.drainCiphertext(h.chunkSize())
		if len(chunk) == 0 {
			return
		}
		h.pendingOut = chunk
		if !h.flushPending() {
			return
		}
	}
}

// flushPending writes h.pendingOut via Next.Write, returning true iff the
// whole chunk was consumed (so the caller may attempt to drain more).
func (h *TLSHook) flushPending() bool {
	res := h.Next.Write(h.pendingOut)
	switch res.Outcome {
	case WriteWrote:
		h.pendingOut = h.pendingOut[res.N:]
		return len(h.pendingOut) == 0
	case WriteWouldBlock:
		h.setWriteWant(res.Want)
		return false
	default:
		h.fail(res.Err)
		return false
	}
}

// pumpInbound reads one chunk of ciphertext from Next and feeds it to the
// bridge goroutine, matching the "single recv-equivalent per ready event"
// read policy applied throughout this package.
func (h *TLSHook) pumpInbound() {
	buf := make([]byte, h.chunkSize())
	res := h.Next.Read(buf)
	switch res.Outcome {
	case ReadBytes:
		h.wire.feedCiphertext(buf[:res.N])
	case ReadWouldBlock:
		h.setReadWant(res.Want)
	case ReadEOF:
		h.wire.closeRead()
	case ReadError:
		h.fail(res.Err)
	}
}

func (h *TLSHook) setReadWant(m Mode) {
	h.mu.Lock()
	h.readWant = m
	h.mu.Unlock()
}

func (h *TLSHook) setWriteWant(m Mode) {
	h.mu.Lock()
	h.writeWant = m
	h.mu.Unlock()
}

func (h *TLSHook) fail(err error) {
	h.mu.Lock()
	h.status = tlsClosed
	if h.err == nil {
		h.err = err
	}
	h.mu.Unlock()
	h.appIn.finish(err)
}

// runBridge performs the handshake, then drives the post-handshake read and
// write loops against the real TLS library until ctx is cancelled (by
// OnDetach) or the library reports a terminal condition.
func (h *TLSHook) runBridge(ctx context.Context) error {
	cfg := h.tlsConfig()
	var conn TLSConn
	if h.Outbound {
		conn = h.Engine.Client(h.wire, cfg)
	} else {
		server, ok := h.Engine.(TLSServerEngine)
		if !ok {
			err := fmt.Errorf("sockcore: engine %q does not support the accept direction", h.Engine.Name())
			h.fail(err)
			return err
		}
		conn = server.Server(h.wire, cfg)
	}
	h.tlsConn = conn

	t0 := h.TimeNow()
	h.Logger.Info("tlsHandshakeStart",
		slog.Bool("outbound", h.Outbound),
		slog.String("tlsEngineName", h.Engine.Name()),
		slog.String("localAddr", safeconn.LocalAddr(h.wire)),
		slog.String("remoteAddr", safeconn.RemoteAddr(h.wire)),
		slog.Time("t", t0),
	)

	err := conn.HandshakeContext(ctx)

	h.Logger.Info("tlsHandshakeDone",
		slog.Any("err", err),
		slog.String("errClass", h.ErrClassifier.Classify(err)),
		slog.Time("t0", t0),
		slog.Time("t", h.TimeNow()),
	)

	if err != nil {
		h.fail(err)
		return err
	}

	state := conn.ConnectionState()
	verifyErr := verifyPeerChain(state, cfg.RootCAs, h.TimeNow())
	info, ok := extractCertificateInfo(state, verifyErr)
	h.mu.Lock()
	h.status = tlsOpen
	if ok {
		h.cert = info
		h.hasCert = true
	}
	h.mu.Unlock()

	h.group.Go(func() error { return h.readLoop(ctx, conn) })
	h.group.Go(func() error { return h.writeLoop(ctx, conn) })
	return nil
}

func (h *TLSHook) readLoop(ctx context.Context, conn TLSConn) error {
	buf := make([]byte, h.chunkSize())
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			h.appIn.push(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				h.appIn.finish(nil)
			} else {
				h.appIn.finish(err)
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (h *TLSHook) writeLoop(ctx context.Context, conn TLSConn) error {
	for {
		chunk, closed := h.appOut.take()
		if closed {
			return nil
		}
		if _, err := conn.Write(chunk); err != nil {
			h.fail(err)
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// dummyAddr wraps a string as a [net.Addr] for logging the bridge's
// internal connection; it carries no network semantics of its own.
type dummyAddr struct{ s string }

func (a dummyAddr) Network() string { return "tls-bridge" }
func (a dummyAddr) String() string  { return a.s }

// ErrDHParams is returned when the configured Diffie-Hellman parameters
// file is missing or unreadable. Unlike the certificate, key, and CA files
// (which are logged and skipped), a missing DH parameters file is fatal at
// startup, matching the original module's behavior.
var ErrDHParams = errors.New("sockcore: could not load DH parameters file")

// LoadTLSConfig builds a [*tls.Config] from cfg.TLSFiles, logging but not
// failing on a missing or unreadable certificate, key, or CA file (the
// resulting config simply lacks that material), and failing with
// [ErrDHParams] if the DH parameters file cannot be read.
//
// crypto/tls has no equivalent of OpenSSL's classical finite-field DH
// parameter file for its supported cipher suites; this function preserves
// only the original's fatal/non-fatal distinction by treating the DH
// parameters file as a startup precondition check.
func LoadTLSConfig(cfg *Config, logger SLogger) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if cert, err := tls.LoadX509KeyPair(cfg.TLSFiles.Cert, cfg.TLSFiles.Key); err != nil {
		logger.Info("tlsCertLoadFailed", slog.Any("err", err), slog.String("path", cfg.TLSFiles.Cert))
	} else {
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if caBytes, err := os.ReadFile(cfg.TLSFiles.CA); err != nil {
		logger.Info("tlsCALoadFailed", slog.Any("err", err), slog.String("path", cfg.TLSFiles.CA))
	} else {
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(caBytes)
		tlsConfig.RootCAs = pool
	}

	if _, err := os.ReadFile(cfg.TLSFiles.DHParams); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDHParams, cfg.TLSFiles.DHParams, err)
	}

	return tlsConfig, nil
}

// TLSListenerRegistry tracks which configured listen endpoints require TLS,
// for advertising on the `005` numeric line.
type TLSListenerRegistry struct {
	mu        sync.Mutex
	endpoints []string
}

// NewTLSListenerRegistry builds a registry from the "tls" bind entries of
// cfg.BindAddresses.
func NewTLSListenerRegistry(cfg *Config) *TLSListenerRegistry {
	r := &TLSListenerRegistry{}
	for _, b := range cfg.BindAddresses {
		if !b.TLS {
			continue
		}
		ip := b.Address
		if ip == "" {
			ip = "*"
		}
		r.endpoints = append(r.endpoints, fmt.Sprintf("%s:%d", ip, b.Port))
	}
	sort.Strings(r.endpoints)
	return r
}

// Numeric005Token returns the `SSL=<list>` token for the `005` numeric
// line, where <list> is the `;`-separated set of active TLS endpoints.
func (r *TLSListenerRegistry) Numeric005Token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.endpoints) == 0 {
		return ""
	}
	return "SSL=" + strings.Join(r.endpoints, ";")
}
