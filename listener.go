// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import "net/netip"

// NewChildFunc builds the [Callbacks] and hook stack for one accepted
// connection. Called once per [Listener.OnIncomingConnection].
type NewChildFunc func(fd Handle, peer netip.Addr) (Callbacks, []Hook)

// Listener specializes the accept path of spec.md §4.3: a [Socket] pinned to
// [StateListening] whose only readiness handler accepts one pending
// connection, applies socket-buffer sizing, and adopts the result.
//
// Where spec.md leaves "the owner is expected to construct a child buffered
// socket via adopt" as a manual step, Listener performs it automatically via
// NewChild, mirroring original_source/src/inspsocket.cpp's Poll() handling
// of I_LISTENING (accept, SetQueues, OnIncomingConnection in one place).
type Listener struct {
	Socket *Socket

	engine Engine
	cfg    *Config

	// NewChild builds the per-connection callbacks and hook stack.
	NewChild NewChildFunc

	// OnChildReady, if set, is invoked with every successfully adopted
	// child, e.g. to register it with a [Loop].
	OnChildReady func(*Socket)
}

var _ Callbacks = (*Listener)(nil)

// NewListener opens a listening socket on ip:port and returns the
// [*Listener] driving its accept loop.
func NewListener(engine Engine, cfg *Config, ip netip.Addr, port int, newChild NewChildFunc) (*Listener, error) {
	l := &Listener{engine: engine, cfg: cfg, NewChild: newChild}
	s, err := OpenListener(engine, cfg, l, ip, port)
	if err != nil {
		return nil, err
	}
	l.Socket = s
	return l, nil
}

// OnIncomingConnection implements [Callbacks]. Applies socket-buffer sizing
// (spec.md §4.3's "applies socket-buffer sizing", sized by
// Config.SocketBufferSize per SPEC_FULL's supplement) and adopts the child.
func (l *Listener) OnIncomingConnection(fd Handle, peer netip.Addr) int {
	sysSetBufferSizes(fd, l.cfg.SocketBufferSize)

	cb, hooks := l.NewChild(fd, peer)
	child, err := Adopt(l.engine, l.cfg, cb, fd, peer, hooks)
	if err != nil {
		return -1
	}
	if l.OnChildReady != nil {
		l.OnChildReady(child)
	}
	return 0
}

// OnConnected implements [Callbacks]. Never called on a listening socket.
func (l *Listener) OnConnected() bool { return true }

// OnError implements [Callbacks].
func (l *Listener) OnError(Kind) {}

// OnDisconnect implements [Callbacks].
func (l *Listener) OnDisconnect() int { return 0 }

// OnDataReady implements [Callbacks]. Never called on a listening socket.
func (l *Listener) OnDataReady() bool { return true }

// OnWriteReady implements [Callbacks]. Never called on a listening socket.
func (l *Listener) OnWriteReady() bool { return true }

// OnTimeout implements [Callbacks]. A listening socket has no connect deadline.
func (l *Listener) OnTimeout() {}

// OnClose implements [Callbacks].
func (l *Listener) OnClose() {}
