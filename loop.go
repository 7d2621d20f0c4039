// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import (
	"context"
	"net/netip"
	"time"
)

// Loop is the single-threaded event loop the package doc's Concurrency
// Model describes: it owns one [Engine] and the process-wide
// descriptor-to-socket map ([handleTable]), and is the only thing allowed to
// mutate either.
//
// Using [Loop] is optional: [Socket], [Listener], and [Engine] all work
// standalone for an embedder that wants to own dispatch itself. Loop exists
// because most embedders don't.
type Loop struct {
	Engine Engine

	cfg   *Config
	table *handleTable
}

// NewLoop builds a [*Loop] with a fresh platform [Engine].
func NewLoop(cfg *Config) (*Loop, error) {
	engine, err := NewEngine()
	if err != nil {
		return nil, err
	}
	return &Loop{Engine: engine, cfg: cfg, table: newHandleTable()}, nil
}

// Track registers s so the loop dispatches readiness events and ticks to it.
// [Loop.OpenClient] and [Loop.OpenListener] call this automatically.
func (lp *Loop) Track(s *Socket) {
	lp.table.insert(s.Handle(), s)
}

// Len returns the number of sockets the loop currently tracks.
func (lp *Loop) Len() int {
	return lp.table.len()
}

// OpenClient opens an outbound connection and tracks it.
func (lp *Loop) OpenClient(cb Callbacks, ip netip.Addr, port int, timeout time.Duration, hooks []Hook) (*Socket, error) {
	s, err := OpenClient(lp.Engine, lp.cfg, cb, ip, port, timeout, hooks)
	if err != nil {
		return nil, err
	}
	lp.Track(s)
	return s, nil
}

// OpenListener opens a listening socket whose accepted children are tracked
// automatically as they are adopted.
func (lp *Loop) OpenListener(ip netip.Addr, port int, newChild NewChildFunc) (*Listener, error) {
	listener, err := NewListener(lp.Engine, lp.cfg, ip, port, newChild)
	if err != nil {
		return nil, err
	}
	lp.Track(listener.Socket)
	listener.OnChildReady = lp.Track
	return listener, nil
}

// RunOnce waits for at least one readiness event (or timeout, or ctx done),
// dispatches each to its owning [Socket], then ticks every tracked socket
// and reaps the ones that closed during dispatch.
func (lp *Loop) RunOnce(ctx context.Context, timeout time.Duration) error {
	events, err := lp.Engine.Wait(ctx, timeout)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if s, ok := lp.table.lookup(ev.Handle); ok {
			s.PollReady(ev.Mode)
		}
	}

	now := lp.cfg.TimeNow()
	for h, s := range lp.table.sockets {
		s.Tick(now)
		if s.closed {
			lp.table.remove(h)
		}
	}
	return nil
}

// Close releases the loop's [Engine]. Tracked sockets are not closed.
func (lp *Loop) Close() error {
	return lp.Engine.Close()
}
