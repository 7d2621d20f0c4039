// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux

package sockcore

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// epollEngine implements [Engine] over Linux epoll, edge-triggered.
//
// This mirrors the loop/fdconns shape used by the epoll-based reactors in
// the wider ecosystem (one epoll instance per engine, a side table from
// handle to the mode it's registered under so Modify can compute the right
// EpollCtl op), adapted to the fixed register/modify/deregister/wait
// contract this package exposes instead of a callback-driven event loop.
type epollEngine struct {
	fd    int
	modes map[Handle]Mode
}

// NewEngine returns the platform-appropriate [Engine] implementation.
func NewEngine() (Engine, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, NewError(KindSocket, err)
	}
	return &epollEngine{fd: fd, modes: make(map[Handle]Mode)}, nil
}

func epollEventsFor(mode Mode) uint32 {
	if mode == ModeWrite {
		return unix.EPOLLOUT | unix.EPOLLET
	}
	return unix.EPOLLIN | unix.EPOLLET
}

// Register implements [Engine].
func (e *epollEngine) Register(h Handle, mode Mode) error {
	if _, exists := e.modes[h]; exists {
		return ErrAlreadyRegistered
	}
	ev := unix.EpollEvent{Events: epollEventsFor(mode), Fd: int32(h)}
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_ADD, int(h), &ev); err != nil {
		return NewError(KindSocket, err)
	}
	e.modes[h] = mode
	return nil
}

// Modify implements [Engine].
func (e *epollEngine) Modify(h Handle, mode Mode) error {
	if _, exists := e.modes[h]; !exists {
		return e.Register(h, mode)
	}
	ev := unix.EpollEvent{Events: epollEventsFor(mode), Fd: int32(h)}
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_MOD, int(h), &ev); err != nil {
		return NewError(KindSocket, err)
	}
	e.modes[h] = mode
	return nil
}

// Deregister implements [Engine].
func (e *epollEngine) Deregister(h Handle) error {
	if _, exists := e.modes[h]; !exists {
		return nil
	}
	_ = unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, int(h), nil)
	delete(e.modes, h)
	return nil
}

// Wait implements [Engine].
func (e *epollEngine) Wait(ctx context.Context, timeout time.Duration) ([]Event, error) {
	msec := -1
	if timeout >= 0 {
		msec = int(timeout / time.Millisecond)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout || timeout < 0 {
			if remaining < 0 {
				remaining = 0
			}
			msec = int(remaining / time.Millisecond)
		}
	}

	raw := make([]unix.EpollEvent, 128)
	n, err := unix.EpollWait(e.fd, raw, msec)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, NewError(KindSocket, err)
	}

	events := make([]Event, 0, n)
	for _, ev := range raw[:n] {
		h := Handle(ev.Fd)
		mode, ok := e.modes[h]
		if !ok {
			continue
		}
		events = append(events, Event{Handle: h, Mode: mode})
	}
	return events, ctx.Err()
}

// Close implements [Engine].
func (e *epollEngine) Close() error {
	return unix.Close(e.fd)
}
