// SPDX-License-Identifier: GPL-3.0-or-later

//go:build unix && !linux

package sockcore

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// pollEngine implements [Engine] over poll(2) for POSIX targets without an
// epoll backend (e.g. darwin, the BSDs). It rebuilds the pollfd slice on
// every Wait call, trading a per-wait allocation for a much simpler
// register/modify/deregister bookkeeping story than kqueue would need.
type pollEngine struct {
	modes map[Handle]Mode
}

// NewEngine returns the platform-appropriate [Engine] implementation.
func NewEngine() (Engine, error) {
	return &pollEngine{modes: make(map[Handle]Mode)}, nil
}

// Register implements [Engine].
func (e *pollEngine) Register(h Handle, mode Mode) error {
	if _, exists := e.modes[h]; exists {
		return ErrAlreadyRegistered
	}
	e.modes[h] = mode
	return nil
}

// Modify implements [Engine].
func (e *pollEngine) Modify(h Handle, mode Mode) error {
	e.modes[h] = mode
	return nil
}

// Deregister implements [Engine].
func (e *pollEngine) Deregister(h Handle) error {
	delete(e.modes, h)
	return nil
}

// Wait implements [Engine].
func (e *pollEngine) Wait(ctx context.Context, timeout time.Duration) ([]Event, error) {
	if len(e.modes) == 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(clampPositive(timeout)):
			return nil, nil
		}
	}

	handles := make([]Handle, 0, len(e.modes))
	fds := make([]unix.PollFd, 0, len(e.modes))
	for h, mode := range e.modes {
		handles = append(handles, h)
		var events int16 = unix.POLLIN
		if mode == ModeWrite {
			events = unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(h), Events: events})
	}

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

	n, err := unix.Poll(fds, msec)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, NewError(KindSocket, err)
	}
	if n == 0 {
		return nil, ctx.Err()
	}

	events := make([]Event, 0, n)
	for i, fd := range fds {
		if fd.Revents&(fd.Events|unix.POLLHUP|unix.POLLERR) != 0 {
			events = append(events, Event{Handle: handles[i], Mode: e.modes[handles[i]]})
		}
	}
	return events, ctx.Err()
}

// Close implements [Engine].
func (e *pollEngine) Close() error {
	return nil
}

func clampPositive(d time.Duration) time.Duration {
	if d < 0 {
		return time.Hour
	}
	return d
}
