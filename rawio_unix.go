// SPDX-License-Identifier: GPL-3.0-or-later

//go:build unix

package sockcore

import (
	"net/netip"

	"golang.org/x/sys/unix"
)

// sysSocket creates a non-blocking TCP socket for the given address family.
func sysSocket(addr netip.Addr) (Handle, error) {
	family := unix.AF_INET
	if addr.Is6() {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return InvalidHandle, err
	}
	return Handle(fd), nil
}

// sysBind binds h to addr. A zero addr binds to the wildcard address.
func sysBind(h Handle, addr netip.Addr) error {
	sa := sockaddrFor(addr, 0)
	return unix.Bind(int(h), sa)
}

// sysConnect issues a non-blocking connect(2). EINPROGRESS is folded into
// a nil error here, meaning the connect is underway; completion is observed
// as write-readiness.
func sysConnect(h Handle, addr netip.AddrPort) error {
	sa := sockaddrFor(addr.Addr(), int(addr.Port()))
	err := unix.Connect(int(h), sa)
	if err == unix.EINPROGRESS {
		return nil
	}
	return err
}

// sysConnectError reads SO_ERROR to learn whether a pending non-blocking
// connect succeeded once the descriptor reports write-readiness.
func sysConnectError(h Handle) error {
	errno, err := unix.GetsockoptInt(int(h), unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

// sysListenBind binds to addr:port and starts listening with the given
// backlog, returning the listening handle.
func sysListenBind(addr netip.Addr, port int, backlog int) (Handle, error) {
	h, err := sysSocket(addr)
	if err != nil {
		return InvalidHandle, err
	}
	_ = unix.SetsockoptInt(int(h), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := unix.Bind(int(h), sockaddrFor(addr, port)); err != nil {
		_ = unix.Close(int(h))
		return InvalidHandle, err
	}
	if err := unix.Listen(int(h), backlog); err != nil {
		_ = unix.Close(int(h))
		return InvalidHandle, err
	}
	return h, nil
}

// sysAccept accepts one pending connection, returning the child handle and
// the peer address.
func sysAccept(h Handle) (Handle, netip.Addr, error) {
	nfd, sa, err := unix.Accept4(int(h), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return InvalidHandle, netip.Addr{}, err
	}
	return Handle(nfd), addrFromSockaddr(sa), nil
}

// sysSetBufferSizes applies SO_SNDBUF/SO_RCVBUF to h.
func sysSetBufferSizes(h Handle, size int) {
	if size <= 0 {
		return
	}
	_ = unix.SetsockoptInt(int(h), unix.SOL_SOCKET, unix.SO_SNDBUF, size)
	_ = unix.SetsockoptInt(int(h), unix.SOL_SOCKET, unix.SO_RCVBUF, size)
}

// sysClose releases h.
func sysClose(h Handle) error {
	return unix.Close(int(h))
}

func sockaddrFor(addr netip.Addr, port int) unix.Sockaddr {
	if addr.Is4() || !addr.IsValid() {
		sa := &unix.SockaddrInet4{Port: port}
		if addr.IsValid() {
			sa.Addr = addr.As4()
		}
		return sa
	}
	sa := &unix.SockaddrInet6{Port: port}
	sa.Addr = addr.As16()
	return sa
}

func addrFromSockaddr(sa unix.Sockaddr) netip.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrFrom4(v.Addr)
	case *unix.SockaddrInet6:
		return netip.AddrFrom16(v.Addr)
	default:
		return netip.Addr{}
	}
}

// sysRead performs one non-blocking recv(2)-equivalent into dst.
func sysRead(h Handle, dst []byte) (int, error) {
	n, err := unix.Read(int(h), dst)
	return n, err
}

// sysWrite performs one non-blocking send(2)-equivalent of src.
func sysWrite(h Handle, src []byte) (int, error) {
	n, err := unix.Write(int(h), src)
	return n, err
}

func classifyRead(n int, err error) ReadResult {
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return ReadResult{Outcome: ReadWouldBlock, Want: ModeRead}
	}
	if err != nil {
		return ReadResult{Outcome: ReadError, Err: err}
	}
	if n == 0 {
		return ReadResult{Outcome: ReadEOF}
	}
	return ReadResult{Outcome: ReadBytes, N: n}
}

func classifyWrite(n int, err error) WriteResult {
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return WriteResult{Outcome: WriteWouldBlock, Want: ModeWrite}
	}
	if err != nil {
		return WriteResult{Outcome: WriteError, Err: err}
	}
	return WriteResult{Outcome: WriteWrote, N: n}
}
