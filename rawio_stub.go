// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !unix

package sockcore

import (
	"errors"
	"net/netip"
)

var errUnsupportedPlatform = errors.New("sockcore: raw socket I/O not supported on this platform")

func sysSocket(netip.Addr) (Handle, error)                { return InvalidHandle, errUnsupportedPlatform }
func sysBind(Handle, netip.Addr) error                     { return errUnsupportedPlatform }
func sysConnect(Handle, netip.AddrPort) error               { return errUnsupportedPlatform }
func sysConnectError(Handle) error                          { return errUnsupportedPlatform }
func sysListenBind(netip.Addr, int, int) (Handle, error)    { return InvalidHandle, errUnsupportedPlatform }
func sysAccept(Handle) (Handle, netip.Addr, error)          { return InvalidHandle, netip.Addr{}, errUnsupportedPlatform }
func sysSetBufferSizes(Handle, int)                         {}
func sysClose(Handle) error                                 { return errUnsupportedPlatform }

func sysRead(Handle, []byte) (int, error)  { return 0, errUnsupportedPlatform }
func sysWrite(Handle, []byte) (int, error) { return 0, errUnsupportedPlatform }

func classifyRead(_ int, err error) ReadResult {
	return ReadResult{Outcome: ReadError, Err: err}
}

func classifyWrite(_ int, err error) WriteResult {
	return WriteResult{Outcome: WriteError, Err: err}
}
