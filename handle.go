// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import "github.com/bassosimone/runtimex"

// Handle identifies an OS socket descriptor. The zero value is descriptor 0;
// [InvalidHandle] (-1) is the sentinel for "absent".
type Handle int32

// InvalidHandle is the sentinel value for a [Handle] that does not identify
// a live descriptor.
const InvalidHandle Handle = -1

// Valid reports whether h identifies a live descriptor.
func (h Handle) Valid() bool {
	return h != InvalidHandle
}

// handleTable maps live handles to their owning [*Socket].
//
// The owning [Loop] is the single writer of this table; it is the process-wide
// descriptor-to-socket map called out in the concurrency model, modeled
// here as an explicit container rather than a package-level singleton.
type handleTable struct {
	sockets map[Handle]*Socket
}

func newHandleTable() *handleTable {
	return &handleTable{sockets: make(map[Handle]*Socket)}
}

// lookup returns the socket owning h, if any.
func (t *handleTable) lookup(h Handle) (*Socket, bool) {
	s, ok := t.sockets[h]
	return s, ok
}

// insert registers s under its handle. It asserts the handle is not already
// registered, enforcing the at-most-one-owner invariant.
func (t *handleTable) insert(h Handle, s *Socket) {
	_, exists := t.sockets[h]
	runtimex.Assert(!exists)
	t.sockets[h] = s
}

// remove deregisters h. It is a no-op if h is not present.
func (t *handleTable) remove(h Handle) {
	delete(t.sockets, h)
}

// len returns the number of live handles.
func (t *handleTable) len() int {
	return len(t.sockets)
}
