// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerOnIncomingConnectionAdoptsChild(t *testing.T) {
	engine := newFakeEngine()
	cb := &fakeCallbacks{}

	var newChildCalls int
	var gotFD Handle
	var gotPeer netip.Addr

	l := &Listener{
		engine: engine,
		cfg:    NewConfig(),
		NewChild: func(fd Handle, peer netip.Addr) (Callbacks, []Hook) {
			newChildCalls++
			gotFD = fd
			gotPeer = peer
			return cb, nil
		},
	}

	var readyChild *Socket
	l.OnChildReady = func(s *Socket) { readyChild = s }

	// A handle value unlikely to collide with a real open descriptor.
	fd := Handle(999998)
	peer := netip.MustParseAddr("203.0.113.7")

	ret := l.OnIncomingConnection(fd, peer)

	require.Equal(t, 0, ret)
	assert.Equal(t, 1, newChildCalls)
	assert.Equal(t, fd, gotFD)
	assert.Equal(t, peer, gotPeer)
	require.NotNil(t, readyChild)
	assert.Equal(t, StateConnected, readyChild.State())
	assert.Equal(t, fd, readyChild.Handle())
	assert.Equal(t, ModeRead, engine.registered[fd])
}

func TestListenerOnIncomingConnectionReturnsErrorWhenEngineRejects(t *testing.T) {
	engine := newFakeEngine()
	engine.registerErr = assert.AnError
	cb := &fakeCallbacks{}

	l := &Listener{
		engine: engine,
		cfg:    NewConfig(),
		NewChild: func(Handle, netip.Addr) (Callbacks, []Hook) {
			return cb, nil
		},
	}

	ret := l.OnIncomingConnection(Handle(999997), netip.MustParseAddr("203.0.113.8"))
	assert.Equal(t, -1, ret)
}

func TestListenerCallbacksAreBenignNoops(t *testing.T) {
	l := &Listener{}

	assert.True(t, l.OnConnected())
	assert.Equal(t, 0, l.OnDisconnect())
	assert.True(t, l.OnDataReady())
	assert.True(t, l.OnWriteReady())
	assert.NotPanics(t, func() { l.OnError(KindSocket) })
	assert.NotPanics(t, l.OnTimeout)
	assert.NotPanics(t, l.OnClose)
}
