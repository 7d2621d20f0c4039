// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChooseOutboundBindPrefersFirstQualifyingServerEntry(t *testing.T) {
	cfg := NewConfig()
	cfg.BindAddresses = []BindAddress{
		{Type: "clients", Address: "203.0.113.5"},
		{Type: "servers", Address: "*"},
		{Type: "servers", Address: "127.0.0.1"},
		{Type: "servers", Address: ""},
		{Type: "servers", Address: "198.51.100.7"},
		{Type: "servers", Address: "198.51.100.8"},
	}

	addr, ok := ChooseOutboundBind(cfg)
	assert.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("198.51.100.7"), addr)
}

func TestChooseOutboundBindSkipsUnparseableEntries(t *testing.T) {
	cfg := NewConfig()
	cfg.BindAddresses = []BindAddress{
		{Type: "servers", Address: "not-an-ip"},
		{Type: "servers", Address: "198.51.100.9"},
	}

	addr, ok := ChooseOutboundBind(cfg)
	assert.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("198.51.100.9"), addr)
}

func TestChooseOutboundBindReturnsFalseWhenNoneQualify(t *testing.T) {
	cfg := NewConfig()
	cfg.BindAddresses = []BindAddress{
		{Type: "servers", Address: "*"},
		{Type: "servers", Address: "127.0.0.1"},
		{Type: "clients", Address: "198.51.100.1"},
	}

	_, ok := ChooseOutboundBind(cfg)
	assert.False(t, ok)
}

func TestChooseOutboundBindNoBindAddresses(t *testing.T) {
	cfg := NewConfig()
	_, ok := ChooseOutboundBind(cfg)
	assert.False(t, ok)
}
