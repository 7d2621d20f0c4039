// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import "net/netip"

// ChooseOutboundBind scans cfg.BindAddresses for a "servers"-tagged entry
// suitable as the local address for an outbound socket.
//
// It skips wildcard (empty or "*"), loopback, and unparseable entries and
// returns the first numeric address that qualifies. If none qualify, ok is
// false and the caller should leave the socket unbound (the kernel then
// picks the source address). This mirrors the heuristic used to pick an
// outbound bind address when a host has many configured listen addresses,
// so link configuration does not need an explicit bind-address override.
func ChooseOutboundBind(cfg *Config) (addr netip.Addr, ok bool) {
	for _, b := range cfg.BindAddresses {
		if b.Type != "servers" {
			continue
		}
		if b.Address == "" || b.Address == "*" {
			continue
		}
		parsed, err := netip.ParseAddr(b.Address)
		if err != nil {
			continue
		}
		if parsed.IsLoopback() {
			continue
		}
		return parsed, true
	}
	return netip.Addr{}, false
}
