// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !unix

package sockcore

import "errors"

// NewEngine returns the platform-appropriate [Engine] implementation.
//
// No readiness backend is implemented for non-Unix platforms (the reactor
// shape this package is modeled on targets Unix-like systems only; an
// IOCP-based engine would need its own completion-port event loop, not a
// readiness-notification one, and is out of scope here).
func NewEngine() (Engine, error) {
	return nil, errors.New("sockcore: no engine backend for this platform")
}
