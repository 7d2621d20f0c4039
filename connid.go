// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewConnectionID returns a UUIDv7 identifying one [Socket]'s lifetime.
//
// Every log record a [Socket] emits carries this ID so that multi-connection
// logs can be correlated, the same way span IDs correlate pipeline stages
// in the composition library this package's structured logging was
// originally written for.
//
// This function panics if the system random number generator fails, which
// should only happen under extraordinary circumstances.
func NewConnectionID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
