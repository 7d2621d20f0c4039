// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnectionID(t *testing.T) {
	id := NewConnectionID()

	// Should be a valid UUID string
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)

	// Should be version 7 (time-ordered)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestNewConnectionIDUniqueness(t *testing.T) {
	// Generate multiple connection IDs and verify they're all unique
	const count = 100
	seen := make(map[string]struct{}, count)

	for range count {
		id := NewConnectionID()
		_, duplicate := seen[id]
		require.False(t, duplicate, "duplicate connection ID generated: %s", id)
		seen[id] = struct{}{}
	}
}
