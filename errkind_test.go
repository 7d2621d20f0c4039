// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import (
	"context"
	"errors"
	"testing"

	"github.com/bassosimone/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultErrClassifier(t *testing.T) {
	// Should return empty string for nil error
	result := DefaultErrClassifier.Classify(nil)
	assert.Equal(t, "", result)

	// Should classify known errors using errclass
	result = DefaultErrClassifier.Classify(context.DeadlineExceeded)
	assert.Equal(t, errclass.ETIMEDOUT, result)

	// Should return EGENERIC for unknown errors
	result = DefaultErrClassifier.Classify(errors.New("unknown error"))
	assert.Equal(t, errclass.EGENERIC, result)
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindSocket, "socket"},
		{KindBind, "bind"},
		{KindConnect, "connect"},
		{KindWrite, "write"},
		{KindResolve, "resolve"},
		{KindTimeout, "timeout"},
		{KindNomoresockets, "nomoresockets"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestError(t *testing.T) {
	cause := errors.New("boom")

	withCause := NewError(KindWrite, cause)
	require.EqualError(t, withCause, "write: boom")
	assert.Equal(t, cause, withCause.Unwrap())
	assert.True(t, errors.Is(withCause, cause))

	withoutCause := NewError(KindResolve, nil)
	require.EqualError(t, withoutCause, "resolve")
	assert.Nil(t, withoutCause.Unwrap())
}
