// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import (
	"context"
	"testing"

	"github.com/bassosimone/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	require.NotNil(t, cfg)

	assert.Equal(t, defaultReadBufferSize, cfg.ReadBufferSize)
	assert.Equal(t, defaultMaxDescriptors, cfg.MaxDescriptors)
	assert.Equal(t, defaultConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, 0, cfg.SocketBufferSize)
	assert.Equal(t, DefaultTLSFiles(), cfg.TLSFiles)
	assert.Nil(t, cfg.BindAddresses)
	require.NotNil(t, cfg.Logger)
	require.NotNil(t, cfg.ErrClassifier)

	// ErrClassifier should use errclass by default
	assert.Equal(t, "", cfg.ErrClassifier.Classify(nil))
	assert.Equal(t, errclass.ETIMEDOUT, cfg.ErrClassifier.Classify(context.DeadlineExceeded))

	// TimeNow should be set and return a valid time
	now := cfg.TimeNow()
	assert.False(t, now.IsZero())
}

func TestDefaultTLSFiles(t *testing.T) {
	files := DefaultTLSFiles()
	assert.Equal(t, "cert.pem", files.Cert)
	assert.Equal(t, "key.pem", files.Key)
	assert.Equal(t, "ca.pem", files.CA)
	assert.Equal(t, "dhparams.pem", files.DHParams)
}
