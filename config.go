// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import "time"

// defaultReadBufferSize is the per-event recv(2) chunk size, matching the
// NetBufferSize default InspIRCd's socket engine used for its ibuf.
const defaultReadBufferSize = 65536

// defaultMaxDescriptors is the default for [Config.MaxDescriptors], the
// size InspIRCd used for socket_ref[MAX_DESCRIPTORS] and issl_session[].
const defaultMaxDescriptors = 65536

// defaultConnectTimeout is the deadline applied to [OpenClient] when
// the caller does not specify one.
const defaultConnectTimeout = 10 * time.Second

// BindAddress describes one configured `<bind>` entry (spec.md §6's
// {type, address, port, tls?} collaborator shape).
type BindAddress struct {
	// Type is the bind tag's type attribute (e.g. "servers", "clients").
	Type string

	// Address is the numeric address to bind to, or "" / "*" for INADDR_ANY.
	Address string

	// Port is the listening port.
	Port int

	// TLS indicates this listen endpoint requires the TLS hook.
	TLS bool
}

// TLSFiles names the four PEM-encoded files [LoadTLSConfig] loads. The
// paths are opened as given: a relative path resolves against the process's
// working directory, not against the configuration file's directory.
type TLSFiles struct {
	Cert     string
	Key      string
	CA       string
	DHParams string
}

// DefaultTLSFiles returns the conventional file names used when a
// configuration does not override them.
func DefaultTLSFiles() TLSFiles {
	return TLSFiles{
		Cert:     "cert.pem",
		Key:      "key.pem",
		CA:       "ca.pem",
		DHParams: "dhparams.pem",
	}
}

// Config holds common configuration for the socket core.
//
// Pass this to constructors to pre-wire dependencies. All fields have
// sensible defaults set by [NewConfig] and are safe to override before
// first use.
type Config struct {
	// ReadBufferSize is the maximum number of bytes read per ready event.
	//
	// Set by [NewConfig] to 65536.
	ReadBufferSize int

	// MaxDescriptors is the configured descriptor limit. No engine, table,
	// or hook in this package reads it: the engines and the [Loop]'s socket
	// table are maps, and each [TLSHook] belongs to one connection.
	//
	// Set by [NewConfig] to 65536.
	MaxDescriptors int

	// ConnectTimeout is the default deadline for [OpenClient] when
	// the caller passes zero.
	//
	// Set by [NewConfig] to 10 seconds.
	ConnectTimeout time.Duration

	// SocketBufferSize, if non-zero, is applied via SO_SNDBUF/SO_RCVBUF to
	// every connection a [Listener] accepts. Sockets opened by [OpenClient]
	// and [OpenListener] keep the kernel default.
	//
	// Set by [NewConfig] to 0 (leave the kernel default).
	SocketBufferSize int

	// BindAddresses lists the configured `<bind>` entries, consulted by
	// [ChooseOutboundBind] and by the TLS hook to learn which listeners
	// require encryption.
	//
	// Set by [NewConfig] to nil.
	BindAddresses []BindAddress

	// TLSFiles names the PEM files the TLS hook loads.
	//
	// Set by [NewConfig] to [DefaultTLSFiles].
	TLSFiles TLSFiles

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewConfig] to [DefaultSLogger].
	Logger SLogger

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		ReadBufferSize:   defaultReadBufferSize,
		MaxDescriptors:   defaultMaxDescriptors,
		ConnectTimeout:   defaultConnectTimeout,
		SocketBufferSize: 0,
		TLSFiles:         DefaultTLSFiles(),
		ErrClassifier:    DefaultErrClassifier,
		Logger:           DefaultSLogger(),
		TimeNow:          time.Now,
	}
}
