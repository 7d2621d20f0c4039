// SPDX-License-Identifier: GPL-3.0-or-later

// Package sockcore provides a buffered socket core and pluggable I/O hook
// chain for building non-blocking TCP servers and clients.
//
// # Core Abstraction
//
// The package is built around a single-threaded reactor: one [Engine]
// multiplexes many non-blocking descriptors through a readiness-notification
// loop, and each descriptor is owned by exactly one [Socket] driving a small
// lifecycle state machine (Disconnected -> Connecting -> Connected, or
// Listening, or Error). A [Socket]'s bytes flow through an ordered stack of
// [Hook] values before reaching its buffers, so framing, encryption, or
// compression can be layered transparently. [TLSHook] is the reference hook,
// implementing the TLS handshake and record layer over [crypto/tls].
//
// # Available Primitives
//
// Readiness:
//   - [Engine]: register/modify/deregister/wait over a platform readiness primitive
//
// Connections:
//   - [Socket]: lifecycle state machine, inbound/outbound buffering, hook chain
//   - [Listener]: specialization of [Socket] that accepts and emits child connections
//
// Hooks:
//   - [Hook]: the interceptor contract (on_attach, on_detach, read, write, handshake_done)
//   - [LoggingHook]: pass-through hook that logs every read/write call
//   - [TLSHook]: handshake + record-layer framing over a raw descriptor
//
// Configuration and addressing:
//   - [Config] / [NewConfig]: central configuration with sensible defaults
//   - [ChooseOutboundBind]: the server-bind-address heuristic for outbound sockets
//
// # Connection Lifecycle
//
// A [Socket] is created directly with a known peer address ([OpenClient])
// or produced by a [Listener] on accept ([Adopt]). It is destroyed only
// after its handle has been removed from the [Engine] and closed; the owner is
// then free to drop its reference. [Socket.Close] is idempotent and fires
// [Callbacks.OnClose] exactly once.
//
// # Observability
//
// All primitives support structured logging via [SLogger] (compatible with
// [log/slog]). By default, logging is disabled. Set [Config.Logger] to a
// custom [*slog.Logger]-backed implementation to enable it.
//
// Primitives emit two kinds of structured log events:
//
//   - Lifecycle events (connect, accept, close, timeout, handshake done):
//     logged at [slog.LevelInfo].
//   - Per-I/O events (hook reads and writes through [LoggingHook],
//     write-readiness requests and notifications, incoming connections):
//     logged at [slog.LevelDebug]. A [Socket] does not log its own reads,
//     writes, or buffer flushes.
//
// Every log record a [Socket] emits carries its connection ID (see
// [NewConnectionID], a UUIDv7), enabling correlation across a connection's
// full lifetime the same way span IDs correlate pipeline stages. Records
// emitted by hooks ([LoggingHook], [TLSHook]) do not carry it.
//
// # Error Handling
//
// I/O errors do not unwind: they mutate the [Socket]'s state to [StateError]
// and set close-pending; a subsequent [Engine] tick finalizes teardown. Every
// [Socket] surfaces exactly one [Kind] through [Callbacks.OnError] before
// entering [StateError]. [ErrClassifier] is a separate, orthogonal concern:
// it maps the underlying OS error to a short label for log fields.
//
// # Concurrency Model
//
// Single-threaded cooperative: one goroutine owns the [Engine] and all
// [Socket] values; callbacks run to completion and must never block. The
// only place this package yields to the OS is [Engine.Wait]. [TLSHook] is
// the one documented exception: because [crypto/tls] exposes no
// non-blocking want-read/want-write API, its handshake and record layer run
// on a dedicated per-connection goroutine, bridged back to the reactor
// through mutex-and-condition-variable byte buffers that stand in for the
// underlying library's want-mode signaling. That goroutine never touches shared reactor state
// directly.
//
// # Design Boundaries
//
// This package intentionally transports bytes only. The following are out
// of scope and belong in higher-level packages built on these interfaces:
// protocol parsing and command dispatch, user/channel state, configuration
// file parsing, capability negotiation, and name resolution (callers must
// supply literal numeric addresses).
package sockcore
