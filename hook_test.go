// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHook is a minimal [Hook] double that records every Write it was
// asked to forward, so tests can assert exactly what crossed the boundary
// between two hook layers (Testable Property 7).
type recordingHook struct {
	writes [][]byte

	readResults  []ReadResult
	writeResults []WriteResult

	attached, detached int
	handshakeDone       bool
}

var _ Hook = (*recordingHook)(nil)

func (h *recordingHook) OnAttach(*Socket)    { h.attached++ }
func (h *recordingHook) OnDetach(*Socket)    { h.detached++ }
func (h *recordingHook) HandshakeDone() bool { return h.handshakeDone }

func (h *recordingHook) Read(dst []byte) ReadResult {
	if len(h.readResults) == 0 {
		return ReadResult{Outcome: ReadWouldBlock, Want: ModeRead}
	}
	r := h.readResults[0]
	h.readResults = h.readResults[1:]
	return r
}

func (h *recordingHook) Write(src []byte) WriteResult {
	h.writes = append(h.writes, append([]byte(nil), src...))
	if len(h.writeResults) == 0 {
		return WriteResult{Outcome: WriteWrote, N: len(src)}
	}
	r := h.writeResults[0]
	h.writeResults = h.writeResults[1:]
	return r
}

func TestHookChainOutermostIsRawWhenNoHooksInstalled(t *testing.T) {
	chain := newHookChain(InvalidHandle, nil)
	assert.Same(t, Hook(chain.raw), chain.outermost())
}

func TestHookChainOutermostIsFirstHook(t *testing.T) {
	outer := &recordingHook{}
	inner := &recordingHook{}
	chain := newHookChain(InvalidHandle, []Hook{outer, inner})
	assert.Same(t, Hook(outer), chain.outermost())
}

// orderingHook records attach/detach order only.
type orderingHook struct {
	name  string
	order *[]string
}

var _ Hook = (*orderingHook)(nil)

func (h *orderingHook) OnAttach(*Socket)    { *h.order = append(*h.order, "attach:"+h.name) }
func (h *orderingHook) OnDetach(*Socket)    { *h.order = append(*h.order, "detach:"+h.name) }
func (h *orderingHook) HandshakeDone() bool { return true }
func (h *orderingHook) Read(dst []byte) ReadResult {
	return ReadResult{Outcome: ReadWouldBlock}
}
func (h *orderingHook) Write(src []byte) WriteResult {
	return WriteResult{Outcome: WriteWrote, N: len(src)}
}

func TestHookChainAttachDetachOrder(t *testing.T) {
	var order []string
	outer := &orderingHook{name: "outer", order: &order}
	inner := &orderingHook{name: "inner", order: &order}
	chain := newHookChain(InvalidHandle, []Hook{outer, inner})

	chain.attach(nil)
	chain.detach(nil)

	assert.Equal(t, []string{"attach:outer", "attach:inner", "detach:inner", "detach:outer"}, order)
}

// truncatingHook forwards only the first keep bytes of every write to Next,
// proving the outer hook controls exactly what the inner hook sees.
type truncatingHook struct {
	next Hook
	keep int
}

var _ Hook = (*truncatingHook)(nil)

func (h *truncatingHook) OnAttach(s *Socket)    { h.next.OnAttach(s) }
func (h *truncatingHook) OnDetach(s *Socket)    { h.next.OnDetach(s) }
func (h *truncatingHook) HandshakeDone() bool   { return h.next.HandshakeDone() }
func (h *truncatingHook) Read(dst []byte) ReadResult { return h.next.Read(dst) }
func (h *truncatingHook) Write(src []byte) WriteResult {
	n := h.keep
	if n > len(src) {
		n = len(src)
	}
	res := h.next.Write(src[:n])
	if res.Outcome == WriteWrote {
		res.N = n
	}
	return res
}

func TestHookStackingOnlyForwardsWhatOuterForwards(t *testing.T) {
	// Testable Property 7: for hooks [outer, inner], a write of b calls
	// outer.Write(b), and only the bytes outer forwards reach inner.Write.
	inner := &recordingHook{}
	outer := &truncatingHook{next: inner, keep: 3}
	chain := newHookChain(InvalidHandle, []Hook{outer, inner})

	result := chain.outermost().Write([]byte("HELLO"))

	require.Equal(t, WriteWrote, result.Outcome)
	require.Len(t, inner.writes, 1)
	assert.Equal(t, []byte("HEL"), inner.writes[0])
}

func TestHookChainHandshakeDoneDelegatesToOutermost(t *testing.T) {
	inner := &recordingHook{handshakeDone: false}
	outer := &recordingHook{handshakeDone: true}
	chain := newHookChain(InvalidHandle, []Hook{outer, inner})

	assert.True(t, chain.handshakeDone())
}

func TestRawHookHandshakeDoneAlwaysTrue(t *testing.T) {
	r := &rawHook{handle: InvalidHandle}
	assert.True(t, r.HandshakeDone())
}

func TestRawHookReadClassifiesError(t *testing.T) {
	r := &rawHook{handle: InvalidHandle}
	result := r.Read(make([]byte, 16))
	assert.NotEqual(t, ReadBytes, result.Outcome)
}

func TestLoggingHookPassesThroughAndLogsDebug(t *testing.T) {
	logger, records := newCapturingLogger()
	next := &recordingHook{
		readResults:  []ReadResult{{Outcome: ReadBytes, N: 5}},
		writeResults: []WriteResult{{Outcome: WriteWrote, N: 5}},
	}

	hook := NewLoggingHook(next, logger, &Config{TimeNow: time.Now})
	readRes := hook.Read(make([]byte, 5))
	writeRes := hook.Write([]byte("HELLO"))

	assert.Equal(t, ReadBytes, readRes.Outcome)
	assert.Equal(t, 5, readRes.N)
	assert.Equal(t, WriteWrote, writeRes.Outcome)

	var messages []string
	for _, r := range *records {
		messages = append(messages, r.Message)
	}
	assert.Contains(t, messages, "hookRead")
	assert.Contains(t, messages, "hookWrite")
}

func TestLoggingHookAttachDetachDelegate(t *testing.T) {
	next := &recordingHook{}
	hook := NewLoggingHook(next, DefaultSLogger(), NewConfig())

	hook.OnAttach(nil)
	hook.OnDetach(nil)

	assert.Equal(t, 1, next.attached)
	assert.Equal(t, 1, next.detached)
}

func TestLoggingHookHandshakeDoneDelegates(t *testing.T) {
	next := &recordingHook{handshakeDone: true}
	hook := NewLoggingHook(next, DefaultSLogger(), NewConfig())
	assert.True(t, hook.HandshakeDone())
}

func TestLoggingHookLogsWriteError(t *testing.T) {
	logger, records := newCapturingLogger()
	boom := errors.New("boom")
	next := &recordingHook{writeResults: []WriteResult{{Outcome: WriteError, Err: boom}}}

	hook := NewLoggingHook(next, logger, &Config{TimeNow: time.Now})
	res := hook.Write([]byte("x"))

	require.Equal(t, WriteError, res.Outcome)
	require.Len(t, *records, 1)
	assert.Equal(t, "hookWrite", (*records)[0].Message)
}
