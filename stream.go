// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Stream wrappers: SendStream and ReceiveStream rewrite the wire-level
// QUIC stream error codes to and from the 32-bit WebTransport error code
// space, and guarantee the drop semantics this package promises even
// though Go has no deterministic destructors (see runtime.SetFinalizer
// calls below and the Open Question recorded in DESIGN.md).

package webtransport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/quic-go/quic-go"

	"github.com/webtransport-go/wt3/internal/wtquic"
)

// ErrStreamClosed is returned by Close/Reset/Stop on a stream that has
// already been closed, reset, or stopped.
var ErrStreamClosed = fmt.Errorf("webtransport: stream already closed")

// StreamError reports a stream terminated by STOP_SENDING or RESET_STREAM,
// sent either locally (Stop/Reset) or by the peer, carrying the
// WebTransport-level error code; a peer's code is translated out of the
// HTTP/3 error code space.
type StreamError struct {
	Code uint32
	Stop bool // true for STOP_SENDING, false for RESET_STREAM
}

func (e *StreamError) Error() string {
	if e.Stop {
		return fmt.Sprintf("webtransport: stream stopped, code %d", e.Code)
	}
	return fmt.Sprintf("webtransport: stream reset, code %d", e.Code)
}

// SendStream is the sending half of a WebTransport stream. A SendStream
// left unreferenced without a call to Close or Reset sends RESET_STREAM
// with a reserved code as soon as the garbage collector notices — this is
// a best-effort backstop, not a substitute for calling Close or Reset.
type SendStream struct {
	mu       sync.Mutex
	inner    wtquic.SendStream
	closed   bool
	closeErr error
	closedCh chan struct{}
}

func newSendStream(inner wtquic.SendStream) *SendStream {
	s := &SendStream{inner: inner, closedCh: make(chan struct{})}
	runtime.SetFinalizer(s, (*SendStream).finalize)
	return s
}

// StreamID returns the underlying QUIC stream ID.
func (s *SendStream) StreamID() wtquic.StreamID { return s.inner.StreamID() }

// Write writes p to the stream. Go's io.Writer contract already requires
// a full write or an error, so there is no separate WriteAll/WriteChunk
// here the way the protocol's native SendStream exposes them.
func (s *SendStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		err := s.closeErr
		s.mu.Unlock()
		if err == nil {
			err = ErrStreamClosed
		}
		return 0, err
	}
	s.mu.Unlock()
	n, err := s.inner.Write(p)
	var qerr *quic.StreamError
	if errors.As(err, &qerr) && qerr.Remote {
		if code, cerr := HTTP3ToError(uint64(qerr.ErrorCode)); cerr == nil {
			s.stopped(code)
			return n, &StreamError{Code: code, Stop: true}
		}
	}
	return n, err
}

// prioritizer is satisfied by quic-go stream implementations new enough to
// support send-order prioritization. It is queried via type assertion
// rather than declared on wtquic.SendStream directly, since not every
// wtquic.SendStream (notably test fakes) implements it.
type prioritizer interface {
	SetPriority(int)
}

// SetPriority sets the stream's send priority, if the underlying QUIC
// stream implementation supports it. This never suspends.
func (s *SendStream) SetPriority(priority int) {
	if p, ok := s.inner.(prioritizer); ok {
		p.SetPriority(priority)
	}
}

// Reset aborts the stream with a WebTransport error code, mapped to the
// underlying HTTP/3 error code space via ErrorToHTTP3. It never suspends.
func (s *SendStream) Reset(code uint32) {
	if !s.markClosed(&StreamError{Code: code}) {
		return
	}
	s.inner.CancelWrite(wtquic.StreamErrorCode(ErrorToHTTP3(code)))
}

// Close finishes the stream (sends FIN). A second call returns
// ErrStreamClosed, matching the protocol's idempotent-in-effect finish().
func (s *SendStream) Close() error {
	if !s.markClosed(nil) {
		return ErrStreamClosed
	}
	return s.inner.Close()
}

// Closed returns a channel that is closed once the stream's closure is
// known, whether by Close, Reset, or a peer STOP_SENDING.
func (s *SendStream) Closed() <-chan struct{} { return s.closedCh }

// CloseErr returns the reason the stream closed, or nil if it closed
// cleanly via Close.
func (s *SendStream) CloseErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

// stopped is invoked by Write when the peer has sent STOP_SENDING for this
// stream.
func (s *SendStream) stopped(code uint32) {
	s.markClosed(&StreamError{Code: code, Stop: true})
}

func (s *SendStream) markClosed(err error) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	s.closeErr = err
	close(s.closedCh)
	s.mu.Unlock()
	runtime.SetFinalizer(s, nil)
	return true
}

func (s *SendStream) finalize() {
	if s.markClosed(fmt.Errorf("webtransport: send stream garbage collected without Close or Reset")) {
		s.inner.CancelWrite(wtquic.StreamErrorCode(ErrorToHTTP3(ErrCodeSendStreamDropped)))
	}
}

// ReceiveStream is the receiving half of a WebTransport stream. A
// ReceiveStream left unreferenced without a call to Stop (and that has
// not already seen FIN) sends STOP_SENDING with a reserved code once the
// garbage collector notices — a best-effort backstop, not a substitute
// for calling Stop.
type ReceiveStream struct {
	mu       sync.Mutex
	inner    wtquic.ReceiveStream
	done     bool
	closeErr error
	closedCh chan struct{}
}

func newReceiveStream(inner wtquic.ReceiveStream) *ReceiveStream {
	s := &ReceiveStream{inner: inner, closedCh: make(chan struct{})}
	runtime.SetFinalizer(s, (*ReceiveStream).finalize)
	return s
}

// StreamID returns the underlying QUIC stream ID.
func (s *ReceiveStream) StreamID() wtquic.StreamID { return s.inner.StreamID() }

// Read reads into p, returning io.EOF once the peer's FIN has been
// delivered along with the last bytes.
func (s *ReceiveStream) Read(p []byte) (int, error) {
	n, err := s.inner.Read(p)
	if errors.Is(err, io.EOF) {
		s.markDone(nil)
	}
	var qerr *quic.StreamError
	if errors.As(err, &qerr) && qerr.Remote {
		if code, cerr := HTTP3ToError(uint64(qerr.ErrorCode)); cerr == nil {
			s.reset(code)
			return n, &StreamError{Code: code}
		}
	}
	return n, err
}

// ReadAll reads until EOF or limit bytes, whichever comes first.
func (s *ReceiveStream) ReadAll(limit int) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for len(buf) < limit {
		n, err := s.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf, nil
			}
			return buf, err
		}
	}
	return buf, nil
}

// Stop requests the peer abandon sending on this stream, mapping code
// through the same bijection as Reset. It never suspends.
func (s *ReceiveStream) Stop(code uint32) {
	if !s.markDone(&StreamError{Code: code, Stop: true}) {
		return
	}
	s.inner.CancelRead(wtquic.StreamErrorCode(ErrorToHTTP3(code)))
}

// Closed returns a channel closed once the stream has reached a terminal
// state: clean EOF, Stop, or a peer RESET_STREAM.
func (s *ReceiveStream) Closed() <-chan struct{} { return s.closedCh }

// CloseErr returns the reason the stream ended, or nil after a clean EOF.
func (s *ReceiveStream) CloseErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

// reset is invoked by Read when the peer has sent RESET_STREAM for this
// stream.
func (s *ReceiveStream) reset(code uint32) {
	s.markDone(&StreamError{Code: code})
}

func (s *ReceiveStream) markDone(err error) bool {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return false
	}
	s.done = true
	s.closeErr = err
	close(s.closedCh)
	s.mu.Unlock()
	runtime.SetFinalizer(s, nil)
	return true
}

func (s *ReceiveStream) finalize() {
	if s.markDone(fmt.Errorf("webtransport: receive stream garbage collected without Stop")) {
		s.inner.CancelRead(wtquic.StreamErrorCode(ErrorToHTTP3(ErrCodeRecvStreamDropped)))
	}
}

// Stream is a bidirectional WebTransport stream: the union of SendStream
// and ReceiveStream's operations over one underlying QUIC stream.
type Stream struct {
	*SendStream
	*ReceiveStream
	inner wtquic.Stream
}

func newStream(inner wtquic.Stream) *Stream {
	return &Stream{
		SendStream:    newSendStream(inner),
		ReceiveStream: newReceiveStream(inner),
		inner:         inner,
	}
}

// Context returns the underlying QUIC stream's context, canceled once the
// stream is closed in either direction.
func (s *Stream) Context() context.Context { return s.inner.Context() }

// StreamID returns the underlying QUIC stream ID. Declared explicitly
// because both embedded halves otherwise promote an ambiguous StreamID.
func (s *Stream) StreamID() wtquic.StreamID { return s.inner.StreamID() }

// Closed returns a channel closed once the stream's send side has reached
// a terminal state. Declared explicitly because both embedded halves
// otherwise promote an ambiguous Closed.
func (s *Stream) Closed() <-chan struct{} { return s.SendStream.Closed() }

// CloseErr returns the reason the stream's send side closed, or nil if it
// closed cleanly via Close. Declared explicitly because both embedded
// halves otherwise promote an ambiguous CloseErr.
func (s *Stream) CloseErr() error { return s.SendStream.CloseErr() }
