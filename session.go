// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Session module of webtransport package.

package webtransport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/quic-go/quic-go/quicvarint"

	"github.com/webtransport-go/wt3/h3"
	"github.com/webtransport-go/wt3/internal/wtlog"
	"github.com/webtransport-go/wt3/internal/wtquic"
)

// Session is an established WebTransport session, multiplexing streams
// and datagrams under one session ID over a shared QUIC connection.
//
// Dropping every reference to a Session without calling Close triggers a
// best-effort close of the QUIC connection with a reserved code, the same
// way the stream wrappers do (see runtime.SetFinalizer in stream.go).
type Session struct {
	id            uint64
	conn          wtquic.Connection
	connectStream wtquic.Stream
	mux           *connMux
	log           wtlog.Logger
	protocol      string

	uniHeader      []byte
	biHeader       []byte
	datagramHeader []byte

	uniStreams *queue[*ReceiveStream]
	biStreams  *queue[*Stream]
	datagrams  *queue[[]byte]

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	closeErr error
	closedCh chan struct{}
}

func newSession(ctx context.Context, conn wtquic.Connection, connectStream wtquic.Stream, id uint64, protocol string, mux *connMux, log wtlog.Logger) *Session {
	sessCtx, cancel := context.WithCancel(ctx)

	uniHeader := &bytes.Buffer{}
	uniHeader.Write(quicvarint.Append(nil, uint64(h3.STREAM_WEBTRANSPORT_UNI_STREAM)))
	uniHeader.Write(quicvarint.Append(nil, id))

	biHeader := &bytes.Buffer{}
	biHeader.Write(quicvarint.Append(nil, uint64(h3.FRAME_WEBTRANSPORT_STREAM)))
	biHeader.Write(quicvarint.Append(nil, id))

	s := &Session{
		id:             id,
		conn:           conn,
		connectStream:  connectStream,
		mux:            mux,
		log:            log,
		protocol:       protocol,
		uniHeader:      uniHeader.Bytes(),
		biHeader:       biHeader.Bytes(),
		datagramHeader: quicvarint.Append(nil, id),
		uniStreams:     newQueue[*ReceiveStream](),
		biStreams:      newQueue[*Stream](),
		datagrams:      newQueue[[]byte](),
		ctx:            sessCtx,
		cancel:         cancel,
		closedCh:       make(chan struct{}),
	}

	runtime.SetFinalizer(s, (*Session).finalize)
	return s
}

// ID returns the session ID: the QUIC stream ID of the CONNECT stream.
func (s *Session) ID() uint64 { return s.id }

// Protocol returns the negotiated WebTransport subprotocol, or "" if none
// was negotiated.
func (s *Session) Protocol() string { return s.protocol }

// Context is canceled as soon as the session closes, by any means.
func (s *Session) Context() context.Context { return s.ctx }

// AcceptStream returns the next incoming bidirectional WebTransport
// stream, blocking until one arrives, ctx is done, or the session closes.
func (s *Session) AcceptStream(ctx context.Context) (*Stream, error) {
	return s.biStreams.pop(ctx)
}

// AcceptUniStream returns the next incoming unidirectional WebTransport
// stream, blocking until one arrives, ctx is done, or the session closes.
func (s *Session) AcceptUniStream(ctx context.Context) (*ReceiveStream, error) {
	return s.uniStreams.pop(ctx)
}

// OpenStream opens an outgoing bidirectional stream, returning
// immediately if the peer's stream-concurrency limit allows it.
func (s *Session) OpenStream() (*Stream, error) {
	stream, err := s.conn.OpenStream()
	if err != nil {
		return nil, err
	}
	return s.finishOpenStream(stream)
}

// OpenStreamSync opens an outgoing bidirectional stream, blocking until a
// concurrency slot is available or ctx is done.
func (s *Session) OpenStreamSync(ctx context.Context) (*Stream, error) {
	stream, err := s.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return s.finishOpenStream(stream)
}

func (s *Session) finishOpenStream(stream wtquic.Stream) (*Stream, error) {
	if _, err := stream.Write(s.biHeader); err != nil {
		stream.CancelWrite(0)
		return nil, err
	}
	return newStream(stream), nil
}

// OpenUniStream opens an outgoing unidirectional stream, returning
// immediately if the peer's stream-concurrency limit allows it.
func (s *Session) OpenUniStream() (*SendStream, error) {
	stream, err := s.conn.OpenUniStream()
	if err != nil {
		return nil, err
	}
	return s.finishOpenUniStream(stream)
}

// OpenUniStreamSync opens an outgoing unidirectional stream, blocking
// until a concurrency slot is available or ctx is done.
func (s *Session) OpenUniStreamSync(ctx context.Context) (*SendStream, error) {
	stream, err := s.conn.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return s.finishOpenUniStream(stream)
}

func (s *Session) finishOpenUniStream(stream wtquic.SendStream) (*SendStream, error) {
	if _, err := stream.Write(s.uniHeader); err != nil {
		stream.CancelWrite(0)
		return nil, err
	}
	return newSendStream(stream), nil
}

// Close cleanly closes the session with code 0 and no reason.
func (s *Session) Close() error {
	return s.CloseWithError(0, "")
}

// CloseWithError closes the session, sending a CLOSE_WEBTRANSPORT_SESSION
// capsule on the CONNECT stream before finishing it. CloseErr, and any
// accept call that was blocked when the session closed, report a
// *SessionCloseError carrying the same code and reason.
func (s *Session) CloseWithError(code uint32, reason string) error {
	closeErr := &SessionCloseError{Code: code, Reason: reason}
	if !s.markClosed(closeErr) {
		return fmt.Errorf("webtransport: session already closed")
	}
	_, err := h3.WriteCapsule(s.connectStream, code, reason)
	s.connectStream.Close()
	s.mux.unregister(s.id)
	return err
}

// Closed returns a channel closed once the session has reached a
// terminal state, by any means (see CloseErr for why).
func (s *Session) Closed() <-chan struct{} { return s.closedCh }

// CloseErr returns the reason the session closed: a *SessionCloseError
// carrying the code and reason passed to Close/CloseWithError, locally or
// by the peer; nil if the CONNECT stream ended cleanly without a capsule;
// or the error that ended it some other way (e.g. the QUIC connection was
// lost, or the Session was garbage collected).
func (s *Session) CloseErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

// failFatal is invoked by the capsule watcher or the connection mux when
// the session ends for a reason other than an explicit application Close.
func (s *Session) failFatal(err error) {
	if !s.markClosed(err) {
		return
	}
	s.mux.unregister(s.id)
}

func (s *Session) markClosed(err error) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	s.closeErr = err
	s.mu.Unlock()

	s.cancel()
	close(s.closedCh)

	// Accept calls always need a non-nil error to unblock on, even when
	// CloseErr() itself is nil (e.g. the peer's stream ended without a
	// capsule): queue.pop treats a nil error as a successful pop of a
	// zero value, not a closure.
	queueErr := err
	if queueErr == nil {
		queueErr = fmt.Errorf("webtransport: session closed")
	}
	s.uniStreams.closeWith(queueErr)
	s.biStreams.closeWith(queueErr)
	s.datagrams.closeWith(queueErr)
	runtime.SetFinalizer(s, nil)
	return true
}

func (s *Session) finalize() {
	if s.markClosed(fmt.Errorf("webtransport: session garbage collected without Close")) {
		s.conn.CloseWithError(wtquic.ErrorCode(ErrorToHTTP3(ErrCodeConnectionDropped)), "connection dropped")
		s.mux.unregister(s.id)
	}
}

// watchCapsules reads CLOSE_WEBTRANSPORT_SESSION capsules off the CONNECT
// stream until one arrives, the stream ends cleanly, or a decode error
// forces the session closed with a generic error code.
func (s *Session) watchCapsules() {
	for {
		capsule, err := h3.ReadCapsule(s.connectStream)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.failFatal(nil)
			} else {
				s.log.Debugf("capsule error: %s", err)
				s.CloseWithError(ErrCodeCapsuleError, "capsule error")
			}
			return
		}
		if capsule.IsGrease {
			continue
		}
		if capsule.Close != nil {
			s.failFatal(&SessionCloseError{Code: capsule.Close.Code, Reason: capsule.Close.Reason})
			return
		}
		// Unknown capsule: ignored, logged at debug level.
		s.log.Debugf("ignoring unknown capsule type %#x", capsule.Type)
	}
}

// SessionCloseError reports a CLOSE_WEBTRANSPORT_SESSION code and reason,
// either received from the peer or passed to Close/CloseWithError locally.
type SessionCloseError struct {
	Code   uint32
	Reason string
}

func (e *SessionCloseError) Error() string {
	return fmt.Sprintf("webtransport: session closed, code %d: %s", e.Code, e.Reason)
}
