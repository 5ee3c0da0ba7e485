// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Per-connection stream and datagram multiplexer shared by the server
// Listener and the client Dialer: one QUIC connection can carry several
// WebTransport sessions (several independent CONNECT streams), each
// identified by the CONNECT stream's QUIC stream ID.

package webtransport

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/webtransport-go/wt3/h3"
	"github.com/webtransport-go/wt3/internal/wtlog"
	"github.com/webtransport-go/wt3/internal/wtquic"
)

// connMux owns the background accept loops for one QUIC connection: it
// routes incoming WebTransport uni/bi streams and datagrams to the
// matching Session by session ID, and (server-side) surfaces fresh
// CONNECT requests through onRequest.
type connMux struct {
	conn     wtquic.Connection
	log      wtlog.Logger
	settings *h3.Settings           // kept alive for the connection's lifetime
	qpack    []wtquic.ReceiveStream // retained QPACK encoder/decoder streams, never read

	mu       sync.Mutex
	sessions map[uint64]*Session

	// onRequest is invoked for every fresh CONNECT request seen on this
	// connection. nil on the client, where no incoming CONNECT is expected.
	onRequest func(*Request)
}

func newConnMux(conn wtquic.Connection, log wtlog.Logger, onRequest func(*Request)) *connMux {
	return &connMux{
		conn:      conn,
		log:       log,
		sessions:  make(map[uint64]*Session),
		onRequest: onRequest,
	}
}

// run starts the background accept loops. It returns once ctx is done or
// the connection is gone; callers typically run it in its own goroutine.
func (m *connMux) run(ctx context.Context) {
	go m.acceptUniLoop(ctx)
	go m.datagramLoop(ctx)
	m.acceptBiLoop(ctx)
	m.closeAll(fmt.Errorf("webtransport: quic connection closed"))
}

func (m *connMux) register(id uint64, s *Session) {
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
}

func (m *connMux) unregister(id uint64) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *connMux) session(id uint64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// closeAll fails every live session when the underlying QUIC connection
// goes away.
func (m *connMux) closeAll(err error) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()
	for _, s := range sessions {
		s.failFatal(err)
	}
}

func (m *connMux) acceptUniLoop(ctx context.Context) {
	for {
		stream, err := m.conn.AcceptUniStream(ctx)
		if err != nil {
			return
		}
		go m.handleUniStream(stream)
	}
}

func (m *connMux) handleUniStream(stream wtquic.ReceiveStream) {
	var hdr h3.StreamHeader
	if err := hdr.Read(stream); err != nil {
		stream.CancelRead(0)
		return
	}

	if hdr.IsGrease {
		stream.CancelRead(0)
		return
	}

	switch hdr.Type {
	case h3.STREAM_CONTROL:
		// A second control stream in this direction is fatal per spec §3,
		// but tearing down here would require a connection-level error
		// plumbed back to every session; closing the offending stream is
		// the conservative, connection-preserving response.
		m.log.Errorf("duplicate control stream, dropping")
		stream.CancelRead(0)
	case h3.STREAM_QPACK_ENCODER, h3.STREAM_QPACK_DECODER:
		m.mu.Lock()
		m.qpack = append(m.qpack, stream)
		m.mu.Unlock()
	case h3.STREAM_WEBTRANSPORT_UNI_STREAM:
		sess, ok := m.session(hdr.ID)
		if !ok {
			stream.CancelRead(0)
			return
		}
		sess.uniStreams.push(newReceiveStream(stream))
	default:
		stream.CancelRead(0)
	}
}

func (m *connMux) acceptBiLoop(ctx context.Context) {
	for {
		stream, err := m.conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go m.handleBiStream(ctx, stream)
	}
}

func (m *connMux) handleBiStream(ctx context.Context, stream wtquic.Stream) {
	frame, err := h3.ReadSkippingGrease(stream)
	if err != nil {
		stream.CancelRead(0)
		stream.CancelWrite(0)
		return
	}

	switch frame.Type {
	case h3.FRAME_WEBTRANSPORT_STREAM:
		sess, ok := m.session(frame.SessionID)
		if !ok {
			stream.CancelRead(0)
			stream.CancelWrite(0)
			return
		}
		sess.biStreams.push(newStream(stream))

	case h3.FRAME_HEADERS:
		if m.onRequest == nil {
			stream.CancelRead(0)
			stream.CancelWrite(0)
			return
		}
		fields, err := h3.DecodeHeaders(frame.Data)
		if err != nil {
			m.log.Debugf("invalid CONNECT headers: %s", err)
			stream.CancelRead(0)
			stream.CancelWrite(0)
			return
		}

		var req h3.ConnectRequest
		if err := req.DecodeFields(fields); err != nil {
			m.log.Debugf("invalid CONNECT request: %s", err)
			stream.CancelRead(0)
			stream.CancelWrite(0)
			return
		}
		hdr := make(http.Header, len(req.Header))
		for k, v := range req.Header {
			hdr.Set(k, v)
		}

		// httpReq re-derives the same request as an *http.Request for
		// callers that bridge into net/http handlers (see http_bridge.go);
		// its own validation is looser than DecodeFields' above, so only
		// DecodeFields' outcome gates acceptance.
		httpReq, _, err := h3.RequestFromHeaders(fields)
		if err != nil {
			httpReq = nil
		}

		m.onRequest(&Request{
			URL:         req.URL,
			Protocols:   req.Protocols,
			Header:      hdr,
			HTTPRequest: httpReq,
			conn:        m.conn,
			stream:      stream,
			mux:         m,
			ctx:         ctx,
			log:         m.log,
		})

	default:
		stream.CancelRead(0)
		stream.CancelWrite(0)
	}
}

// datagramLoop reads connection-level datagrams and routes each to its
// session by the leading session-ID VarInt, discarding any whose session
// ID is unknown.
func (m *connMux) datagramLoop(ctx context.Context) {
	for {
		msg, err := m.conn.ReceiveDatagram(ctx)
		if err != nil {
			return
		}
		id, rest, err := decodeDatagramSessionID(msg)
		if err != nil {
			continue
		}
		sess, ok := m.session(id)
		if !ok {
			continue
		}
		sess.datagrams.push(rest)
	}
}
