// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Request represents one incoming extended CONNECT that is asking to
// establish a WebTransport session.

package webtransport

import (
	"context"
	"net/http"
	"net/url"

	"github.com/webtransport-go/wt3/h3"
	"github.com/webtransport-go/wt3/internal/wtlog"
	"github.com/webtransport-go/wt3/internal/wtquic"
)

// Request is a pending WebTransport session request, surfaced by
// Listener.Accept. The caller must call exactly one of Respond or Reject.
type Request struct {
	// URL is the request URL reconstructed from :authority and :path.
	URL *url.URL
	// Protocols is the client's offered subprotocols, from
	// wt-available-protocols, in preference order.
	Protocols []string
	// Header carries any additional headers decoded from the CONNECT
	// request, notably "origin".
	Header http.Header
	// HTTPRequest is the same CONNECT request decoded as an *http.Request
	// by h3.RequestFromHeaders, for handlers built with WrapHTTPHandler.
	// It is nil if that decoding failed even though DecodeFields succeeded.
	HTTPRequest *http.Request


	conn   wtquic.Connection
	stream wtquic.Stream
	mux    *connMux
	ctx    context.Context
	log    wtlog.Logger
}

// Respond accepts the session, negotiating the given subprotocol (which
// must be empty or one of r.Protocols). It returns the established
// Session.
func (r *Request) Respond(protocol string) (*Session, error) {
	resp := h3.ConnectResponse{Status: http.StatusOK, Protocol: protocol}
	if _, err := resp.Write(r.stream); err != nil {
		r.stream.CancelWrite(0)
		return nil, err
	}

	id := uint64(r.stream.StreamID())
	logger := r.log
	if logger == nil {
		logger = wtlog.DefaultLogger
	}

	sess := newSession(r.ctx, r.conn, r.stream, id, protocol, r.mux, logger)
	r.mux.register(id, sess)
	go sess.watchCapsules()
	return sess, nil
}

// Reject declines the session, sending the given HTTP status code
// (which must not be 2xx) to the client.
func (r *Request) Reject(status int) error {
	resp := h3.ConnectResponse{Status: status}
	_, err := resp.Write(r.stream)
	r.stream.Close()
	return err
}
