// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// http_bridge.go lets an existing net/http-shaped handler accept
// WebTransport sessions, for callers who would rather mount WebTransport
// on an http.ServeMux than use Request.Respond directly. It is a thin
// convenience layer over the primitive Request/Session API, built on the
// teacher's header-decoding and response-writing helpers
// (h3.RequestFromHeaders, h3.ResponseWriter).

package webtransport

import (
	"io"
	"net/http"

	"github.com/webtransport-go/wt3/h3"
)

// sessionBody adapts a *Session to io.ReadCloser so it can be hung off
// http.Request.Body. The CONNECT stream carries no application data in
// this protocol (only capsules, handled by the session internally), so
// Read always reports io.EOF; Close ends the session.
type sessionBody struct{ *Session }

func (sessionBody) Read([]byte) (int, error) { return 0, io.EOF }
func (b sessionBody) Close() error           { return b.Session.Close() }

// WrapHTTPHandler adapts an http.Handler to a Handler: it accepts every
// WebTransport request whose headers decoded cleanly into an
// *http.Request, hands the handler an *http.Request whose Body is the
// established Session, and rejects anything else with 400.
//
// The handler retrieves the Session with SessionFromRequest.
func WrapHTTPHandler(next http.Handler) Handler {
	return func(req *Request) {
		if req.HTTPRequest == nil {
			req.Reject(http.StatusBadRequest)
			return
		}

		rw := h3.NewResponseWriter(req.stream)
		rw.Header().Set("sec-webtransport-http3-draft", SecWebTransportHTTP3Draft)
		rw.WriteHeader(http.StatusOK)
		rw.Flush()

		id := uint64(req.stream.StreamID())
		logger := req.log
		sess := newSession(req.ctx, req.conn, req.stream, id, "", req.mux, logger)
		req.mux.register(id, sess)
		go sess.watchCapsules()

		httpReq := req.HTTPRequest.WithContext(sess.Context())
		httpReq.Body = sessionBody{sess}

		next.ServeHTTP(rw, httpReq)
	}
}

// SessionFromRequest recovers the Session established by WrapHTTPHandler
// from the *http.Request it handed to the wrapped handler.
func SessionFromRequest(r *http.Request) (*Session, bool) {
	body, ok := r.Body.(sessionBody)
	if !ok {
		return nil, false
	}
	return body.Session, true
}

// SecWebTransportHTTP3Draft mirrors h3.SecWebTransportHTTP3Draft for
// callers that only import the root package.
const SecWebTransportHTTP3Draft = h3.SecWebTransportHTTP3Draft
