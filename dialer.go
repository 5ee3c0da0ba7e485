// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Dialer is the client-side counterpart of Listener: it dials a QUIC
// connection, runs the SETTINGS exchange, and issues the extended
// CONNECT request that establishes a WebTransport session.

package webtransport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"

	"github.com/quic-go/quic-go"

	"github.com/webtransport-go/wt3/h3"
	"github.com/webtransport-go/wt3/internal/wtlog"
)

// DialOptions configures Dial.
type DialOptions struct {
	// TLSConfig is required; its NextProtos should include "h3".
	TLSConfig *tls.Config
	// QUICConfig is optional; EnableDatagrams is forced to true regardless.
	QUICConfig *quic.Config
	// Protocols lists the subprotocols offered to the server, in
	// preference order.
	Protocols []string
	// Logger overrides the default stderr logger.
	Logger wtlog.Logger
}

// Dial establishes a WebTransport session with the server at rawURL,
// which must use the "https" scheme.
func Dial(ctx context.Context, rawURL string, opts DialOptions) (*Session, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("webtransport: invalid url: %w", err)
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("webtransport: url scheme must be https, got %q", u.Scheme)
	}

	quicConfig := opts.QUICConfig
	if quicConfig == nil {
		quicConfig = &quic.Config{}
	}
	cfg := *quicConfig
	cfg.EnableDatagrams = true

	tlsConfig := opts.TLSConfig.Clone()
	if len(tlsConfig.NextProtos) == 0 {
		tlsConfig.NextProtos = []string{"h3"}
	}

	conn, err := quic.DialAddr(ctx, u.Host, tlsConfig, &cfg)
	if err != nil {
		return nil, err
	}

	settings, err := h3.Connect(ctx, conn, h3.DefaultOutboundSettings(1))
	if err != nil {
		conn.CloseWithError(0, "settings exchange failed")
		return nil, err
	}
	if settings.Remote.SupportsWebTransport() == 0 {
		conn.CloseWithError(0, "peer does not support webtransport")
		return nil, fmt.Errorf("webtransport: server does not support WebTransport")
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}

	reqReq := h3.ConnectRequest{URL: u, Protocols: opts.Protocols}
	if _, err := reqReq.Write(stream); err != nil {
		stream.CancelWrite(0)
		return nil, err
	}

	var resp h3.ConnectResponse
	if err := resp.Read(stream); err != nil {
		stream.CancelRead(0)
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = wtlog.DefaultLogger
	}

	mux := newConnMux(conn, logger, nil)
	mux.settings = settings

	id := uint64(stream.StreamID())
	sess := newSession(ctx, conn, stream, id, resp.Protocol, mux, logger)
	mux.register(id, sess)
	go mux.run(ctx)
	go sess.watchCapsules()

	return sess, nil
}
