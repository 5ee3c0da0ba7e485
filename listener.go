// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Listener accepts incoming WebTransport session requests over one or
// more QUIC connections, running the SETTINGS exchange and per-connection
// stream multiplexer described in DESIGN.md.

package webtransport

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/quic-go/quic-go"

	"github.com/webtransport-go/wt3/h3"
	"github.com/webtransport-go/wt3/internal/wtlog"
	"github.com/webtransport-go/wt3/internal/wtquic"
)

// Listener accepts WebTransport session requests. Each accepted QUIC
// connection can carry more than one session over its lifetime; each
// becomes a *Request delivered through Accept.
type Listener struct {
	quicListener wtquic.Listener
	log          wtlog.Logger
	maxSessions  uint64

	requests *queue[*Request]
}

// ListenOptions configures Listen.
type ListenOptions struct {
	// TLSConfig is required; its NextProtos should include "h3".
	TLSConfig *tls.Config
	// QUICConfig is optional; EnableDatagrams is forced to true regardless.
	QUICConfig *quic.Config
	// MaxSessions is the per-connection WebTransport session cap
	// advertised to peers (WEBTRANSPORT_MAX_SESSIONS). Defaults to 1 if 0.
	MaxSessions uint64
	// Logger overrides the default stderr logger.
	Logger wtlog.Logger
}

// Listen starts a QUIC listener on addr and returns a Listener.
func Listen(addr string, opts ListenOptions) (*Listener, error) {
	quicConfig := opts.QUICConfig
	if quicConfig == nil {
		quicConfig = &quic.Config{}
	}
	cfg := *quicConfig
	cfg.EnableDatagrams = true

	ql, err := quic.ListenAddr(addr, opts.TLSConfig, &cfg)
	if err != nil {
		return nil, err
	}
	return newListener(ql, opts), nil
}

func newListener(ql wtquic.Listener, opts ListenOptions) *Listener {
	logger := opts.Logger
	if logger == nil {
		logger = wtlog.DefaultLogger
	}
	maxSessions := opts.MaxSessions
	if maxSessions == 0 {
		maxSessions = 1
	}

	l := &Listener{
		quicListener: ql,
		log:          logger,
		maxSessions:  maxSessions,
		requests:     newQueue[*Request](),
	}
	go l.acceptLoop()
	return l
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr { return l.quicListener.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error {
	err := l.quicListener.Close()
	l.requests.closeWith(context.Canceled)
	return err
}

// Accept returns the next pending WebTransport session request, blocking
// until one arrives, ctx is done, or the Listener closes.
func (l *Listener) Accept(ctx context.Context) (*Request, error) {
	return l.requests.pop(ctx)
}

func (l *Listener) acceptLoop() {
	ctx := context.Background()
	for {
		conn, err := l.quicListener.Accept(ctx)
		if err != nil {
			l.requests.closeWith(err)
			return
		}
		go l.handleConnection(ctx, conn)
	}
}

func (l *Listener) handleConnection(ctx context.Context, conn wtquic.Connection) {
	settings, err := h3.Connect(ctx, conn, h3.DefaultOutboundSettings(l.maxSessions))
	if err != nil {
		conn.CloseWithError(0, "settings exchange failed")
		return
	}
	if settings.Remote.SupportsWebTransport() == 0 {
		conn.CloseWithError(0, "peer does not support webtransport")
		return
	}

	mux := newConnMux(conn, l.log, func(req *Request) {
		l.requests.push(req)
	})
	mux.settings = settings
	mux.run(ctx)
}
