// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package webtransport provides a WebTransport-over-HTTP/3 server and
// client implementation in Go.
//
// This package depends on [quic-go](https://github.com/quic-go/quic-go)
// for the QUIC transport, [qpack](https://github.com/quic-go/qpack) for
// stateless header encoding, and [httpsfv](https://github.com/dunglas/httpsfv)
// for RFC 8941 Structured Field subprotocol negotiation.
package webtransport

import (
	"context"
	"net/url"
	"slices"

	"github.com/quic-go/quic-go"

	"github.com/webtransport-go/wt3/internal/wtlog"
)

// Handler handles one accepted WebTransport session request. Exactly one
// of Request.Respond or Request.Reject must be called.
type Handler func(req *Request)

// Server defines parameters for running a WebTransport server, on top of
// a Listener.
type Server struct {
	// Handler is invoked for each incoming session request. If nil,
	// every request is rejected with http.StatusNotFound.
	Handler Handler
	// ListenAddr sets an address to bind the server to, e.g. ":4433".
	ListenAddr string
	// TLSCert defines a path to, or byte array containing, a certificate
	// (CRT file).
	TLSCert CertFile
	// TLSKey defines a path to, or byte array containing, the
	// certificate's private key (KEY file).
	TLSKey CertFile
	// AllowedOrigins represents the list of allowed origins to connect
	// from. A nil slice allows all origins.
	AllowedOrigins []string
	// MaxSessions is the per-connection WebTransport session cap
	// advertised to peers. Defaults to 1 if 0.
	MaxSessions uint64
	// QuicConfig carries additional configuration passed onto the QUIC
	// listener.
	QuicConfig *QuicConfig
	// Logger overrides the default stderr logger.
	Logger wtlog.Logger

	listener *Listener
}

// QuicConfig is a wrapper for quic.Config.
type QuicConfig quic.Config

// Run starts a WebTransport server and blocks while it's running. Cancel
// the supplied Context to stop the server.
func (s *Server) Run(ctx context.Context) error {
	tlsConfig, err := s.makeTLSConfig()
	if err != nil {
		return err
	}

	quicConfig := s.QuicConfig
	if quicConfig == nil {
		quicConfig = &QuicConfig{}
	}

	l, err := Listen(s.ListenAddr, ListenOptions{
		TLSConfig:   tlsConfig,
		QUICConfig:  (*quic.Config)(quicConfig),
		MaxSessions: s.MaxSessions,
		Logger:      s.Logger,
	})
	if err != nil {
		return err
	}
	s.listener = l

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		req, err := l.Accept(ctx)
		if err != nil {
			return err
		}
		go s.handleRequest(req)
	}
}

func (s *Server) handleRequest(req *Request) {
	if !s.validateOrigin(req.Header.Get("origin")) {
		req.Reject(400)
		return
	}
	if s.Handler == nil {
		req.Reject(404)
		return
	}
	s.Handler(req)
}

// validateOrigin checks if the given origin is allowed to access the
// WebTransport server. A nil AllowedOrigins allows everything.
func (s *Server) validateOrigin(origin string) bool {
	if s.AllowedOrigins == nil {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	return slices.Contains(s.AllowedOrigins, u.Host)
}
