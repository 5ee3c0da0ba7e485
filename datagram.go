// Copyright 2025 Kirill Scherba <kirill@scherba.ru>. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Datagram module of webtransport package.

package webtransport

import (
	"bytes"
	"context"
	"fmt"

	"github.com/quic-go/quic-go/quicvarint"
)

// ErrDatagramTooShort is returned when a received QUIC datagram is
// shorter than its own session-ID VarInt prefix.
var ErrDatagramTooShort = fmt.Errorf("webtransport: datagram shorter than its session-id prefix")

// SendDatagram sends a datagram associated with this session. Datagrams
// are unreliable: depending on network conditions, a datagram sent by
// either side may never be received by the other.
//
// The WebTransport datagram is prefixed with the session ID as a plain
// VarInt (spec §3), not the quarter-stream-ID the underlying HTTP/3
// datagram draft historically used for plain HTTP/3 requests — WebTransport
// sessions are identified by the CONNECT stream ID directly.
func (s *Session) SendDatagram(msg []byte) error {
	buf := &bytes.Buffer{}
	buf.Write(s.datagramHeader)
	buf.Write(msg)
	return s.conn.SendDatagram(buf.Bytes())
}

// ReceiveDatagram returns the next datagram addressed to this session,
// blocking until one arrives, ctx is done, or the session closes.
func (s *Session) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return s.datagrams.pop(ctx)
}

// MaxDatagramSize reports the largest payload that can be handed to
// SendDatagram: a fixed 1200-byte datagram ceiling minus this session's
// datagram header length. It does not query the connection's actual MTU.
func (s *Session) MaxDatagramSize() int {
	// quic-go does not expose a direct MTU query on the Connection
	// interface; conservatively assume the common QUIC datagram ceiling
	// and subtract our own header.
	const assumedMTU = 1200
	return assumedMTU - len(s.datagramHeader)
}

// decodeDatagramSessionID reads the leading session-ID VarInt off a raw
// QUIC datagram and returns the session ID and the remaining payload.
func decodeDatagramSessionID(msg []byte) (id uint64, rest []byte, err error) {
	r := bytes.NewReader(msg)
	id, err = quicvarint.Read(r)
	if err != nil {
		return 0, nil, ErrDatagramTooShort
	}
	return id, msg[len(msg)-r.Len():], nil
}
