// Package wtquic re-exports the slice of github.com/quic-go/quic-go's
// connection and stream types the webtransport core depends on.
//
// Every exported name here is a type alias, never a freshly declared
// interface. Go's interface satisfaction is nominal on nested return
// types — a method returning quic.Stream does not satisfy an interface
// whose signature says it returns some other, structurally identical
// Stream interface. Aliasing keeps *quic.Conn and its stream types
// assignable into the core's interfaces with zero adapter code, while
// still giving the core package names that read as "the QUIC surface"
// rather than a direct quic-go import in every file.
//
// Tests satisfy these aliased interfaces with small hand-written fakes;
// production code only ever holds real *quic.Conn / quic.Stream values.
package wtquic

import "github.com/quic-go/quic-go"

// StreamID identifies a QUIC stream. Even-numbered IDs are bidirectional.
type StreamID = quic.StreamID

// ErrorCode is the error code space used by Connection.CloseWithError.
type ErrorCode = quic.ApplicationErrorCode

// StreamErrorCode is the error code space used by CancelRead/CancelWrite
// (STOP_SENDING/RESET_STREAM).
type StreamErrorCode = quic.StreamErrorCode

// SendStream is the sending half of a QUIC stream.
type SendStream = quic.SendStream

// ReceiveStream is the receiving half of a QUIC stream.
type ReceiveStream = quic.ReceiveStream

// Stream is a bidirectional QUIC stream.
type Stream = quic.Stream

// Connection is an established QUIC connection.
type Connection = quic.Connection

// EarlyConnection is a QUIC connection usable before the TLS handshake
// has completed (0-RTT).
type EarlyConnection = quic.EarlyConnection

// Listener accepts incoming QUIC connections.
type Listener = quic.Listener
