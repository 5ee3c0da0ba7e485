package h3

import (
	"bytes"
	"errors"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// Stream types
const (
	STREAM_CONTROL                 = 0x00
	STREAM_PUSH                    = 0x01
	STREAM_QPACK_ENCODER           = 0x02
	STREAM_QPACK_DECODER           = 0x03
	STREAM_WEBTRANSPORT_UNI_STREAM = 0x54
)

// ErrUnknownStreamType is returned for a stream type that is neither
// recognized nor GREASE.
var ErrUnknownStreamType = errors.New("h3: unknown stream type")

// HTTP/3 stream header: the first bytes of a unidirectional stream.
//
// Recognized types carry no further data except STREAM_PUSH and
// STREAM_WEBTRANSPORT_UNI_STREAM, which are followed by a second VarInt
// (push ID / WebTransport session ID respectively). GREASE stream types
// (spec §3, same progression as Frame) are reported via IsGrease rather
// than an error so callers can silently drop them.
type StreamHeader struct {
	Type    uint64
	ID      uint64
	IsGrease bool
}

// Read reads the stream header from the reader and stores it in the StreamHeader.
func (s *StreamHeader) Read(r io.Reader) error {
	qr := quicvarint.NewReader(r)
	t, err := quicvarint.Read(qr)
	if err != nil {
		return err
	}
	s.Type = t

	switch t {
	case STREAM_CONTROL, STREAM_QPACK_ENCODER, STREAM_QPACK_DECODER:
		return nil
	case STREAM_PUSH, STREAM_WEBTRANSPORT_UNI_STREAM:
		l, err := quicvarint.Read(qr)
		if err != nil {
			return err
		}
		s.ID = l
		return nil
	default:
		if IsGreaseFrameType(t) {
			s.IsGrease = true
			return nil
		}
		return ErrUnknownStreamType
	}
}

// Write writes the stream header to the writer.
func (s *StreamHeader) Write(w io.Writer) (int64, error) {
	buf := &bytes.Buffer{}

	buf.Write(quicvarint.Append(nil, s.Type))

	switch s.Type {
	case STREAM_CONTROL, STREAM_QPACK_ENCODER, STREAM_QPACK_DECODER:
		return buf.WriteTo(w)
	case STREAM_PUSH, STREAM_WEBTRANSPORT_UNI_STREAM:
		buf.Write(quicvarint.Append(nil, s.ID))
		return buf.WriteTo(w)
	default:
		if IsGreaseFrameType(s.Type) {
			return buf.WriteTo(w)
		}
		return 0, ErrUnknownStreamType
	}
}
