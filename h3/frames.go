package h3

import (
	"bytes"
	"fmt"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// Frame types
const (
	FRAME_DATA                = 0x00
	FRAME_HEADERS             = 0x01
	FRAME_CANCEL_PUSH         = 0x03
	FRAME_SETTINGS            = 0x04
	FRAME_PUSH_PROMISE        = 0x05
	FRAME_GOAWAY              = 0x07
	FRAME_MAX_PUSH_ID         = 0x0D
	FRAME_WEBTRANSPORT_STREAM = 0x41
)

// MaxFrameSize is the implementation-defined ceiling on a frame's payload,
// enforced before any allocation happens.
const MaxFrameSize = 65536

// ErrFrameTooLarge is returned when a frame's declared length exceeds
// MaxFrameSize.
var ErrFrameTooLarge = fmt.Errorf("h3: frame payload exceeds %d bytes", MaxFrameSize)

// HTTP/3 frame
type Frame struct {
	Type      uint64
	SessionID uint64
	Length    uint64
	Data      []byte
}

// Read reads an HTTP/3 frame from a reader and stores it in the frame.
//
// For FRAME_WEBTRANSPORT_STREAM, the second varint is the WebTransport
// session ID rather than a length, and there is no payload to read: this is
// the bidirectional-stream prefix described in spec §3, not a generic
// HTTP/3 frame body.
func (f *Frame) Read(r io.Reader) error {
	qr := quicvarint.NewReader(r)
	t, err := quicvarint.Read(qr)
	if err != nil {
		return err
	}
	l, err := quicvarint.Read(qr)
	if err != nil {
		return err
	}

	f.Type = t

	switch t {
	case FRAME_WEBTRANSPORT_STREAM:
		f.Length = 0
		f.SessionID = l
		f.Data = nil
		return nil
	default:
		if l > MaxFrameSize {
			return ErrFrameTooLarge
		}
		f.Length = l
		f.Data = make([]byte, l)
		_, err := io.ReadFull(r, f.Data)
		return err
	}
}

// ReadSkippingGrease reads frames from r, discarding GREASE frames
// (spec §3: any type t = 0x21 + 0x1f*N MUST be ignored on receive), and
// returns the first non-GREASE frame.
func ReadSkippingGrease(r io.Reader) (Frame, error) {
	for {
		var f Frame
		if err := f.Read(r); err != nil {
			return Frame{}, err
		}
		if IsGreaseFrameType(f.Type) {
			continue
		}
		return f, nil
	}
}

// Write writes an HTTP/3 frame to a writer.
func (f *Frame) Write(w io.Writer) (int, error) {
	buf := &bytes.Buffer{}

	buf.Write(quicvarint.Append(nil, f.Type))

	if f.Type == FRAME_WEBTRANSPORT_STREAM {
		buf.Write(quicvarint.Append(nil, f.SessionID))
	} else {
		buf.Write(quicvarint.Append(nil, f.Length))
	}

	buf.Write(f.Data)

	return w.Write(buf.Bytes())
}
