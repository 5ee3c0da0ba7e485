package h3

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// CapsuleTypeCloseWebTransportSession is the capsule carried on the CONNECT
// stream to signal an application-initiated session close (spec §4.4,
// original_source/capsule.rs).
const CapsuleTypeCloseWebTransportSession = 0x2843

// MaxCapsuleSize is the ceiling on a capsule's payload, checked against the
// declared length before any allocation happens.
const MaxCapsuleSize = 1024

// ErrCapsuleTooLarge is returned when a capsule's declared length exceeds
// MaxCapsuleSize.
var ErrCapsuleTooLarge = fmt.Errorf("h3: capsule payload exceeds %d bytes", MaxCapsuleSize)

// Capsule is a parsed HTTP Capsule (RFC 9297) read from the CONNECT stream.
//
// Exactly one of the Close/Grease/Unknown fields is meaningful, selected by
// Type. GREASE capsule types are reported distinctly from Unknown so callers
// can choose to ignore them without logging a protocol anomaly.
type Capsule struct {
	Type    uint64
	Close   *CloseWebTransportSession
	IsGrease bool
	Unknown []byte
}

// CloseWebTransportSession is the payload of a CLOSE_WEBTRANSPORT_SESSION
// capsule: a 32-bit application error code followed by a UTF-8 reason
// string that is not length-prefixed — it runs to the end of the capsule.
type CloseWebTransportSession struct {
	Code   uint32
	Reason string
}

// ReadCapsule reads one capsule from r.
//
// Matches original_source/capsule.rs byte for byte: the length is checked
// against MaxCapsuleSize before the payload buffer is allocated, and a
// CLOSE_WEBTRANSPORT_SESSION capsule shorter than 4 bytes is a decode error
// rather than a zero-filled code.
func ReadCapsule(r io.Reader) (Capsule, error) {
	qr := quicvarint.NewReader(r)
	t, err := quicvarint.Read(qr)
	if err != nil {
		return Capsule{}, err
	}
	l, err := quicvarint.Read(qr)
	if err != nil {
		return Capsule{}, err
	}
	if l > MaxCapsuleSize {
		return Capsule{}, ErrCapsuleTooLarge
	}

	payload := make([]byte, l)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Capsule{}, err
	}

	c := Capsule{Type: t}

	switch t {
	case CapsuleTypeCloseWebTransportSession:
		if len(payload) < 4 {
			return Capsule{}, fmt.Errorf("h3: close-webtransport-session capsule too short: %d bytes", len(payload))
		}
		c.Close = &CloseWebTransportSession{
			Code:   binary.BigEndian.Uint32(payload[:4]),
			Reason: string(payload[4:]),
		}
	default:
		if IsGreaseCapsuleType(t) {
			c.IsGrease = true
		} else {
			c.Unknown = payload
		}
	}

	return c, nil
}

// maxCloseReasonLen is the largest reason string WriteCapsule accepts: the
// 4-byte code leaves MaxCapsuleSize-4 bytes for the reason, matching the
// ceiling ReadCapsule enforces on the far end.
const maxCloseReasonLen = MaxCapsuleSize - 4

// ErrCloseReasonTooLong is returned when a CLOSE_WEBTRANSPORT_SESSION
// reason would make the encoded capsule exceed MaxCapsuleSize.
var ErrCloseReasonTooLong = fmt.Errorf("h3: close reason exceeds %d bytes", maxCloseReasonLen)

// WriteCapsule encodes and writes a CLOSE_WEBTRANSPORT_SESSION capsule.
func WriteCapsule(w io.Writer, code uint32, reason string) (int, error) {
	if len(reason) > maxCloseReasonLen {
		return 0, ErrCloseReasonTooLong
	}

	buf := &bytes.Buffer{}
	buf.Write(quicvarint.Append(nil, CapsuleTypeCloseWebTransportSession))

	payload := make([]byte, 4+len(reason))
	binary.BigEndian.PutUint32(payload[:4], code)
	copy(payload[4:], reason)

	buf.Write(quicvarint.Append(nil, uint64(len(payload))))
	buf.Write(payload)

	return w.Write(buf.Bytes())
}
