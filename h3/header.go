package h3

import (
	"bytes"

	"github.com/quic-go/qpack"
)

// EncodeHeaders encodes fields as a QPACK-encoded header block using only
// literal representations (no dynamic table references), matching the
// CONNECT/response encoding this package does on every stream — the peer
// never needs the encoder/decoder streams to resolve these blocks.
func EncodeHeaders(fields []qpack.HeaderField) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := qpack.NewEncoder(buf)
	for _, f := range fields {
		if err := enc.WriteField(f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeHeaders decodes a literal-only QPACK header block, preserving
// field order and duplicate names as received.
func DecodeHeaders(data []byte) ([]qpack.HeaderField, error) {
	decoder := qpack.NewDecoder(nil)
	return decoder.DecodeFull(data)
}

// headerValue returns the value of the first field named name, and whether
// it was present.
func headerValue(fields []qpack.HeaderField, name string) (string, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}
