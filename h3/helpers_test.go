package h3

import "github.com/quic-go/qpack"

type kv struct{ name, value string }

// headerFields builds a []qpack.HeaderField from a short list of
// name/value pairs, for tests that want to exercise ConnectRequest's
// field-validation logic without going through the full QPACK
// encode/decode round trip.
func headerFields(pairs ...kv) []qpack.HeaderField {
	fields := make([]qpack.HeaderField, 0, len(pairs))
	for _, p := range pairs {
		fields = append(fields, qpack.HeaderField{Name: p.name, Value: p.value})
	}
	return fields
}
