package h3

import (
	"fmt"

	"github.com/dunglas/httpsfv"
)

// ErrInvalidProtocol is returned when a protocol name cannot be encoded as
// an RFC 8941 String (non-ASCII or control bytes).
var ErrInvalidProtocol = fmt.Errorf("h3: protocol name is not a valid Structured Field String")

func isValidSFString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// EncodeAvailableProtocols encodes protocols as the wt-available-protocols
// header value: an RFC 8941 List of Strings.
func EncodeAvailableProtocols(protocols []string) (string, error) {
	list := httpsfv.NewList()
	for _, p := range protocols {
		if !isValidSFString(p) {
			return "", ErrInvalidProtocol
		}
		list = append(list, httpsfv.NewItem(p))
	}
	return httpsfv.Marshal(list)
}

// DecodeAvailableProtocols decodes a wt-available-protocols header value.
//
// Parse failure, or the presence of any non-String member, is non-fatal:
// it yields an empty protocol list rather than an error, matching a peer
// that simply offers no usable subprotocol negotiation.
func DecodeAvailableProtocols(value string) []string {
	list, err := httpsfv.UnmarshalList([]string{value})
	if err != nil {
		return nil
	}

	protocols := make([]string, 0, len(list))
	for _, member := range list {
		item, ok := member.(*httpsfv.Item)
		if !ok {
			return nil
		}
		s, ok := item.Value.(string)
		if !ok {
			return nil
		}
		protocols = append(protocols, s)
	}
	return protocols
}

// EncodeProtocol encodes the wt-protocol header value: a single String Item.
func EncodeProtocol(protocol string) (string, error) {
	if !isValidSFString(protocol) {
		return "", ErrInvalidProtocol
	}
	return httpsfv.Marshal(httpsfv.NewItem(protocol))
}

// DecodeProtocol decodes a wt-protocol header value. Parse failure or a
// non-String item yields "", false.
func DecodeProtocol(value string) (string, bool) {
	item, err := httpsfv.UnmarshalItem([]string{value})
	if err != nil {
		return "", false
	}
	s, ok := item.Value.(string)
	if !ok {
		return "", false
	}
	return s, true
}
