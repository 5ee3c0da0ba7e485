package h3

import (
	"crypto/tls"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/quic-go/qpack"
)

// ErrPathAuthorityMethodEmpty is returned when the pseudo-headers required
// of an extended CONNECT request are missing or the method isn't CONNECT.
var ErrPathAuthorityMethodEmpty = errors.New(":authority must not be empty and :method must be CONNECT")

// RequestFromHeaders returns a new http.Request from the headers of an
// extended CONNECT request (the only request shape this handshake ever
// sees), along with the negotiated :protocol pseudo-header value.
func RequestFromHeaders(headers []qpack.HeaderField) (request *http.Request,
	protocol string, err error) {

	var path, authority, method string
	httpHeaders := http.Header{}

	for _, h := range headers {
		switch h.Name {
		case ":path":
			path = h.Value
		case ":method":
			method = h.Value
		case ":authority":
			authority = h.Value
		case ":protocol":
			protocol = h.Value
		default:
			// If the header is not a pseudo header, it is an HTTP header
			if !h.IsPseudo() {
				httpHeaders.Add(h.Name, h.Value)
			}
		}
	}

	// Concatenate Cookie headers, see
	// https://tools.ietf.org/html/rfc6265#section-5.4
	if len(httpHeaders["Cookie"]) > 0 {
		httpHeaders.Set("Cookie", strings.Join(httpHeaders["Cookie"], "; "))
	}

	if method != http.MethodConnect || len(authority) == 0 {
		err = ErrPathAuthorityMethodEmpty
		return
	}

	u, err := url.ParseRequestURI("https://" + authority + path)
	if err != nil {
		return
	}

	if len(protocol) == 0 {
		protocol = "h3"
	}

	return &http.Request{
		Method:     method,
		URL:        u,
		Proto:      "HTTP/3",
		ProtoMajor: 3,
		ProtoMinor: 0,
		Header:     httpHeaders,
		Host:       authority,
		RequestURI: path,
		TLS:        &tls.ConnectionState{},
	}, protocol, nil
}
