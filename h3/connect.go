package h3

import (
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/quic-go/qpack"
)

// Validation errors produced while decoding a CONNECT request or response
// (spec §4.3).
var (
	ErrWrongScheme    = fmt.Errorf("h3: :scheme must be https")
	ErrWrongMethod    = fmt.Errorf("h3: :method must be CONNECT")
	ErrWrongProtocol  = fmt.Errorf("h3: :protocol must be webtransport")
	ErrWrongAuthority = fmt.Errorf("h3: missing :authority")
	ErrWrongPath      = fmt.Errorf("h3: missing :path")
	ErrInvalidURL     = fmt.Errorf("h3: could not reconstruct URL")
	ErrWrongStatus    = fmt.Errorf("h3: missing :status")
	ErrInvalidStatus  = fmt.Errorf("h3: :status is not a valid 2xx status")
)

// SecWebTransportHTTP3Draft is the fixed response header emitted for
// interop with drafts that still look for it.
const SecWebTransportHTTP3Draft = "draft02"

// ConnectRequest is the extended CONNECT request that establishes a
// WebTransport session (spec §4.3).
type ConnectRequest struct {
	URL       *url.URL
	Protocols []string
	// Header carries any non-pseudo header fields other than
	// wt-available-protocols, notably "origin".
	Header map[string]string
}

// Encode produces the HEADERS frame carrying the request.
func (r *ConnectRequest) Encode() (Frame, error) {
	fields := []qpack.HeaderField{
		{Name: ":method", Value: "CONNECT"},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: r.URL.Host},
		{Name: ":path", Value: requestPath(r.URL)},
		{Name: ":protocol", Value: "webtransport"},
	}

	if len(r.Protocols) > 0 {
		v, err := EncodeAvailableProtocols(r.Protocols)
		if err != nil {
			return Frame{}, err
		}
		fields = append(fields, qpack.HeaderField{Name: "wt-available-protocols", Value: v})
	}

	data, err := EncodeHeaders(fields)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FRAME_HEADERS, Length: uint64(len(data)), Data: data}, nil
}

// Write writes the encoded request to w.
func (r *ConnectRequest) Write(w io.Writer) (int, error) {
	f, err := r.Encode()
	if err != nil {
		return 0, err
	}
	return f.Write(w)
}

// Decode parses a ConnectRequest out of a HEADERS frame.
func (r *ConnectRequest) Decode(f Frame) error {
	if f.Type != FRAME_HEADERS {
		return fmt.Errorf("h3: unexpected frame type %#x, want HEADERS", f.Type)
	}

	fields, err := DecodeHeaders(f.Data)
	if err != nil {
		return err
	}

	return r.DecodeFields(fields)
}

// DecodeFields parses a ConnectRequest out of an already-decoded QPACK
// header field list, so callers that also need the raw fields (for
// RequestFromHeaders, say) only decode the header block once.
func (r *ConnectRequest) DecodeFields(fields []qpack.HeaderField) error {
	scheme, _ := headerValue(fields, ":scheme")
	if scheme != "https" {
		return ErrWrongScheme
	}

	method, _ := headerValue(fields, ":method")
	if method != "CONNECT" {
		return ErrWrongMethod
	}

	protocol, _ := headerValue(fields, ":protocol")
	if protocol != "webtransport" {
		return ErrWrongProtocol
	}

	authority, ok := headerValue(fields, ":authority")
	if !ok || authority == "" {
		return ErrWrongAuthority
	}

	path, ok := headerValue(fields, ":path")
	if !ok || path == "" {
		return ErrWrongPath
	}

	u, err := url.Parse("https://" + authority + path)
	if err != nil {
		return ErrInvalidURL
	}
	r.URL = u

	if v, ok := headerValue(fields, "wt-available-protocols"); ok {
		r.Protocols = DecodeAvailableProtocols(v)
	}

	for _, f := range fields {
		if len(f.Name) == 0 || f.Name[0] == ':' || f.Name == "wt-available-protocols" {
			continue
		}
		if r.Header == nil {
			r.Header = make(map[string]string)
		}
		r.Header[f.Name] = f.Value
	}

	return nil
}

// Read reads and decodes a ConnectRequest from r, skipping any GREASE
// frames that precede the HEADERS frame.
func (r *ConnectRequest) Read(rd io.Reader) error {
	f, err := ReadSkippingGrease(rd)
	if err != nil {
		return err
	}
	return r.Decode(f)
}

func requestPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

// ConnectResponse is the extended CONNECT response (spec §4.3).
type ConnectResponse struct {
	Status   int
	Protocol string
}

// Encode produces the HEADERS frame carrying the response.
func (r *ConnectResponse) Encode() (Frame, error) {
	fields := []qpack.HeaderField{
		{Name: ":status", Value: strconv.Itoa(r.Status)},
		{Name: "sec-webtransport-http3-draft", Value: SecWebTransportHTTP3Draft},
	}

	if r.Protocol != "" {
		v, err := EncodeProtocol(r.Protocol)
		if err != nil {
			return Frame{}, err
		}
		fields = append(fields, qpack.HeaderField{Name: "wt-protocol", Value: v})
	}

	data, err := EncodeHeaders(fields)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FRAME_HEADERS, Length: uint64(len(data)), Data: data}, nil
}

// Write writes the encoded response to w.
func (r *ConnectResponse) Write(w io.Writer) (int, error) {
	f, err := r.Encode()
	if err != nil {
		return 0, err
	}
	return f.Write(w)
}

// Decode parses a ConnectResponse out of a HEADERS frame.
func (r *ConnectResponse) Decode(f Frame) error {
	if f.Type != FRAME_HEADERS {
		return fmt.Errorf("h3: unexpected frame type %#x, want HEADERS", f.Type)
	}

	fields, err := DecodeHeaders(f.Data)
	if err != nil {
		return err
	}

	statusStr, ok := headerValue(fields, ":status")
	if !ok {
		return ErrWrongStatus
	}
	status, err := strconv.Atoi(statusStr)
	if err != nil {
		return ErrInvalidStatus
	}
	r.Status = status
	if status < 200 || status >= 300 {
		return ErrInvalidStatus
	}

	if v, ok := headerValue(fields, "wt-protocol"); ok {
		if p, ok := DecodeProtocol(v); ok {
			r.Protocol = p
		}
	}

	return nil
}

// Read reads and decodes a ConnectResponse from r, skipping any GREASE
// frames that precede the HEADERS frame.
func (r *ConnectResponse) Read(rd io.Reader) error {
	f, err := ReadSkippingGrease(rd)
	if err != nil {
		return err
	}
	return r.Decode(f)
}
