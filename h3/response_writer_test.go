package h3

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/stretchr/testify/require"
)

// fakeConnectStream backs a quic.Stream with an in-memory buffer, just
// enough to let ResponseWriter write frames somewhere inspectable.
type fakeConnectStream struct {
	bytes.Buffer
}

func (fakeConnectStream) StreamID() quic.StreamID          { return 0 }
func (fakeConnectStream) CancelRead(quic.StreamErrorCode)  {}
func (fakeConnectStream) CancelWrite(quic.StreamErrorCode) {}
func (fakeConnectStream) SetReadDeadline(time.Time) error  { return nil }
func (fakeConnectStream) SetWriteDeadline(time.Time) error { return nil }
func (fakeConnectStream) SetDeadline(time.Time) error      { return nil }
func (fakeConnectStream) Context() context.Context         { return context.Background() }
func (*fakeConnectStream) Close() error                    { return nil }

var _ quic.Stream = (*fakeConnectStream)(nil)

func TestResponseWriterWritesHeadersFrame(t *testing.T) {
	stream := &fakeConnectStream{}
	rw := NewResponseWriter(stream)
	rw.Header().Set("sec-webtransport-http3-draft", "draft02")
	rw.WriteHeader(http.StatusOK)
	rw.Flush()

	var frame Frame
	require.NoError(t, frame.Read(&stream.Buffer))
	require.Equal(t, uint64(FRAME_HEADERS), frame.Type)

	fields, err := DecodeHeaders(frame.Data)
	require.NoError(t, err)

	var status, draft string
	for _, f := range fields {
		switch f.Name {
		case ":status":
			status = f.Value
		case "sec-webtransport-http3-draft":
			draft = f.Value
		}
	}
	require.Equal(t, "200", status)
	require.Equal(t, "draft02", draft)
}

func TestResponseWriterWriteImpliesOKStatus(t *testing.T) {
	stream := &fakeConnectStream{}
	rw := NewResponseWriter(stream)
	_, err := rw.Write([]byte("hello"))
	require.NoError(t, err)
	rw.Flush()

	var headers Frame
	require.NoError(t, headers.Read(&stream.Buffer))
	require.Equal(t, uint64(FRAME_HEADERS), headers.Type)

	var data Frame
	require.NoError(t, data.Read(&stream.Buffer))
	require.Equal(t, uint64(FRAME_DATA), data.Type)
	require.Equal(t, []byte("hello"), data.Data)
}

func TestResponseWriterRejectsBodyFor204(t *testing.T) {
	stream := &fakeConnectStream{}
	rw := NewResponseWriter(stream)
	rw.WriteHeader(http.StatusNoContent)
	_, err := rw.Write([]byte("x"))
	require.ErrorIs(t, err, http.ErrBodyNotAllowed)
}
