package webtransport

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webtransport-go/wt3/h3"
	"github.com/webtransport-go/wt3/internal/wtlog"
)

func TestMuxRoutesUniStreamToSession(t *testing.T) {
	server, client := newFakeConnPair()
	mux := newConnMux(server, wtlog.NewNop(), nil)

	connA, _ := newFakeStreamPair(1)
	sess := newSession(context.Background(), server, connA, 1, "", mux, wtlog.NewNop())
	mux.register(1, sess)

	clientStream, err := client.OpenUniStream()
	require.NoError(t, err)
	hdr := h3.StreamHeader{Type: h3.STREAM_WEBTRANSPORT_UNI_STREAM, ID: 1}
	writeErr := make(chan error, 1)
	go func() { _, err := hdr.Write(clientStream); writeErr <- err }()

	serverStream, err := server.AcceptUniStream(context.Background())
	require.NoError(t, err)
	mux.handleUniStream(serverStream)
	require.NoError(t, <-writeErr)

	got, err := sess.AcceptUniStream(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
}

// A WEBTRANSPORT uni stream naming a session ID the mux does not know is
// stopped (STOP_SENDING via CancelRead), never delivered anywhere.
func TestMuxResetsUniStreamForUnknownSession(t *testing.T) {
	server, client := newFakeConnPair()
	mux := newConnMux(server, wtlog.NewNop(), nil)

	clientStream, err := client.OpenUniStream()
	require.NoError(t, err)
	hdr := h3.StreamHeader{Type: h3.STREAM_WEBTRANSPORT_UNI_STREAM, ID: 99}
	writeErr := make(chan error, 1)
	go func() { _, err := hdr.Write(clientStream); writeErr <- err }()

	serverStream, err := server.AcceptUniStream(context.Background())
	require.NoError(t, err)
	fs := serverStream.(*fakeReceiveStream)
	mux.handleUniStream(serverStream)
	require.NoError(t, <-writeErr)

	require.True(t, fs.wasReadCanceled())
	_, ok := mux.session(99)
	require.False(t, ok)
}

func TestMuxRoutesBiStreamToSession(t *testing.T) {
	server, client := newFakeConnPair()
	mux := newConnMux(server, wtlog.NewNop(), nil)

	connA, _ := newFakeStreamPair(1)
	sess := newSession(context.Background(), server, connA, 1, "", mux, wtlog.NewNop())
	mux.register(1, sess)

	clientStream, err := client.OpenStream()
	require.NoError(t, err)
	f := h3.Frame{Type: h3.FRAME_WEBTRANSPORT_STREAM, SessionID: 1}
	writeErr := make(chan error, 1)
	go func() { _, err := f.Write(clientStream); writeErr <- err }()

	serverStream, err := server.AcceptStream(context.Background())
	require.NoError(t, err)
	mux.handleBiStream(context.Background(), serverStream)
	require.NoError(t, <-writeErr)

	got, err := sess.AcceptStream(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestMuxRoutesHeadersFrameToOnRequest(t *testing.T) {
	server, client := newFakeConnPair()

	reqCh := make(chan *Request, 1)
	mux := newConnMux(server, wtlog.NewNop(), func(r *Request) { reqCh <- r })

	clientStream, err := client.OpenStream()
	require.NoError(t, err)

	u, _ := url.Parse("https://example.com/chat")
	connReq := &h3.ConnectRequest{URL: u, Protocols: []string{"chat"}}
	writeErr := make(chan error, 1)
	go func() { _, err := connReq.Write(clientStream); writeErr <- err }()

	serverStream, err := server.AcceptStream(context.Background())
	require.NoError(t, err)
	mux.handleBiStream(context.Background(), serverStream)
	require.NoError(t, <-writeErr)

	select {
	case req := <-reqCh:
		require.Equal(t, "example.com", req.URL.Host)
		require.Equal(t, "/chat", req.URL.Path)
		require.Equal(t, []string{"chat"}, req.Protocols)
	case <-time.After(time.Second):
		t.Fatal("onRequest was never invoked")
	}
}

func TestMuxRoutesDatagramToSession(t *testing.T) {
	server, client := newFakeConnPair()
	mux := newConnMux(server, wtlog.NewNop(), nil)

	connA, _ := newFakeStreamPair(1)
	sess := newSession(context.Background(), server, connA, 1, "", mux, wtlog.NewNop())
	mux.register(1, sess)

	go mux.datagramLoop(context.Background())

	clientSess := &Session{conn: client, datagramHeader: sess.datagramHeader}
	require.NoError(t, clientSess.SendDatagram([]byte("hello")))

	got, err := sess.ReceiveDatagram(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}
