package webtransport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"
)

// fakeStream backs both halves of a QUIC stream with a pair of io.Pipes,
// one per direction, so two fakeStreams created from the same pipePair
// behave like the two ends of a real bidirectional stream. Unlike a real
// QUIC stream there is no send buffer: a Write blocks until the other end
// has read all of its bytes.
type fakeStream struct {
	id     quic.StreamID
	reader *io.PipeReader
	writer *io.PipeWriter
	ctx    context.Context

	mu            sync.Mutex
	readCanceled  bool
	writeCanceled bool
}

type pipePair struct {
	ar *io.PipeReader
	aw *io.PipeWriter
	br *io.PipeReader
	bw *io.PipeWriter
}

func newPipePair() *pipePair {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	return &pipePair{ar: ar, aw: aw, br: br, bw: bw}
}

func newFakeStreamPair(id quic.StreamID) (a, b *fakeStream) {
	pp := newPipePair()
	a = &fakeStream{id: id, reader: pp.ar, writer: pp.aw, ctx: context.Background()}
	b = &fakeStream{id: id, reader: pp.br, writer: pp.bw, ctx: context.Background()}
	return a, b
}

func (s *fakeStream) StreamID() quic.StreamID { return s.id }

func (s *fakeStream) Read(p []byte) (int, error) { return s.reader.Read(p) }

func (s *fakeStream) CancelRead(code quic.StreamErrorCode) {
	s.mu.Lock()
	s.readCanceled = true
	s.mu.Unlock()
	s.reader.CloseWithError(fmt.Errorf("stream reset: code %d", code))
}

func (s *fakeStream) SetReadDeadline(time.Time) error { return nil }

func (s *fakeStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	canceled := s.writeCanceled
	s.mu.Unlock()
	if canceled {
		return 0, fmt.Errorf("stream write canceled")
	}
	return s.writer.Write(p)
}

func (s *fakeStream) Close() error { return s.writer.Close() }

func (s *fakeStream) CancelWrite(code quic.StreamErrorCode) {
	s.mu.Lock()
	s.writeCanceled = true
	s.mu.Unlock()
	s.writer.CloseWithError(fmt.Errorf("stream canceled: code %d", code))
}

func (s *fakeStream) Context() context.Context { return s.ctx }

func (s *fakeStream) SetWriteDeadline(time.Time) error { return nil }

func (s *fakeStream) SetDeadline(time.Time) error { return nil }

func (s *fakeStream) wasReadCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readCanceled
}

var _ quic.Stream = (*fakeStream)(nil)

// fakeSendStream and fakeReceiveStream stand in for quic-go's
// unidirectional interfaces: each wraps a fakeStream that has only its
// writer (send) or only its reader (receive) pipe set.
type fakeSendStream struct{ *fakeStream }
type fakeReceiveStream struct{ *fakeStream }

var _ quic.SendStream = (*fakeSendStream)(nil)
var _ quic.ReceiveStream = (*fakeReceiveStream)(nil)

// fakeConn is one end of a simulated QUIC connection; fakeConn pairs are
// wired together so that OpenStream/OpenUniStream/SendDatagram on one end
// surface on the other end's Accept*/ReceiveDatagram.
type fakeConn struct {
	ctx    context.Context
	cancel context.CancelFunc
	peer   *fakeConn
	nextID *uint64

	acceptStreamCh chan quic.Stream
	acceptUniCh    chan quic.ReceiveStream
	datagramCh     chan []byte
}

func newFakeConnPair() (a, b *fakeConn) {
	counter := new(uint64)
	actxA, cancelA := context.WithCancel(context.Background())
	actxB, cancelB := context.WithCancel(context.Background())
	a = &fakeConn{
		ctx: actxA, cancel: cancelA, nextID: counter,
		acceptStreamCh: make(chan quic.Stream, 16),
		acceptUniCh:    make(chan quic.ReceiveStream, 16),
		datagramCh:     make(chan []byte, 16),
	}
	b = &fakeConn{
		ctx: actxB, cancel: cancelB, nextID: counter,
		acceptStreamCh: make(chan quic.Stream, 16),
		acceptUniCh:    make(chan quic.ReceiveStream, 16),
		datagramCh:     make(chan []byte, 16),
	}
	a.peer = b
	b.peer = a
	return a, b
}

func (c *fakeConn) allocID() quic.StreamID {
	return quic.StreamID(atomic.AddUint64(c.nextID, 1))
}

func (c *fakeConn) OpenStream() (quic.Stream, error) {
	id := c.allocID()
	local, remote := newFakeStreamPair(id)
	go func() { c.peer.acceptStreamCh <- remote }()
	return local, nil
}

func (c *fakeConn) OpenStreamSync(context.Context) (quic.Stream, error) { return c.OpenStream() }

func (c *fakeConn) OpenUniStream() (quic.SendStream, error) {
	id := c.allocID()
	r, w := io.Pipe()
	local := &fakeSendStream{&fakeStream{id: id, writer: w, ctx: context.Background()}}
	remote := &fakeReceiveStream{&fakeStream{id: id, reader: r, ctx: context.Background()}}
	go func() { c.peer.acceptUniCh <- remote }()
	return local, nil
}

func (c *fakeConn) OpenUniStreamSync(context.Context) (quic.SendStream, error) {
	return c.OpenUniStream()
}

func (c *fakeConn) AcceptStream(ctx context.Context) (quic.Stream, error) {
	select {
	case s := <-c.acceptStreamCh:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

func (c *fakeConn) AcceptUniStream(ctx context.Context) (quic.ReceiveStream, error) {
	select {
	case s := <-c.acceptUniCh:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

func (c *fakeConn) LocalAddr() net.Addr  { return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (c *fakeConn) RemoteAddr() net.Addr { return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func (c *fakeConn) CloseWithError(quic.ApplicationErrorCode, string) error {
	c.cancel()
	return nil
}

func (c *fakeConn) Context() context.Context                { return c.ctx }
func (c *fakeConn) ConnectionState() quic.ConnectionState    { return quic.ConnectionState{} }
func (c *fakeConn) SendDatagram(b []byte) error {
	cp := append([]byte(nil), b...)
	go func() { c.peer.datagramCh <- cp }()
	return nil
}

func (c *fakeConn) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	select {
	case m := <-c.datagramCh:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

var _ quic.Connection = (*fakeConn)(nil)
