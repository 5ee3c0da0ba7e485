package h3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/quic-go/quic-go/quicvarint"
	"golang.org/x/sync/errgroup"

	"github.com/webtransport-go/wt3/internal/wtquic"
)

// Settings
const (
	// https://datatracker.ietf.org/doc/html/draft-ietf-quic-http-34
	SETTINGS_MAX_FIELD_SECTION_SIZE = SettingID(0x6)

	// https://datatracker.ietf.org/doc/html/draft-ietf-quic-qpack-21
	SETTINGS_QPACK_MAX_TABLE_CAPACITY = SettingID(0x1)
	SETTINGS_QPACK_BLOCKED_STREAMS    = SettingID(0x7)

	// https://www.rfc-editor.org/rfc/rfc9220.html
	ENABLE_CONNECT_PROTOCOL = SettingID(0x8)

	// https://datatracker.ietf.org/doc/html/draft-ietf-masque-h3-datagram-05#section-9.1 (legacy)
	H3_DATAGRAM_05     = SettingID(0xffd277)
	ENABLE_DATAGRAM    = SettingID(0x33)

	// https://www.ietf.org/archive/id/draft-ietf-webtrans-http3-02.html#section-8.2 (legacy)
	ENABLE_WEBTRANSPORT           = SettingID(0x2b603742)
	WEBTRANSPORT_MAX_SESSIONS_DEPRECATED = SettingID(0x2b603743)

	// Current draft-ietf-webtrans-http3 session cap.
	WEBTRANSPORT_MAX_SESSIONS = SettingID(0xc671706a)
)

// WEBTRANSPORT_ENABLE_DEPRECATED is ENABLE_WEBTRANSPORT under its rule-table name.
const WEBTRANSPORT_ENABLE_DEPRECATED = ENABLE_WEBTRANSPORT

// ENABLE_DATAGRAM_DEPRECATED is H3_DATAGRAM_05 under its rule-table name.
const ENABLE_DATAGRAM_DEPRECATED = H3_DATAGRAM_05

type SettingID uint64

type SettingsMap map[SettingID]uint64

// FromFrame reads a Frame and stores it in the SettingsMap, discarding
// GREASE setting IDs silently.
//
// It returns an error if the frame size is too large or if there are
// duplicate (non-GREASE) settings.
func (s *SettingsMap) FromFrame(f Frame) error {
	if f.Length > MaxFrameSize {
		return ErrFrameTooLarge
	}

	b := bytes.NewReader(f.Data)
	for b.Len() > 0 {
		id, err := quicvarint.Read(b)
		if err != nil {
			return fmt.Errorf("h3: invalid setting id: %w", err)
		}
		val, err := quicvarint.Read(b)
		if err != nil {
			return fmt.Errorf("h3: invalid setting value: %w", err)
		}

		if IsGreaseSettingID(id) {
			continue
		}

		if _, ok := (*s)[SettingID(id)]; ok {
			return fmt.Errorf("h3: duplicate setting: %#x", id)
		}
		(*s)[SettingID(id)] = val
	}
	return nil
}

// ToFrame converts the SettingsMap to a frame.
func (s SettingsMap) ToFrame() Frame {
	f := Frame{Type: FRAME_SETTINGS}

	var l uint64
	for id, val := range s {
		l += uint64(quicvarint.Len(uint64(id)) + quicvarint.Len(val))
	}

	f.Length = l
	b := &bytes.Buffer{}
	for id, val := range s {
		b.Write(quicvarint.Append(nil, uint64(id)))
		b.Write(quicvarint.Append(nil, val))
	}
	f.Data = b.Bytes()

	return f
}

// SupportsWebTransport returns the negotiated WebTransport session cap.
//
// Rules: if neither ENABLE_DATAGRAM nor its legacy alias is 1, WebTransport
// is unsupported (0). Otherwise, WEBTRANSPORT_MAX_SESSIONS if present wins;
// else, if the legacy ENABLE_WEBTRANSPORT is 1, WEBTRANSPORT_MAX_SESSIONS_DEPRECATED
// if present, or 1 otherwise; else 0.
func (s SettingsMap) SupportsWebTransport() uint64 {
	datagramsEnabled := s[ENABLE_DATAGRAM] == 1 || s[ENABLE_DATAGRAM_DEPRECATED] == 1
	if !datagramsEnabled {
		return 0
	}

	if n, ok := s[WEBTRANSPORT_MAX_SESSIONS]; ok {
		return n
	}

	if s[WEBTRANSPORT_ENABLE_DEPRECATED] == 1 {
		if n, ok := s[WEBTRANSPORT_MAX_SESSIONS_DEPRECATED]; ok {
			return n
		}
		return 1
	}

	return 0
}

// String returns a human-readable representation of the setting ID.
func (id SettingID) String() string {
	switch id {
	case SETTINGS_QPACK_MAX_TABLE_CAPACITY:
		return "QPACK_MAX_TABLE_CAPACITY"
	case SETTINGS_MAX_FIELD_SECTION_SIZE:
		return "MAX_FIELD_SECTION_SIZE"
	case SETTINGS_QPACK_BLOCKED_STREAMS:
		return "QPACK_BLOCKED_STREAMS"
	case ENABLE_CONNECT_PROTOCOL:
		return "ENABLE_CONNECT_PROTOCOL"
	case ENABLE_WEBTRANSPORT:
		return "ENABLE_WEBTRANSPORT (deprecated)"
	case WEBTRANSPORT_MAX_SESSIONS_DEPRECATED:
		return "WEBTRANSPORT_MAX_SESSIONS (deprecated)"
	case WEBTRANSPORT_MAX_SESSIONS:
		return "WEBTRANSPORT_MAX_SESSIONS"
	case H3_DATAGRAM_05:
		return "H3_DATAGRAM (deprecated)"
	case ENABLE_DATAGRAM:
		return "ENABLE_DATAGRAM"
	default:
		return fmt.Sprintf("%#x", uint64(id))
	}
}

// DefaultOutboundSettings returns the settings this implementation always
// advertises, including the deprecated equivalents kept for interop.
func DefaultOutboundSettings(maxSessions uint64) SettingsMap {
	return SettingsMap{
		ENABLE_CONNECT_PROTOCOL:               1,
		ENABLE_DATAGRAM:                       1,
		ENABLE_DATAGRAM_DEPRECATED:            1,
		WEBTRANSPORT_MAX_SESSIONS:             maxSessions,
		WEBTRANSPORT_ENABLE_DEPRECATED:        1,
		WEBTRANSPORT_MAX_SESSIONS_DEPRECATED:  maxSessions,
	}
}

// Settings holds the two control streams opened during the HTTP/3 SETTINGS
// exchange (spec §4.2) and the peer's parsed settings. Both streams are kept
// open for the lifetime of the connection; the caller must not close them.
type Settings struct {
	Local  wtquic.SendStream
	Peer   wtquic.ReceiveStream
	Remote SettingsMap
}

// Connect performs the concurrent SETTINGS exchange: it opens the local
// control uni stream and writes our settings while simultaneously accepting
// and parsing the peer's control stream, mirroring a try_join over both
// directions so that neither side blocks waiting for the other to go first.
func Connect(ctx context.Context, conn wtquic.Connection, local SettingsMap) (*Settings, error) {
	s := &Settings{Remote: SettingsMap{}}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stream, err := conn.OpenUniStreamSync(ctx)
		if err != nil {
			return fmt.Errorf("h3: open control stream: %w", err)
		}

		hdr := StreamHeader{Type: STREAM_CONTROL}
		if _, err := hdr.Write(stream); err != nil {
			return fmt.Errorf("h3: write control stream header: %w", err)
		}

		frame := local.ToFrame()
		if _, err := frame.Write(stream); err != nil {
			return fmt.Errorf("h3: write settings frame: %w", err)
		}

		s.Local = stream
		return nil
	})

	g.Go(func() error {
		stream, err := conn.AcceptUniStream(ctx)
		if err != nil {
			return fmt.Errorf("h3: accept control stream: %w", err)
		}

		var hdr StreamHeader
		if err := hdr.Read(stream); err != nil {
			return fmt.Errorf("h3: read control stream header: %w", err)
		}
		if hdr.Type != STREAM_CONTROL {
			return fmt.Errorf("h3: unexpected stream type %#x on control stream", hdr.Type)
		}

		frame, err := ReadSkippingGrease(stream)
		if err != nil {
			return fmt.Errorf("h3: read settings frame: %w", err)
		}
		if frame.Type != FRAME_SETTINGS {
			return fmt.Errorf("h3: unexpected frame type %#x, want SETTINGS", frame.Type)
		}

		if err := s.Remote.FromFrame(frame); err != nil {
			return err
		}

		s.Peer = stream
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s, nil
}
