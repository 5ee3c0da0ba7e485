package h3

import (
	"bytes"
	"testing"

	"github.com/quic-go/quic-go/quicvarint"
	"github.com/stretchr/testify/require"
)

func TestSettingsRoundTrip(t *testing.T) {
	s := SettingsMap{
		ENABLE_CONNECT_PROTOCOL:  1,
		ENABLE_DATAGRAM:          1,
		WEBTRANSPORT_MAX_SESSIONS: 3,
	}
	frame := s.ToFrame()
	require.Equal(t, uint64(FRAME_SETTINGS), frame.Type)

	got := SettingsMap{}
	require.NoError(t, got.FromFrame(frame))
	require.Equal(t, s, got)
}

func TestSettingsLegacyIDsRoundTrip(t *testing.T) {
	s := SettingsMap{
		H3_DATAGRAM_05:                        1,
		ENABLE_WEBTRANSPORT:                   1,
		WEBTRANSPORT_MAX_SESSIONS_DEPRECATED:  7,
	}
	frame := s.ToFrame()
	got := SettingsMap{}
	require.NoError(t, got.FromFrame(frame))
	require.Equal(t, s, got)
}

// Scenario 4 from spec §8: a peer sends ENABLE_DATAGRAM=1,
// WEBTRANSPORT_MAX_SESSIONS=3 plus two GREASE settings; the receiver's
// SupportsWebTransport() returns 3 and only the two real settings survive.
func TestSettingsGreaseDiscarded(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.Write(quicvarint.Append(nil, uint64(ENABLE_DATAGRAM)))
	buf.Write(quicvarint.Append(nil, uint64(1)))
	buf.Write(quicvarint.Append(nil, uint64(WEBTRANSPORT_MAX_SESSIONS)))
	buf.Write(quicvarint.Append(nil, uint64(3)))
	buf.Write(quicvarint.Append(nil, uint64(0x40))) // GREASE (0x21 + 0x1f*1)
	buf.Write(quicvarint.Append(nil, uint64(1)))
	buf.Write(quicvarint.Append(nil, uint64(0x21))) // GREASE
	buf.Write(quicvarint.Append(nil, uint64(0xff)))

	frame := Frame{Type: FRAME_SETTINGS, Length: uint64(buf.Len()), Data: buf.Bytes()}

	got := SettingsMap{}
	require.NoError(t, got.FromFrame(frame))

	require.Equal(t, uint64(3), got.SupportsWebTransport())
	_, hasGrease := got[SettingID(0x21)]
	require.False(t, hasGrease)
	require.Len(t, got, 2) // ENABLE_DATAGRAM, WEBTRANSPORT_MAX_SESSIONS
}

func TestSupportsWebTransportRules(t *testing.T) {
	cases := []struct {
		name string
		s    SettingsMap
		want uint64
	}{
		{"no datagram support", SettingsMap{}, 0},
		{
			"datagram only, no cap",
			SettingsMap{ENABLE_DATAGRAM: 1},
			0,
		},
		{
			"datagram + explicit cap",
			SettingsMap{ENABLE_DATAGRAM: 1, WEBTRANSPORT_MAX_SESSIONS: 5},
			5,
		},
		{
			"legacy datagram alias + legacy enable, no cap",
			SettingsMap{H3_DATAGRAM_05: 1, ENABLE_WEBTRANSPORT: 1},
			1,
		},
		{
			"legacy datagram alias + legacy enable + legacy cap",
			SettingsMap{H3_DATAGRAM_05: 1, ENABLE_WEBTRANSPORT: 1, WEBTRANSPORT_MAX_SESSIONS_DEPRECATED: 9},
			9,
		},
		{
			"datagram enabled but neither enable flag set",
			SettingsMap{ENABLE_DATAGRAM: 1, WEBTRANSPORT_MAX_SESSIONS_DEPRECATED: 9},
			0,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, c.s.SupportsWebTransport())
		})
	}
}

func TestSettingsFrameTooLarge(t *testing.T) {
	got := SettingsMap{}
	err := got.FromFrame(Frame{Type: FRAME_SETTINGS, Length: MaxFrameSize + 1})
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDefaultOutboundSettings(t *testing.T) {
	s := DefaultOutboundSettings(4)
	require.Equal(t, uint64(4), s.SupportsWebTransport())
	require.Equal(t, uint64(1), s[ENABLE_CONNECT_PROTOCOL])
}
