package webtransport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webtransport-go/wt3/h3"
)

func TestErrorCodeBijectionSample(t *testing.T) {
	samples := []uint32{0, 1, 29, 30, 31, 59, 60, 1000, 0xffffffff, 0x80000000}
	for _, code := range samples {
		h3code := ErrorToHTTP3(code)
		got, err := HTTP3ToError(h3code)
		require.NoError(t, err, "code %d", code)
		require.Equal(t, code, got)
	}
}

func TestErrorCodeBijectionExhaustiveSmallRange(t *testing.T) {
	for code := uint32(0); code < 10_000; code++ {
		h3code := ErrorToHTTP3(code)
		got, err := HTTP3ToError(h3code)
		require.NoError(t, err)
		require.Equal(t, code, got)
	}
}

// No mapped value ever collides with a GREASE frame/stream-type value
// (spec §8 "Error-code bijection").
func TestErrorCodeNeverCollidesWithGrease(t *testing.T) {
	for code := uint32(0); code < 10_000; code++ {
		h3code := ErrorToHTTP3(code)
		require.False(t, h3.IsGreaseFrameType(h3code), "code %d mapped to GREASE value %#x", code, h3code)
	}
}

func TestHTTP3ToErrorRejectsGapValues(t *testing.T) {
	// Block 0 maps codes [0, 30) to [base, base+30); base+30 is the single
	// gap slot (a GREASE value) before block 1's run begins at base+31.
	gapStart := ErrorToHTTP3(0) + errorCodeRun
	_, err := HTTP3ToError(gapStart)
	require.ErrorIs(t, err, ErrInvalidHTTP3ErrorCode)
	require.True(t, h3.IsGreaseFrameType(gapStart))
}

func TestHTTP3ToErrorRejectsBelowBase(t *testing.T) {
	_, err := HTTP3ToError(errorCodeBase - 1)
	require.ErrorIs(t, err, ErrInvalidHTTP3ErrorCode)
}

func TestReservedErrorCodesAreDistinct(t *testing.T) {
	codes := map[uint32]string{
		ErrCodeConnectionDropped: "ErrCodeConnectionDropped",
		ErrCodeSendStreamDropped: "ErrCodeSendStreamDropped",
		ErrCodeRecvStreamDropped: "ErrCodeRecvStreamDropped",
	}
	require.Len(t, codes, 3)
}
