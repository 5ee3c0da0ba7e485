package webtransport

import "fmt"

// Base offset of the 32-bit WebTransport error code <-> 62-bit HTTP/3
// error code bijection (spec §3 "Error code space").
//
// errorCodeBase sits exactly one past a GREASE value (0x21+0x1f*N): mod
// errorCodeBlock (31), it lands on the GREASE residue plus one, so walking
// forward from it one code at a time and skipping every 31st slot never
// lands on GREASE. Concretely, for
// code in [0, 2^32), http3 = base + code + floor(code/30): every run of 30
// consecutive mapped values is followed by a one-codepoint gap that is
// exactly the next GREASE value, never a mapped one. HTTP3ToError rejects
// any input landing in a gap.
const (
	errorCodeBase = 0x52e4a40fa8db
	errorCodeRun  = 30
)

// errorCodeBlock is errorCodeRun + 1: the period of the mapping after
// which the run/gap pattern repeats (30 mapped codepoints, 1 GREASE gap).
const errorCodeBlock = errorCodeRun + 1

// ErrInvalidHTTP3ErrorCode is returned by HTTP3ToError for a value that
// does not correspond to any WebTransport error code (it falls in one of
// the bijection's gaps, which includes every GREASE value).
var ErrInvalidHTTP3ErrorCode = fmt.Errorf("wt3: value does not map to a WebTransport error code")

// ErrorToHTTP3 maps a 32-bit WebTransport error code to its 62-bit HTTP/3
// error code.
func ErrorToHTTP3(code uint32) uint64 {
	c := uint64(code)
	return errorCodeBase + c + c/errorCodeRun
}

// HTTP3ToError inverts ErrorToHTTP3. It returns ErrInvalidHTTP3ErrorCode if
// http3Code does not correspond to any WebTransport error code.
func HTTP3ToError(http3Code uint64) (uint32, error) {
	if http3Code < errorCodeBase {
		return 0, ErrInvalidHTTP3ErrorCode
	}

	shifted := http3Code - errorCodeBase
	n := shifted / errorCodeBlock
	r := shifted % errorCodeBlock
	if r == errorCodeRun {
		return 0, ErrInvalidHTTP3ErrorCode
	}

	code := n*errorCodeRun + r
	if code > 0xffffffff {
		return 0, ErrInvalidHTTP3ErrorCode
	}
	return uint32(code), nil
}

// Reserved error codes used by the session and stream wrappers when a
// handle is dropped without an explicit close/reset/stop call, or when the
// capsule watcher encounters a fatal decode error (spec §4.4).
const (
	// ErrCodeConnectionDropped is used to close the QUIC connection when
	// every session handle is dropped without an explicit Close.
	ErrCodeConnectionDropped uint32 = 0x636e6e6f

	// ErrCodeSendStreamDropped is used to reset a SendStream dropped
	// without Close or Reset.
	ErrCodeSendStreamDropped uint32 = 0x73656e64

	// ErrCodeRecvStreamDropped is used to stop a ReceiveStream dropped
	// without Stop, when the peer has not already sent FIN.
	ErrCodeRecvStreamDropped uint32 = 0x6563766464726f70 & 0xffffffff

	// ErrCodeCapsuleError closes the session when the capsule watcher
	// encounters a decode error it cannot attribute to the peer.
	ErrCodeCapsuleError uint32 = 500
)
