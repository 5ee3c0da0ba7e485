package h3

// GREASE values follow the pattern first + step*N (RFC 9114 §7.2.8 / RFC
// 9297 §5.4). Frame types and stream types share first=0x21, step=0x1f;
// capsule types use first=0x17, step=0x29; setting IDs reuse the frame/
// stream pattern.

const (
	greaseFrameFirst = 0x21
	greaseFrameStep  = 0x1f

	greaseCapsuleFirst = 0x17
	greaseCapsuleStep  = 0x29
)

// IsGreaseValue reports whether val is a member of the arithmetic
// progression first + step*N for some N >= 0.
func IsGreaseValue(val, first, step uint64) bool {
	if val < first {
		return false
	}
	return (val-first)%step == 0
}

// IsGreaseFrameType reports whether t is a GREASE frame or stream type
// (0x21 + 0x1f*N). Used for both Frame.Type and StreamType.
func IsGreaseFrameType(t uint64) bool {
	return IsGreaseValue(t, greaseFrameFirst, greaseFrameStep)
}

// IsGreaseSettingID reports whether a setting ID is a GREASE value. The
// setting ID space reuses the same arithmetic progression as frame types.
func IsGreaseSettingID(id uint64) bool {
	return IsGreaseValue(id, greaseFrameFirst, greaseFrameStep)
}

// IsGreaseCapsuleType reports whether a capsule type is GREASE
// (0x17 + 0x29*N, RFC 9297 §5.4).
func IsGreaseCapsuleType(t uint64) bool {
	return IsGreaseValue(t, greaseCapsuleFirst, greaseCapsuleStep)
}

// GreaseCapsuleType returns the capsule type for GREASE index n.
func GreaseCapsuleType(n uint64) uint64 {
	return greaseCapsuleFirst + greaseCapsuleStep*n
}

// GreaseCapsuleIndex recovers n from a GREASE capsule type. Callers must
// first check IsGreaseCapsuleType.
func GreaseCapsuleIndex(t uint64) uint64 {
	return (t - greaseCapsuleFirst) / greaseCapsuleStep
}
