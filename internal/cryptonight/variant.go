package cryptonight

// Variant selects a CryptoNight algorithm revision. Each adds tweaks on top
// of the shared base pipeline described in §4.1.
type Variant int

const (
	// V6 is the original CryptoNight algorithm with no tweaks.
	V6 Variant = iota
	// V7 adds the monero write-tweak and XORs a session constant into the
	// read-modify-write step.
	V7
	// V8 adds the monero write-tweak and the three-slot scratchpad
	// shuffle, in place of the V7 session-constant XOR.
	V8
)

func (v Variant) String() string {
	switch v {
	case V6:
		return "v6"
	case V7:
		return "v7"
	case V8:
		return "v8"
	default:
		return "unknown"
	}
}

// ParseVariant accepts the case-insensitive names used in configuration
// files ("v6", "v7", "v8").
func ParseVariant(s string) (Variant, bool) {
	switch s {
	case "v6", "V6":
		return V6, true
	case "v7", "V7":
		return V7, true
	case "v8", "V8":
		return V8, true
	default:
		return 0, false
	}
}
