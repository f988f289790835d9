package cryptonight

import (
	"hash"

	"github.com/aead/skein"
	"github.com/dchest/blake256"

	"ekyu.moe/cryptonight/groestl"
	"ekyu.moe/cryptonight/jh"
)

// finalDigest is Phase 5's digest selection: the low two bits of the
// finalized Keccak state's first byte choose one of four 256-bit digest
// functions, each consuming the entire 200-byte state. §4.1, §6.
func finalDigest(state [200]byte) [32]byte {
	var h hash.Hash
	switch state[0] & 0x03 {
	case 0x00:
		h = blake256.New()
	case 0x01:
		h = groestl.New256()
	case 0x02:
		h = jh.New256()
	default:
		h = skein.New256(nil)
	}
	h.Write(state[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
