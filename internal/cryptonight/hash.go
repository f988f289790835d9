package cryptonight

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const iterations = 524_288

// Hash runs the full CryptoNight pipeline over input and returns the
// resulting 256-bit digest as a 64-character lowercase hex string. scratchpad
// is caller-owned working memory; its contents on entry are ignored and
// fully overwritten, so callers hashing repeatedly should reuse the same
// Scratchpad across calls instead of allocating a new one each time.
//
// Variants V7 and V8 read a per-transaction tweak constant out of input at a
// fixed offset (see monero_const in Design Notes); input shorter than 43
// bytes under those variants is an error instead of a panic.
func Hash(scratchpad *Scratchpad, input []byte, aes AES, variant Variant) (string, error) {
	if variant != V6 && len(input) < 43 {
		return "", fmt.Errorf("cryptonight: variant %s requires at least 43 bytes of input, got %d", variant, len(input))
	}

	state := keccakState(input)
	initScratchpad(scratchpad, &state, aes)

	al := readLane(state[0:16])
	ar := readLane(state[32:48])
	a := xorLane(al, ar)

	bl := readLane(state[16:32])
	br := readLane(state[48:64])
	b := xorLane(bl, br)

	var ax0, bx0, bx1 Lane
	if variant == V8 {
		cl := readLane(state[64:80])
		cr := readLane(state[80:96])
		ax0 = a
		bx0 = b
		bx1 = xorLane(cl, cr)
	}

	var moneroConst uint64
	if variant != V6 {
		ip1 := binary.LittleEndian.Uint64(input[35:43])
		ip2 := binary.LittleEndian.Uint64(state[192:200])
		moneroConst = ip1 ^ ip2
	}

	for i := 0; i < iterations; i++ {
		ix := scratchpadIndex(a.Lo)
		aesResult := aes.Round(scratchpad.lanes[ix], a)

		if variant == V8 {
			shuffle(scratchpad, a.Lo, ax0, bx0, bx1)
		}

		if variant == V6 {
			scratchpad.lanes[ix] = xorLane(b, aesResult)
		} else {
			scratchpad.lanes[ix] = tweak(xorLane(b, aesResult))
		}

		ix = scratchpadIndex(aesResult.Lo)
		mem := scratchpad.lanes[ix]
		addR := addLane(a, mul128(aesResult.Lo, mem.Lo))
		if variant == V7 {
			addR.Hi ^= moneroConst
		}
		scratchpad.lanes[ix] = addR

		a = xorLane(addR, mem)
		b = aesResult
	}

	finalResult := finaliseScratchpad(scratchpad, &state, aes)
	for k := 0; k < 8; k++ {
		fb := finalResult[k].bytes()
		copy(state[64+k*16:64+k*16+16], fb[:])
	}
	keccakPermute(&state)

	digest := finalDigest(state)
	return hex.EncodeToString(digest[:]), nil
}

// shuffle is the V8 three-slot scratchpad mix interleaved into every main
// loop iteration, ahead of the read-modify-write step.
func shuffle(scratchpad *Scratchpad, ix uint64, ax0, bx0, bx1 Lane) {
	addr := ix & addrMask
	a1 := (addr ^ 0x10) >> 4
	a2 := (addr ^ 0x20) >> 4
	a3 := (addr ^ 0x30) >> 4
	v1, v2, v3 := scratchpad.lanes[a1], scratchpad.lanes[a2], scratchpad.lanes[a3]

	scratchpad.lanes[a1] = addLane(v3, bx1)
	scratchpad.lanes[a2] = addLane(v1, bx0)
	scratchpad.lanes[a3] = addLane(v2, ax0)
}

// initScratchpad is Phase 2: it expands a 10-round AES key from the first
// 32 bytes of the Keccak state and uses it to stretch the next 128 bytes
// (state[64:192]) into the full 2 MiB scratchpad, each 8-lane stripe
// depending only on the stripe before it.
func initScratchpad(scratchpad *Scratchpad, state *[200]byte, aes AES) {
	keys := aes.ExpandKey(readLane(state[0:16]), readLane(state[16:32]))

	for i := 0; i < 8; i++ {
		block := readLane(state[64+i*16 : 64+i*16+16])
		for k := 0; k < 10; k++ {
			block = aes.Round(block, keys[k])
		}
		scratchpad.lanes[i] = block
	}

	for k := 0; k < ScratchpadLanes-8; k += 8 {
		for i := k; i < k+8; i++ {
			block := scratchpad.lanes[i]
			for j := 0; j < 10; j++ {
				block = aes.Round(block, keys[j])
			}
			scratchpad.lanes[i+8] = block
		}
	}
}

// finaliseScratchpad is Phase 4: it expands a second 10-round AES key from
// state[32:64] and folds the entire scratchpad back down to 8 lanes by
// repeatedly XORing each 8-lane stripe into a running state and running it
// through all 10 rounds.
func finaliseScratchpad(scratchpad *Scratchpad, state *[200]byte, aes AES) [8]Lane {
	keys := aes.ExpandKey(readLane(state[32:48]), readLane(state[48:64]))

	var out [8]Lane
	for i := 0; i < 8; i++ {
		block := xorLane(scratchpad.lanes[i], readLane(state[64+i*16:64+i*16+16]))
		for k := 0; k < 10; k++ {
			block = aes.Round(block, keys[k])
		}
		out[i] = block
	}

	for k := 8; k < ScratchpadLanes; k += 8 {
		for i := 0; i < 8; i++ {
			block := xorLane(out[i], scratchpad.lanes[k+i])
			for j := 0; j < 10; j++ {
				block = aes.Round(block, keys[j])
			}
			out[i] = block
		}
	}
	return out
}
