package htmltok

import "strings"

// NameHash packs an ASCII tag name into a 64-bit integer, 5 bits per
// character: the digits '1'-'6' (as used in numbered header tags h1-h6)
// map to 0-5, and ASCII letters (case-folded) map to 6-31. A name runs out
// of room once adding another character would overflow the available top
// bits, or hits a byte outside that 32-symbol alphabet; either case
// invalidates the hash and ok is false, so callers fall back to a
// byte-slice comparison.
//
// Grounded on the packing rule the rewriter's hash is modeled on: reserving
// 0-5 for digits (rather than 0-25 for letters directly) avoids every run
// of repeated 'a' characters hashing to zero, since a tag name can never
// start with a digit.
func NameHash(name []byte) (hash uint64, ok bool) {
	if len(name) == 0 {
		return 0, false
	}
	h := uint64(0)
	for _, c := range name {
		if h>>(64-5) != 0 {
			// No room for another 5-bit symbol.
			return 0, false
		}
		v, valid := packedValue(c)
		if !valid {
			return 0, false
		}
		h = h<<5 | uint64(v)
	}
	return h, true
}

func packedValue(c byte) (uint8, bool) {
	switch {
	case c >= '1' && c <= '6':
		return (c & 0x0F) - 1, true
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return (c & 0x1F) + 5, true
	default:
		return 0, false
	}
}

// NameHashEqualFold reports whether two byte-slice tag names are equal
// under ASCII case-folding, using the packed hash as a fast path and
// falling back to a direct compare when either name is outside the packed
// grammar. This is the invariant the hash/name-equivalence property
// checks: for names inside the grammar, hash equality must coincide
// exactly with case-insensitive byte equality.
func NameHashEqualFold(a, b []byte) bool {
	ha, oka := NameHash(a)
	hb, okb := NameHash(b)
	if oka && okb {
		return ha == hb
	}
	return strings.EqualFold(string(a), string(b))
}
