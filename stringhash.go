// stringhash.go -- string-keyed hashers (C1)
//
// The source's string hashers use an AES-NI hardware engine; this is
// replaced here with siphash-2-4 (already a dependency of the persist
// package, for record checksums) and, as an alternative for callers
// who prefer raw throughput over keyed DoS-resistance, xxhash.

package ptrhash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/dchest/siphash"
)

// StringHash hashes a byte slice key with siphash-2-4, keyed by seed.
// Use for string/[]byte keys in the common case.
func StringHash(key []byte, seed uint64) H {
	h := siphash.Hash(seed, mixC^seed, key)
	return H{Lo: h, Hi: h}
}

// StringHash128 computes two independent siphash-2-4 passes (distinct
// salts derived from seed) and returns a genuine 128-bit hash. Use for
// string keys at a scale (>= 10^9) where a 64-bit hash would
// birthday-collide.
func StringHash128(key []byte, seed uint64) H {
	lo := siphash.Hash(seed, mixC^seed, key)
	hi := siphash.Hash(seed^0x9e3779b97f4a7c15, mixC+seed, key)
	return H{Lo: lo, Hi: hi}
}

// XXHash64 hashes a byte slice key with xxhash, seeded. Offered as a
// faster, non-keyed alternative to StringHash for trusted input.
func XXHash64(key []byte, seed uint64) H {
	h := xxhash.Sum64(appendSeed(key, seed))
	return H{Lo: h, Hi: h}
}

// XXHash128 runs XXHash64 twice with distinct seed derivations to
// produce a 128-bit value, mirroring StringHash128's shape.
func XXHash128(key []byte, seed uint64) H {
	lo := xxhash.Sum64(appendSeed(key, seed))
	hi := xxhash.Sum64(appendSeed(key, seed^0x9e3779b97f4a7c15))
	return H{Lo: lo, Hi: hi}
}

func appendSeed(key []byte, seed uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], seed)
	out := make([]byte, 0, len(key)+8)
	out = append(out, b[:]...)
	out = append(out, key...)
	return out
}
