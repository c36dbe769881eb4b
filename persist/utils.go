// utils.go -- byte/word conversions and random salt generation
//
// Grounded on the teacher's utils.go (rand32/randbytes via
// crypto/rand) and bitvector.go's u64sToByteSlice/bsToUint64Slice
// call sites. This port replaces the teacher's unsafe pointer-cast
// reinterpretation (which requires the endian_be.go/endian_le.go
// byte-swap pair to stay portable across architectures) with an
// explicit little-endian encode/decode: no unsafe, one canonical
// on-disk byte order regardless of host architecture, and no second
// file pair to keep in sync with it. See DESIGN.md for why the
// teacher's unsafe variant was dropped rather than ported.

package persist

import (
	"crypto/rand"
	"encoding/binary"
	"io"
)

func randbytes(n int) []byte {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		panic("persist: can't read crypto/rand: " + err.Error())
	}
	return b
}

func rand32() uint32 {
	var b [4]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		panic("persist: can't read crypto/rand: " + err.Error())
	}
	return binary.BigEndian.Uint32(b[:])
}

// u64sToByteSlice encodes v as little-endian bytes, 8 bytes per entry.
func u64sToByteSlice(v []uint64) []byte {
	b := make([]byte, len(v)*8)
	for i, x := range v {
		binary.LittleEndian.PutUint64(b[i*8:], x)
	}
	return b
}

// u32sToByteSlice encodes v as little-endian bytes, 4 bytes per entry.
func u32sToByteSlice(v []uint32) []byte {
	b := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], x)
	}
	return b
}

func bsToUint64Slice(b []byte) []uint64 {
	v := make([]uint64, len(b)/8)
	for i := range v {
		v[i] = binary.LittleEndian.Uint64(b[i*8:])
	}
	return v
}

func bsToUint32Slice(b []byte) []uint32 {
	v := make([]uint32, len(b)/4)
	for i := range v {
		v[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return v
}
