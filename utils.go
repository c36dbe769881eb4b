// utils.go -- small utility functions shared across the build pipeline

package ptrhash

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// mix is a 64-bit avalanche finalizer, used to decorrelate seed/salt
// inputs before they feed a multiplicative hash.
func mix(h uint64) uint64 {
	h ^= h >> 23
	h *= 0x2127599bf4325c37
	h ^= h >> 47
	return h
}

func randbytes(n int) []byte {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		panic("ptrhash: can't read crypto/rand")
	}
	return b
}

func rand64() uint64 {
	var b [8]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		panic("ptrhash: can't read crypto/rand")
	}
	return binary.BigEndian.Uint64(b[:])
}

func nextpow2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// humansize renders a byte count in a compact human-readable form.
func humansize(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
