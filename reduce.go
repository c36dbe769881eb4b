// reduce.go -- C2: fast modular reduction

package ptrhash

// fastReduce maps h into [0, d) using the high bits of a 64x64->128
// multiply. Uniform for random h and much cheaper than a division.
func fastReduce(h uint64, d uint64) uint64 {
	return mulHigh64(h, d)
}

// fastmod32 precomputes a multiplicative inverse so that repeated
// reductions modulo the same divisor (d <= 2^32) avoid a division.
// Used for %slots_per_part, which is hot on every query.
type fastmod32 struct {
	d   uint64
	inv uint64
}

func newFastmod32(d uint64) fastmod32 {
	if d == 0 {
		d = 1
	}
	// inv = ceil(2^64 / d); reduction is then (h * inv) >> 64-ish via
	// the same high-multiply trick used by fastReduce, specialized for
	// divisors that fit in 32 bits.
	inv := ^uint64(0)/d + 1
	return fastmod32{d: d, inv: inv}
}

func (f fastmod32) reduce(h uint64) uint64 {
	lo := f.inv * h
	return mulHigh64(lo, f.d)
}
