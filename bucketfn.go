// bucketfn.go -- C3: bucket functions
//
// A bucket function skews the hash->bucket distribution so that a
// small fraction of buckets are large (placed first during pilot
// search, giving maximum freedom) and the rest are small (placed
// last, rarely evicting anything). Formulas follow the reference
// ptr_hash implementation's bucket_fn module.

package ptrhash

import "math"

// BucketFn maps a 64-bit value uniformly distributed in [0, 2^64) to
// another value in [0, 2^64), skewing the distribution before the
// final %buckets_per_part reduction.
type BucketFn interface {
	Call(x uint64) uint64
}

// Linear is the identity bucket function: uniform distribution, no
// extra space overhead, and the cheapest query path (bucketInPart
// special-cases it to skip the call entirely).
type Linear struct{}

func (Linear) Call(x uint64) uint64 { return x }

// Skewed maps the first Beta fraction of hashes to the first Gamma
// fraction of buckets, and the remainder to the remaining buckets.
// Defaults Beta=0.6, Gamma=0.3 produce a two-piece linear skew.
type Skewed struct {
	Beta, Gamma float64
}

func NewSkewed() Skewed { return Skewed{Beta: 0.6, Gamma: 0.3} }

func (s Skewed) Call(x uint64) uint64 {
	beta, gamma := s.Beta, s.Gamma
	if beta == 0 && gamma == 0 {
		beta, gamma = 0.6, 0.3
	}
	const max = float64(1 << 63) * 2
	xf := float64(x) / max
	var yf float64
	if xf < beta {
		yf = (gamma / beta) * xf
	} else {
		yf = gamma + ((1-gamma)/(1-beta))*(xf-beta)
	}
	return uint64(yf * max)
}

// Optimal approximates the theoretically space-optimal bucket
// assignment for load factor controlled by Eps.
type Optimal struct {
	Eps float64
}

func (o Optimal) Call(x uint64) uint64 {
	eps := o.Eps
	if eps <= 0 {
		eps = 1.0 / 3.0
	}
	const max = float64(1 << 63) * 2
	xf := x2unit(x)
	yf := xf + (1-eps)*(1-xf)*math.Log(1-xf)
	if yf < 0 {
		yf = 0
	}
	if yf > 1 {
		yf = 1
	}
	return uint64(yf * max)
}

// Square approximates Optimal with x^2-style weighting, avoiding
// floating point transcendentals (no log) at the cost of some extra
// bits/key versus Optimal.
type Square struct{}

func (Square) Call(x uint64) uint64 {
	return mulHigh64(x, x)
}

// SquareEps blends Square with a small linear component controlled
// implicitly (matching the reference's "square plus linear tail").
type SquareEps struct{}

func (SquareEps) Call(x uint64) uint64 {
	sq := mulHigh64(x, x)
	return sq/256*255 + x/256
}

// Cubic approximates an even steeper skew than Square, using x^3.
type Cubic struct{}

func (Cubic) Call(x uint64) uint64 {
	return mulHigh64(mulHigh64(x, x), x)
}

// CubicEps is the recommended space-optimal default: a cubic monomial
// approximation with a small linear correction term so queries stay
// branch- and float-free.
type CubicEps struct{}

func (CubicEps) Call(x uint64) uint64 {
	cube := mulHigh64(mulHigh64(x, x), (x>>1)|(1<<63))
	return cube/256*255 + x/256
}

func x2unit(x uint64) float64 {
	const max = float64(1 << 63) * 2
	return float64(x) / max
}
