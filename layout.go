// layout.go -- derived index fields computed once at construction time

package ptrhash

import "math"

// layout holds every size derived from (n, params) per the construction
// formulas. Parts-count resolves the spec's documented "two competing
// heuristics" question with a single rule: a flat single-part fallback
// below smallPartThreshold, and the formula-driven estimate above it,
// rounded up to a multiple of shards.
type layout struct {
	n              uint64
	shards         uint64
	parts          uint64
	partsPerShard  uint64
	slotsPerPart   uint64
	bucketsPerPart uint64
	slotsTotal     uint64
	bucketsTotal   uint64

	slotsReduce fastmod32
}

// smallPartThreshold is the key-count floor below which ptrhash always
// uses a single part: pilot search over one small part is already fast
// and cache-resident, and the formula-driven estimate is noisy at this
// scale.
const smallPartThreshold = 10_000

func newLayout(n uint64, p Params) layout {
	shards := uint64(1)
	if !p.SinglePart && p.Sharding != ShardNone && p.KeysPerShard > 0 {
		shards = (n + p.KeysPerShard - 1) / p.KeysPerShard
		if shards == 0 {
			shards = 1
		}
	}

	var parts uint64
	switch {
	case p.SinglePart || n < smallPartThreshold:
		parts = 1
	default:
		eps := (1 - p.Alpha) / 2
		if eps <= 0 {
			eps = 0.005
		}
		nf := float64(n)
		num := nf * eps * eps
		den := 2 * math.Log(num/2)
		est := 1.0
		if den > 0 {
			est = num / den
		}
		parts = uint64(math.Ceil(est))
		if parts < 1 {
			parts = 1
		}
		// round up to a multiple of shards so parts divide evenly
		// across shards.
		if rem := parts % shards; rem != 0 {
			parts += shards - rem
		}
	}

	// a shard must own at least one whole part: a small key set asking
	// for more shards than parts would otherwise divide a part across
	// shard boundaries.
	if shards > parts {
		shards = parts
	}

	keysPerPart := n / parts
	if n%parts != 0 {
		keysPerPart++
	}

	slotsPerPart := uint64(math.Ceil(float64(keysPerPart) / p.Alpha))
	// force non-power-of-two: a power-of-two slot count would make
	// fastmod32's multiplicative inverse degenerate to a cheap mask,
	// defeating the point of mixing slot assignment via pilotHash.
	if slotsPerPart > 0 && slotsPerPart&(slotsPerPart-1) == 0 {
		slotsPerPart++
	}
	if slotsPerPart == 0 {
		slotsPerPart = 1
	}

	bucketsPerPart := uint64(math.Ceil(float64(keysPerPart)/p.Lambda)) + 3

	return layout{
		n:              n,
		shards:         shards,
		parts:          parts,
		partsPerShard:  parts / shards,
		slotsPerPart:   slotsPerPart,
		bucketsPerPart: bucketsPerPart,
		slotsTotal:     parts * slotsPerPart,
		bucketsTotal:   parts * bucketsPerPart,
		slotsReduce:    newFastmod32(slotsPerPart),
	}
}

// globalPart combines a shard index with a hash's reduction modulo
// partsPerShard, so that every part belongs to exactly one shard
// regardless of how the shard iterator grouped hashes. shardIdx must
// be fastReduce(h, l.shards) - the same reduction the shard iterator
// used to route h - so build and query agree on part assignment.
func (l layout) globalPart(shardIdx uint64, h uint64) uint64 {
	if l.partsPerShard == 1 {
		return shardIdx
	}
	return shardIdx*l.partsPerShard + fastReduce(h, l.partsPerShard)
}

// part returns which global part a hash belongs to. It re-derives the
// same shard index the shard iterator used during build
// (fastReduce(h, shards)) so queries land on the exact part a key's
// hash was placed into, regardless of how many shards were used.
func (l layout) part(h uint64) uint64 {
	if l.parts == 1 {
		return 0
	}
	shardIdx := uint64(0)
	if l.shards > 1 {
		shardIdx = fastReduce(h, l.shards)
	}
	return l.globalPart(shardIdx, h)
}

// bucketInPart maps a hash to a bucket index within its part, applying
// the configured bucket function (skipped entirely for Linear).
func (l layout) bucketInPart(h uint64, bf BucketFn) uint64 {
	if _, ok := bf.(Linear); ok {
		return fastReduce(h, l.bucketsPerPart)
	}
	return fastReduce(bf.Call(h), l.bucketsPerPart)
}

// slotInPart computes a key's destination slot within its part, given
// its low hash word and the bucket's chosen pilot.
func (l layout) slotInPart(hlo uint64, pilot byte, seed uint64) uint64 {
	return l.slotsReduce.reduce(hlo ^ pilotHash(pilot, seed))
}
