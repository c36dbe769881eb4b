// params.go -- construction parameters and their defaults

package ptrhash

import "log"

// Sharding selects how the shard iterator (C4) produces per-shard hash
// vectors during construction.
type Sharding int

const (
	// ShardNone collects every hash into a single in-memory vector.
	ShardNone Sharding = iota
	// ShardMemory re-iterates the key source once per shard, filtering
	// by shard predicate. Uses O(N/shards) peak memory for hashes.
	ShardMemory
	// ShardDisk makes one pass over the keys, routing each hash to a
	// per-shard temp file, then reads shards back one at a time.
	ShardDisk
	// ShardHybrid behaves like ShardDisk but holds HybridMemBytes worth
	// of shards in flight at once, trading passes for peak disk use.
	ShardHybrid
)

// Params configures Build. The zero value is not valid; use
// DefaultParams as a starting point.
type Params struct {
	// Alpha is the load factor N/slots_total, in (0, 1]. Default 0.99.
	Alpha float64
	// Lambda is the average number of keys per bucket, in [2.5, 4.5].
	// Default 3.0.
	Lambda float64
	// BucketFn skews the bucket-size distribution so pilot search sees
	// the largest buckets first. Default CubicEps{}.
	BucketFn BucketFn
	// RemapEnabled controls whether overflow slots (when Alpha < 1)
	// are compacted back into [0, N) by a remap table. Default true.
	RemapEnabled bool
	// KeysPerShard bounds shard size when Sharding != ShardNone.
	// Default 1 << 31.
	KeysPerShard uint64
	// Sharding selects the shard iterator strategy. Default ShardNone.
	Sharding Sharding
	// HybridMemBytes bounds in-flight shard memory for ShardHybrid:
	// shardsPerPass = HybridMemBytes / 16 / KeysPerShard temp-file
	// writers are held open at once, trading extra passes over the
	// keys for bounded peak disk/fd use. Default 1<<28 (256 MiB) when
	// Sharding is ShardHybrid and this is left zero.
	HybridMemBytes uint64
	// SinglePart forces a single-part layout regardless of N,
	// enabling the IndexSinglePart fast path unconditionally.
	SinglePart bool
	// Logger receives warnings for retried seeds and I/O issues. If
	// nil, DefaultParams' log.Default()-backed logger is used.
	Logger Logger
	// Stats, if non-nil, is filled in with eviction counts and pilot
	// histograms as Build runs. Optional; most callers leave it nil.
	Stats *BuildStats
}

// Logger is satisfied by *log.Logger; callers may substitute their own.
type Logger interface {
	Printf(format string, v ...any)
}

// DefaultParams returns a Params value with the recommended defaults:
// Alpha=0.99, Lambda=3.0, BucketFn=CubicEps{}, RemapEnabled=true,
// KeysPerShard=1<<31, Sharding=ShardNone.
func DefaultParams() Params {
	return Params{
		Alpha:        0.99,
		Lambda:       3.0,
		BucketFn:     CubicEps{},
		RemapEnabled: true,
		KeysPerShard: 1 << 31,
		Sharding:     ShardNone,
		Logger:       defaultLogger{},
	}
}

// NormalizeParams applies Params' defaulting rules (the same ones Build
// runs internally) and returns the result. Used by external
// collaborators such as the persist package that need to record the
// effective Alpha/Lambda a build actually used, since Build takes
// Params by value and never mutates the caller's copy.
func NormalizeParams(p Params) Params {
	p.fill()
	return p
}

func (p *Params) fill() {
	if p.Alpha <= 0 || p.Alpha > 1 {
		p.Alpha = 0.99
	}
	if p.Lambda < 2.5 || p.Lambda > 4.5 {
		p.Lambda = 3.0
	}
	if p.BucketFn == nil {
		p.BucketFn = CubicEps{}
	}
	if p.KeysPerShard == 0 {
		p.KeysPerShard = 1 << 31
	}
	if p.Sharding == ShardHybrid && p.HybridMemBytes == 0 {
		p.HybridMemBytes = 1 << 28 // 256 MiB
	}
	if p.Logger == nil {
		p.Logger = defaultLogger{}
	}
}

// defaultLogger adapts the stdlib log package, matching the teacher's
// preference for plain stdlib logging with no structured-logging
// dependency.
type defaultLogger struct{}

func (defaultLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}
