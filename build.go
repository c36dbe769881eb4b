// build.go -- C5: pilot search driver
//
// Grounded on the reference build.rs (find_pilot / try_take_pilot
// eviction loop) and the teacher's chd.go Freeze() seed-retry loop
// (_MaxSeed pattern, sort-by-occupancy bucket ordering).

package ptrhash

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// maxSeedAttempts bounds how many times Build will draw a fresh global
// seed and retry construction from scratch after a part proved
// unsolvable (too many evictions) under the current seed.
const maxSeedAttempts = 10

// evictionAbortFactor: a part is declared unsolvable under the current
// seed once its eviction count exceeds evictionAbortFactor * slotsPerPart.
const evictionAbortFactor = 10

// Index is an immutable minimal perfect hash function built over keys
// of type K. The zero value is not usable; construct with Build,
// TryBuild, or MustBuild.
type Index[K any] struct {
	hasher Hasher[K]
	seed   uint64
	l      layout
	bf     BucketFn
	pilots []byte // l.bucketsTotal entries
	remap  RemapStore
	n      uint64
}

// transient marks an error as a seed-local failure that Build should
// retry with a fresh seed, as opposed to a terminal failure.
type transientError struct{ err error }

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

// Build constructs an Index over keys using hasher and params. It
// consumes the key slice (safe to reuse afterwards) and may try up to
// 10 fresh seeds in total before giving up.
func Build[K any](keys []K, hasher Hasher[K], params Params) (*Index[K], error) {
	return BuildContext[K](context.Background(), keys, hasher, params)
}

// BuildContext is Build with cooperative cancellation: ctx is checked
// once per part boundary, never inside the hot pilot-search loop.
func BuildContext[K any](ctx context.Context, keys []K, hasher Hasher[K], params Params) (*Index[K], error) {
	n := uint64(len(keys))
	if n == 0 {
		return nil, ErrEmptyKeySet
	}

	params.fill()
	l := newLayout(n, params)

	var lastErr error
	for attempt := 0; attempt < maxSeedAttempts; attempt++ {
		seed := rand64()
		pilots, taken, err := buildAllParts(ctx, keys, hasher, seed, l, params)
		if err == nil {
			remap, rerr := buildRemap(taken, l, params)
			if rerr != nil {
				return nil, rerr
			}
			return &Index[K]{
				hasher: hasher,
				seed:   seed,
				l:      l,
				bf:     params.BucketFn,
				pilots: pilots,
				remap:  remap,
				n:      n,
			}, nil
		}

		var te *transientError
		if !asTransient(err, &te) {
			return nil, err // terminal: ctx cancellation, I/O
		}
		params.Logger.Printf("ptrhash: build: seed %#x failed (%s), retrying (%d/%d)", seed, te.err, attempt+1, maxSeedAttempts)
		lastErr = te.err
	}

	if ihe, ok := lastErr.(*IndistinguishableHashesError); ok {
		return nil, fmt.Errorf("%w: %w", ErrUnsolvableAfterSeedBudget, ihe)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsolvableAfterSeedBudget, lastErr)
}

// TryBuild is Build but never panics internally and reports failure by
// returning ok=false instead of an error, for callers that model
// construction failure as "absent" rather than exceptional.
func TryBuild[K any](keys []K, hasher Hasher[K], params Params) (idx *Index[K], ok bool) {
	idx, err := Build(keys, hasher, params)
	if err != nil {
		return nil, false
	}
	return idx, true
}

// MustBuild is Build but panics on error, for callers who treat
// construction failure as a programmer error (e.g. a fixed, trusted
// key set known ahead of time to build cleanly).
func MustBuild[K any](keys []K, hasher Hasher[K], params Params) *Index[K] {
	idx, err := Build(keys, hasher, params)
	if err != nil {
		panic(err)
	}
	return idx
}

func asTransient(err error, out **transientError) bool {
	te, ok := err.(*transientError)
	if ok {
		*out = te
	}
	return ok
}

// buildAllParts hashes every key, shards them, and builds every part's
// pilot table and slot occupancy, placing results into flat global
// arrays indexed by global part number.
func buildAllParts[K any](ctx context.Context, keys []K, hasher Hasher[K], seed uint64, l layout, p Params) ([]byte, *bitset, error) {
	shardHashes, err := shardSource(keys, hasher, seed, l, p)
	if err != nil {
		return nil, nil, err
	}

	globalPilots := make([]byte, l.bucketsTotal)
	globalTaken := newBitset(l.slotsTotal)

	for shardIdx, hashes := range shardHashes {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		partHashes := splitByPart(hashes, uint64(shardIdx), l)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(1, runtime.GOMAXPROCS(0)))

		for local := range partHashes {
			local := local
			gp := uint64(shardIdx)*l.partsPerShard + uint64(local)
			hs := partHashes[local]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				pilots, taken, evictions, err := buildPart(hs, l, p.BucketFn, seed, int(gp))
				if err != nil {
					return err
				}
				copy(globalPilots[gp*l.bucketsPerPart:(gp+1)*l.bucketsPerPart], pilots)
				slotBase := gp * l.slotsPerPart
				for i := uint64(0); i < l.slotsPerPart; i++ {
					if taken.IsSet(i) {
						globalTaken.Set(slotBase + i)
					}
				}
				if p.Stats != nil {
					p.Stats.mergePart(evictions, pilots)
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
	}

	return globalPilots, globalTaken, nil
}

func splitByPart(hashes []H, shardIdx uint64, l layout) [][]H {
	out := make([][]H, l.partsPerShard)
	for _, h := range hashes {
		local := l.globalPart(shardIdx, h.Hi) - shardIdx*l.partsPerShard
		out[local] = append(out[local], h)
	}
	return out
}

// buildPart runs the fast-path/slow-path pilot search for a single
// part's hashes and returns its pilots table (length bucketsPerPart)
// plus the slots it occupied (length slotsPerPart).
func buildPart(hashes []H, l layout, bf BucketFn, seed uint64, partIdx int) ([]byte, *bitset, int, error) {
	buckets := make([][]H, l.bucketsPerPart)
	for _, h := range hashes {
		b := l.bucketInPart(h.Hi, bf)
		buckets[b] = append(buckets[b], h)
	}

	order := make([]int, l.bucketsPerPart)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return len(buckets[order[i]]) > len(buckets[order[j]])
	})

	taken := newBitset(l.slotsPerPart)
	pilots := make([]byte, l.bucketsPerPart)
	placed := make([]bool, l.bucketsPerPart)
	placedSlots := make([][]uint64, l.bucketsPerPart)
	owner := make([]int32, l.slotsPerPart)
	for i := range owner {
		owner[i] = -1
	}

	seq := 0
	q := newWorkQueue(nonEmpty(order, buckets), func(b int) int { return len(buckets[b]) })
	seq = q.Len()
	recent := &recentEvictions{}
	evictions := 0

	for q.Len() > 0 {
		item := heapPop(q)
		b := item.bucket
		if placed[b] {
			continue
		}
		keys := buckets[b]

		if slots, p, ok := fastFindPilot(keys, taken, l, seed); ok {
			place(b, p, slots, taken, owner, placedSlots, pilots, placed)
			continue
		}

		p, slots, victims, found := slowFindPilot(keys, buckets, taken, owner, recent, l, seed)
		if !found {
			// A bucket-internal collision under every tried pilot can be
			// a one-seed fluke (StrongerIntHash's fold and the siphash
			// string hashers aren't guaranteed collision-free for a
			// fixed bucket), so this is retried with a fresh seed like
			// any other transient failure; BuildContext only surfaces
			// IndistinguishableHashesError once the seed budget is
			// exhausted and this is still the cause.
			return nil, nil, evictions, &transientError{&IndistinguishableHashesError{Part: partIdx, BucketSize: len(keys)}}
		}

		for _, v := range victims {
			for _, s := range placedSlots[v] {
				taken.Clear(s)
				owner[s] = -1
			}
			placedSlots[v] = nil
			placed[v] = false
			pilots[v] = 0
			recent.push(v)
			heapPush(q, workItem{size: len(buckets[v]), bucket: v, seq: seq})
			seq++
			evictions++
		}

		place(b, p, slots, taken, owner, placedSlots, pilots, placed)

		if evictions > evictionAbortFactor*int(l.slotsPerPart) {
			return nil, nil, evictions, &transientError{fmt.Errorf("part %d: exceeded eviction budget", partIdx)}
		}
	}

	return pilots, taken, evictions, nil
}

func nonEmpty(order []int, buckets [][]H) []int {
	out := make([]int, 0, len(order))
	for _, b := range order {
		if len(buckets[b]) > 0 {
			out = append(out, b)
		}
	}
	return out
}

func place(b int, p byte, slots []uint64, taken *bitset, owner []int32, placedSlots [][]uint64, pilots []byte, placed []bool) {
	for _, s := range slots {
		taken.Set(s)
		owner[s] = int32(b)
	}
	cp := make([]uint64, len(slots))
	copy(cp, slots)
	placedSlots[b] = cp
	pilots[b] = p
	placed[b] = true
}

// fastFindPilot probes pilots [0,256) for one placing every key in
// keys into a free, internally-distinct set of slots.
func fastFindPilot(keys []H, taken *bitset, l layout, seed uint64) ([]uint64, byte, bool) {
	slots := make([]uint64, len(keys))
	for p := 0; p < 256; p++ {
		hp := pilotHash(byte(p), seed)
		ok := true
		for i := 0; i < len(slots); i++ {
			slots[i] = 0
		}
		seen := smallSet{}
		for i, h := range keys {
			s := l.slotsReduce.reduce(h.Lo ^ hp)
			if seen.has(s) || taken.IsSet(s) {
				ok = false
				break
			}
			seen.add(s)
			slots[i] = s
		}
		if ok {
			out := make([]uint64, len(slots))
			copy(out, slots)
			return out, byte(p), true
		}
	}
	return nil, 0, false
}

// slowFindPilot chooses the pilot that minimizes the collision score
// sum(size(victim)^2) over colliding buckets, skipping any pilot whose
// victims include a recently-evicted bucket and any pilot that causes
// an internal collision within keys itself.
func slowFindPilot(keys []H, buckets [][]H, taken *bitset, owner []int32, recent *recentEvictions, l layout, seed uint64) (byte, []uint64, []int, bool) {
	bestP := -1
	var bestScore int64 = -1
	var bestSlots []uint64
	var bestVictims []int

	for p := 0; p < 256; p++ {
		hp := pilotHash(byte(p), seed)
		slots := make([]uint64, len(keys))
		seen := smallSet{}
		internal := false
		for i, h := range keys {
			s := l.slotsReduce.reduce(h.Lo ^ hp)
			if seen.has(s) {
				internal = true
				break
			}
			seen.add(s)
			slots[i] = s
		}
		if internal {
			continue
		}

		victimSeen := smallSet{}
		var victims []int
		skip := false
		for _, s := range slots {
			if !taken.IsSet(s) {
				continue
			}
			v := int(owner[s])
			if recent.contains(v) {
				skip = true
				break
			}
			if !victimSeen.has(uint64(v)) {
				victimSeen.add(uint64(v))
				victims = append(victims, v)
			}
		}
		if skip {
			continue
		}

		var score int64
		for _, v := range victims {
			sz := int64(len(buckets[v]))
			score += sz * sz
		}

		if bestP == -1 || score < bestScore {
			bestP = p
			bestScore = score
			bestSlots = append([]uint64(nil), slots...)
			bestVictims = victims
		}
	}

	if bestP == -1 {
		return 0, nil, nil, false
	}
	return byte(bestP), bestSlots, bestVictims, true
}

// smallSet is a linear-scan set for the handful of keys (typically
// <=8) in a single bucket; cheaper than a map at this size and avoids
// per-bucket map allocation churn during pilot search.
type smallSet struct {
	v []uint64
}

func (s *smallSet) has(x uint64) bool {
	for _, y := range s.v {
		if y == x {
			return true
		}
	}
	return false
}

func (s *smallSet) add(x uint64) {
	s.v = append(s.v, x)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
