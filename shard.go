// shard.go -- C4: shard iterator
//
// Produces, per shard, a []H of every hash whose shard index matches.
// Grounded on the reference shard.rs (None/Memory/Disk/Hybrid modes,
// ThreadLocalBuf-style buffered temp-file writers) and on the
// teacher's buffered-I/O helpers in persist/writer.go (writeAll,
// page-aligned offsets).

package ptrhash

import (
	"bufio"
	"encoding/binary"
	"os"
	"sync"
)

// shardSource produces the hashes for every key, grouped into l.shards
// vectors in shard-index order. Sharding selects how much is held in
// memory at once: the keys are hashed once for ShardNone and ShardDisk,
// once per shard for ShardMemory, and once per pass for ShardHybrid.
func shardSource[K any](keys []K, hasher Hasher[K], seed uint64, l layout, p Params) ([][]H, error) {
	switch {
	case l.shards == 1 || p.Sharding == ShardNone:
		return shardNone(keys, hasher, seed, l), nil

	case p.Sharding == ShardMemory:
		return shardMemory(keys, hasher, seed, l), nil

	case p.Sharding == ShardHybrid:
		return shardHybrid(keys, hasher, seed, l, p)

	default: // ShardDisk
		return shardDiskRange(keys, hasher, seed, l, 0, l.shards)
	}
}

func shardNone[K any](keys []K, hasher Hasher[K], seed uint64, l layout) [][]H {
	hashes := make([]H, len(keys))
	for i, k := range keys {
		hashes[i] = hasher(k, seed)
	}
	if l.shards == 1 {
		return [][]H{hashes}
	}
	return bucketByShard(hashes, l)
}

func shardMemory[K any](keys []K, hasher Hasher[K], seed uint64, l layout) [][]H {
	out := make([][]H, l.shards)
	for s := uint64(0); s < l.shards; s++ {
		var hs []H
		for _, k := range keys {
			h := hasher(k, seed)
			if fastReduce(h.Hi, l.shards) == s {
				hs = append(hs, h)
			}
		}
		out[s] = hs
	}
	return out
}

// bucketByShard partitions an already-computed hash vector by shard,
// used by shardNone when shards > 1.
func bucketByShard(hashes []H, l layout) [][]H {
	out := make([][]H, l.shards)
	for _, h := range hashes {
		s := fastReduce(h.Hi, l.shards)
		out[s] = append(out[s], h)
	}
	return out
}

// shardDiskRange implements the Disk mode for shard indices [lo, hi):
// one pass over the keys, routing each hash whose shard falls in that
// range to a per-shard temp file behind a mutex-guarded buffered
// writer, then reading each shard back as a contiguous vector. Keys
// outside [lo, hi) are hashed and discarded, so a caller that wants
// every shard just passes [0, l.shards).
func shardDiskRange[K any](keys []K, hasher Hasher[K], seed uint64, l layout, lo, hi uint64) ([][]H, error) {
	dir, err := os.MkdirTemp("", "ptrhash-shard-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	n := hi - lo
	writers := make([]*shardWriter, n)
	for i := range writers {
		w, err := newShardWriter(dir, int(lo)+i)
		if err != nil {
			return nil, err
		}
		writers[i] = w
	}

	for _, k := range keys {
		h := hasher(k, seed)
		s := fastReduce(h.Hi, l.shards)
		if s < lo || s >= hi {
			continue
		}
		if err := writers[s-lo].write(h); err != nil {
			return nil, err
		}
	}

	out := make([][]H, n)
	for i, w := range writers {
		hs, err := w.closeAndRead()
		if err != nil {
			return nil, err
		}
		out[i] = hs
	}
	return out, nil
}

// shardHybrid is Disk mode bounded to at most shardsPerPass open
// temp-file writers at a time: it makes ceil(l.shards/shardsPerPass)
// full passes over keys, each pass writing only the shard range it
// currently holds open, trading extra passes for bounded peak disk
// and fd use. shardsPerPass is derived from HybridMemBytes so that the
// in-flight shards' worth of buffered hashes stays within the
// configured budget: each shard can hold up to KeysPerShard keys of
// size_of(H) bytes, so HybridMemBytes / size_of(H) / KeysPerShard
// bounds how many shards can be in flight at once.
func shardHybrid[K any](keys []K, hasher Hasher[K], seed uint64, l layout, p Params) ([][]H, error) {
	const hSize = 16 // bytes: H{Lo, Hi uint64}

	shardsPerPass := l.shards
	if p.HybridMemBytes > 0 && p.KeysPerShard > 0 {
		shardsPerPass = p.HybridMemBytes / (hSize * p.KeysPerShard)
	}
	if shardsPerPass == 0 {
		shardsPerPass = 1
	}
	if shardsPerPass >= l.shards {
		return shardDiskRange(keys, hasher, seed, l, 0, l.shards)
	}

	out := make([][]H, l.shards)
	for lo := uint64(0); lo < l.shards; lo += shardsPerPass {
		hi := lo + shardsPerPass
		if hi > l.shards {
			hi = l.shards
		}
		hs, err := shardDiskRange(keys, hasher, seed, l, lo, hi)
		if err != nil {
			return nil, err
		}
		copy(out[lo:hi], hs)
	}
	return out, nil
}

// shardWriter buffers one shard's hashes behind a mutex, flushing to a
// temp file at a 1 MiB threshold. The reference implementation flushes
// at 1 GiB per thread; this single-writer Go port uses a much smaller
// buffer since there is no per-goroutine fan-in to amortize.
type shardWriter struct {
	mu  sync.Mutex
	buf *bufio.Writer
	fd  *os.File
	n   int
}

const shardFlushThreshold = 1 << 20 // bytes

func newShardWriter(dir string, idx int) (*shardWriter, error) {
	fd, err := os.CreateTemp(dir, "")
	_ = idx
	if err != nil {
		return nil, err
	}
	return &shardWriter{buf: bufio.NewWriterSize(fd, shardFlushThreshold), fd: fd}, nil
}

func (w *shardWriter) write(h H) error {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], h.Lo)
	binary.LittleEndian.PutUint64(b[8:], h.Hi)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.buf.Write(b[:]); err != nil {
		return err
	}
	w.n++
	return nil
}

func (w *shardWriter) closeAndRead() ([]H, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.buf.Flush(); err != nil {
		return nil, err
	}
	if _, err := w.fd.Seek(0, 0); err != nil {
		return nil, err
	}

	out := make([]H, w.n)
	var b [16]byte
	for i := 0; i < w.n; i++ {
		if _, err := readFull(w.fd, b[:]); err != nil {
			return nil, err
		}
		out[i] = H{Lo: binary.LittleEndian.Uint64(b[:8]), Hi: binary.LittleEndian.Uint64(b[8:])}
	}

	if err := w.fd.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func readFull(fd *os.File, b []byte) (int, error) {
	n := 0
	for n < len(b) {
		m, err := fd.Read(b[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
