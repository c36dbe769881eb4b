// marshal.go -- marshal/unmarshal an Index
//
// Grounded on the teacher's chd_marshal.go: a small fixed header of
// 64-bit words followed by the variable-length body, all little-endian,
// written with the same writeAll-style short-write guard.

package ptrhash

import (
	"encoding/binary"
	"fmt"
	"io"
)

const indexHeaderVersion = 1

// indexHeaderSize is 6 64-bit words: version+bucketFn (1), seed (1),
// n (1), parts (1), shards (1), pilot-table length (1).
const indexHeaderSize = 6 * 8

// MarshalBinary encodes idx's seed, layout parameters, pilot table and
// remap table so UnmarshalIndex can reconstruct an equivalent Index
// given the same hasher.
func (idx *Index[K]) MarshalBinary(w io.Writer) (int, error) {
	var hdr [indexHeaderSize]byte
	le := binary.LittleEndian

	hdr[0] = indexHeaderVersion
	hdr[1] = bucketFnCode(idx.bf)
	le.PutUint64(hdr[8:16], idx.seed)
	le.PutUint64(hdr[16:24], idx.n)
	le.PutUint64(hdr[24:32], idx.l.parts)
	le.PutUint64(hdr[32:40], idx.l.shards)
	le.PutUint64(hdr[40:48], uint64(len(idx.pilots)))

	nw, err := writeAll(w, hdr[:])
	if err != nil {
		return nw, err
	}

	m, err := writeAll(w, idx.pilots)
	nw += m
	if err != nil {
		return nw, err
	}

	remapLen := idx.remap.Len()
	var rlbuf [8]byte
	le.PutUint64(rlbuf[:], remapLen)
	m, err = writeAll(w, rlbuf[:])
	nw += m
	if err != nil {
		return nw, err
	}

	if remapLen > 0 {
		rbuf := make([]byte, remapLen*4)
		for i := uint64(0); i < remapLen; i++ {
			le.PutUint32(rbuf[i*4:], uint32(idx.remap.Index(i)))
		}
		m, err = writeAll(w, rbuf)
		nw += m
		if err != nil {
			return nw, err
		}
	}

	return nw, nil
}

// UnmarshalIndex reconstructs an Index previously written by
// MarshalBinary. hasher and the layout-determining params
// (Alpha/Lambda/Sharding/KeysPerShard/SinglePart) must match the
// values used at construction; the caller is responsible for
// supplying them out of band (they are not re-derivable from the
// on-disk bucket count alone without also knowing Alpha/Lambda).
func UnmarshalIndex[K any](r io.Reader, hasher Hasher[K], p Params) (*Index[K], error) {
	p.fill()

	var hdr [indexHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if hdr[0] != indexHeaderVersion {
		return nil, fmt.Errorf("ptrhash: unsupported index version %d", hdr[0])
	}

	le := binary.LittleEndian
	bf, err := bucketFnFromCode(hdr[1])
	if err != nil {
		return nil, err
	}
	seed := le.Uint64(hdr[8:16])
	n := le.Uint64(hdr[16:24])
	parts := le.Uint64(hdr[24:32])
	shards := le.Uint64(hdr[32:40])
	bucketsTotal := le.Uint64(hdr[40:48])

	pilots := make([]byte, bucketsTotal)
	if _, err := io.ReadFull(r, pilots); err != nil {
		return nil, err
	}

	var rlbuf [8]byte
	if _, err := io.ReadFull(r, rlbuf[:]); err != nil {
		return nil, err
	}
	remapLen := le.Uint64(rlbuf[:])

	var remap RemapStore
	if remapLen == 0 {
		remap = &u32RemapStore{}
	} else {
		rbuf := make([]byte, remapLen*4)
		if _, err := io.ReadFull(r, rbuf); err != nil {
			return nil, err
		}
		rs := make([]uint32, remapLen)
		for i := range rs {
			rs[i] = le.Uint32(rbuf[i*4:])
		}
		remap = &u32RemapStore{r: rs}
	}

	p.BucketFn = bf
	l := newLayout(n, p)
	if l.parts != parts || l.shards != shards || l.bucketsTotal != bucketsTotal {
		return nil, fmt.Errorf("ptrhash: params mismatch reconstructing layout (n=%d): stored parts=%d shards=%d buckets=%d, recomputed parts=%d shards=%d buckets=%d",
			n, parts, shards, bucketsTotal, l.parts, l.shards, l.bucketsTotal)
	}

	return &Index[K]{
		hasher: hasher,
		seed:   seed,
		l:      l,
		bf:     bf,
		pilots: pilots,
		remap:  remap,
		n:      n,
	}, nil
}

func bucketFnCode(bf BucketFn) byte {
	switch bf.(type) {
	case Linear:
		return 0
	case Skewed:
		return 1
	case Optimal:
		return 2
	case Square:
		return 3
	case SquareEps:
		return 4
	case Cubic:
		return 5
	case CubicEps:
		return 6
	default:
		return 6
	}
}

func bucketFnFromCode(code byte) (BucketFn, error) {
	switch code {
	case 0:
		return Linear{}, nil
	case 1:
		return NewSkewed(), nil
	case 2:
		return Optimal{Eps: 1.0 / 3.0}, nil
	case 3:
		return Square{}, nil
	case 4:
		return SquareEps{}, nil
	case 5:
		return Cubic{}, nil
	case 6:
		return CubicEps{}, nil
	default:
		return nil, fmt.Errorf("ptrhash: unknown bucket function code %d", code)
	}
}

func writeAll(w io.Writer, buf []byte) (int, error) {
	n, err := w.Write(buf)
	if err != nil {
		return n, err
	}
	if n != len(buf) {
		return n, errShortWrite("index", n, len(buf))
	}
	return n, nil
}
