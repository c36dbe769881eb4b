// writer.go -- on-disk constant DB built on top of a ptrhash.Index
//
// Grounded on the teacher's dbwriter.go: same 64-byte header, siphash
// per-record checksums, SHA512-256 strong checksum over header +
// offset table + marshaled index, page-aligned offset table, and
// atomic rename on Freeze. The teacher supported two interchangeable
// MPH backends (CHD, BBHash) selected by magic; this port collapses
// that to the single ptrhash algorithm, so one magic suffices and the
// incremental Add-then-Freeze MPH builder becomes a single batched
// ptrhash.Build call at Freeze time.

package persist

import (
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/dchest/siphash"

	"github.com/opencoff/ptrhash"
)

const (
	_DB_KeysOnly = 1 << iota

	_Magic = "PTRH"
)

type wstate int

const (
	_Aborted wstate = -1
	_Open    wstate = 0
	_Frozen  wstate = 1
)

// Writer builds a read-only constant database keyed by uint64, backed
// by a ptrhash.Index computed once at Freeze time. Keys and values are
// accumulated in memory (values are streamed to the tmp file
// immediately; only offsets are kept) until Freeze commits the file.
type Writer struct {
	fd     *os.File
	params ptrhash.Params

	keymap map[uint64]*valueRef

	salt []byte

	off     uint64
	valSize uint64

	fntmp string
	fn    string
	state wstate
}

type valueRef struct {
	off  uint64
	vlen uint32
}

// NewWriter prepares file fn to hold a constant DB. Once Freeze is
// called, fn is atomically replaced with the finished database.
func NewWriter(fn string, params ptrhash.Params) (*Writer, error) {
	tmp := fmt.Sprintf("%s.tmp.%d", fn, rand32())
	fd, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		fd:     fd,
		params: params,
		keymap: make(map[uint64]*valueRef),
		salt:   randbytes(16),
		off:    64,
		fn:     fn,
		fntmp:  tmp,
	}

	var z [64]byte
	if _, err := writeAll(fd, z[:]); err != nil {
		return nil, err
	}

	return w, nil
}

// Len returns the number of distinct keys added so far.
func (w *Writer) Len() int { return len(w.keymap) }

// Filename returns the final (post-Freeze) path of the database.
func (w *Writer) Filename() string { return w.fn }

// AddKeyVals adds matched key/value pairs; extra entries in the longer
// slice are ignored. Returns the number of records actually added
// (duplicates are rejected).
func (w *Writer) AddKeyVals(keys []uint64, vals [][]byte) (int, error) {
	if w.state != _Open {
		return 0, ErrFrozen
	}

	n := len(keys)
	if len(vals) < n {
		n = len(vals)
	}

	var z int
	for i := 0; i < n; i++ {
		ok, err := w.addRecord(keys[i], vals[i])
		if err != nil {
			return z, err
		}
		if ok {
			z++
		}
	}
	return z, nil
}

// Add adds a single key/value pair.
func (w *Writer) Add(key uint64, val []byte) error {
	if w.state != _Open {
		return ErrFrozen
	}
	_, err := w.addRecord(key, val)
	return err
}

// Abort discards the in-progress database.
func (w *Writer) Abort() error {
	if w.state != _Open {
		return ErrFrozen
	}
	return w.abort()
}

func (w *Writer) abort() error {
	if err := os.Remove(w.fd.Name()); err != nil {
		return err
	}
	if err := w.fd.Close(); err != nil {
		return err
	}
	w.state = _Aborted
	return nil
}

// Freeze builds the ptrhash index over the accumulated keys, writes
// the completed database, and atomically installs it at Filename().
func (w *Writer) Freeze() (err error) {
	defer func(e *error) {
		if *e != nil {
			w.abort()
		}
	}(&err)

	if w.state != _Open {
		return ErrFrozen
	}

	keys := make([]uint64, 0, len(w.keymap))
	for k := range w.keymap {
		keys = append(keys, k)
	}

	norm := ptrhash.NormalizeParams(w.params)
	idx, err := ptrhash.Build(keys, ptrhash.FastIntHash, norm)
	if err != nil {
		return err
	}

	h := sha512.New512_256()
	tee := io.MultiWriter(w.fd, h)

	pgsz := uint64(os.Getpagesize())
	pgszM1 := pgsz - 1
	offtbl := (w.off + pgszM1) &^ pgszM1
	if offtbl > w.off {
		zeroes := make([]byte, offtbl-w.off)
		if _, err = writeAll(w.fd, zeroes); err != nil {
			return err
		}
		w.off = offtbl
	}

	var ehdr [64]byte
	be := binary.BigEndian
	copy(ehdr[:4], _Magic)

	i := 4
	if w.valSize == 0 {
		be.PutUint32(ehdr[i:i+4], uint32(_DB_KeysOnly))
	}
	i += 4
	i += copy(ehdr[i:], w.salt)
	be.PutUint64(ehdr[i:i+8], uint64(idx.N()))
	i += 8
	be.PutUint64(ehdr[i:i+8], offtbl)
	i += 8
	be.PutUint64(ehdr[i:i+8], math.Float64bits(norm.Alpha))
	i += 8
	be.PutUint64(ehdr[i:i+8], math.Float64bits(norm.Lambda))

	h.Write(ehdr[:])

	if err := w.marshalOffsets(tee, idx); err != nil {
		return err
	}

	offtbl = (w.off + 7) &^ uint64(7)
	if offtbl > w.off {
		zeroes := make([]byte, offtbl-w.off)
		if _, err = writeAll(tee, zeroes); err != nil {
			return err
		}
		w.off = offtbl
	}

	nw, err := idx.MarshalBinary(tee)
	if err != nil {
		return err
	}
	w.off += uint64(nw)

	cksum := h.Sum(nil)
	if _, err = writeAll(w.fd, cksum[:]); err != nil {
		return err
	}

	if _, err = w.fd.Seek(0, 0); err != nil {
		return err
	}
	if _, err = writeAll(w.fd, ehdr[:]); err != nil {
		return err
	}
	if err = w.fd.Sync(); err != nil {
		return err
	}
	if err = w.fd.Close(); err != nil {
		return err
	}
	if err = os.Rename(w.fntmp, w.fn); err != nil {
		return err
	}
	w.state = _Frozen
	return nil
}

func (w *Writer) marshalOffsets(tee io.Writer, idx *ptrhash.Index[uint64]) error {
	if w.valSize == 0 {
		return w.marshalKeys(tee, idx)
	}

	n := idx.N()
	offset := make([]uint64, 2*n)
	vlen := make([]uint32, n)

	for k, r := range w.keymap {
		i := idx.Index(k)
		vlen[i] = r.vlen
		j := i * 2
		offset[j] = k
		offset[j+1] = r.off
	}

	if _, err := writeAll(tee, u64sToByteSlice(offset)); err != nil {
		return err
	}
	if _, err := writeAll(tee, u32sToByteSlice(vlen)); err != nil {
		return err
	}

	w.off += n * (8 + 8 + 4)
	return nil
}

func (w *Writer) marshalKeys(tee io.Writer, idx *ptrhash.Index[uint64]) error {
	n := idx.N()
	offset := make([]uint64, n)
	for k := range w.keymap {
		i := idx.Index(k)
		offset[i] = k
	}

	if _, err := writeAll(tee, u64sToByteSlice(offset)); err != nil {
		return err
	}
	w.off += n * 8
	return nil
}

func (w *Writer) addRecord(key uint64, val []byte) (bool, error) {
	if uint64(len(val)) > uint64(1<<32)-1 {
		return false, ErrValueTooLarge
	}
	if _, ok := w.keymap[key]; ok {
		return false, ErrExists
	}

	v := &valueRef{off: w.off, vlen: uint32(len(val))}
	w.keymap[key] = v

	if len(val) > 0 {
		if err := w.writeRecord(val, v.off); err != nil {
			return false, err
		}
		w.valSize += uint64(len(val))
	}

	return true, nil
}

func (w *Writer) writeRecord(val []byte, off uint64) error {
	var o [8]byte
	var c [8]byte

	be := binary.BigEndian
	be.PutUint64(o[:], off)

	h := siphash.New(w.salt)
	h.Write(o[:])
	h.Write(val)
	be.PutUint64(c[:], h.Sum64())

	if _, err := writeAll(w.fd, c[:]); err != nil {
		return err
	}
	if _, err := writeAll(w.fd, val); err != nil {
		return err
	}

	w.off += uint64(len(val)) + 8
	return nil
}

func writeAll(w io.Writer, buf []byte) (int, error) {
	n, err := w.Write(buf)
	if err != nil {
		return 0, err
	}
	if n != len(buf) {
		return n, errShortWrite("db", n)
	}
	return n, nil
}
