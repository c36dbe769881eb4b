// reader.go -- read path for the on-disk constant DB built by Writer
//
// Grounded on the teacher's dbreader.go: 64-byte header decode, strong
// SHA-512/256 checksum verification over header+offset-table+index
// bytes before trusting anything, mmap'd offset table, ARC-cached
// decoded value records. Collapses the teacher's CHD/BBHash magic
// dispatch to a single ptrhash magic, since this port only ever
// builds a ptrhash.Index (see writer.go).

package persist

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/dchest/siphash"
	"github.com/hashicorp/golang-lru/arc/v2"
	"github.com/opencoff/go-mmap"

	"github.com/opencoff/ptrhash"
)

// Reader is the query interface for a database previously built with
// Writer. The only meaningful operations are Get/Find; a Reader is
// safe for concurrent use by multiple goroutines once opened.
type Reader struct {
	idx *ptrhash.Index[uint64]

	cache *arc.ARCCache[uint64, []byte]

	flags uint32
	nkeys uint64
	salt  []byte

	// mmap'd offset table: either nkeys*8 bytes of bare keys
	// (keys-only db) or nkeys*(8+8) bytes of (key,valueOffset) pairs
	// followed by nkeys*4 bytes of value lengths.
	offtblBytes []byte
	vlenBytes   []byte

	mm *mmap.Mapping
	fd *os.File
	fn string
}

// NewReader opens a previously-built database file and prepares it for
// querying. cacheSize bounds the number of decoded value records kept
// in the ARC cache (default 128 if <= 0).
func NewReader(fn string, cacheSize int) (rd *Reader, err error) {
	fd, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			fd.Close()
		}
	}()

	if cacheSize <= 0 {
		cacheSize = 128
	}

	rd = &Reader{fd: fd, fn: fn}

	st, err := fd.Stat()
	if err != nil {
		return nil, fmt.Errorf("%s: can't stat: %w", fn, err)
	}
	if st.Size() < 64+32 {
		return nil, ErrTooSmall
	}

	var hdrb [64]byte
	if _, err = io.ReadFull(fd, hdrb[:]); err != nil {
		return nil, fmt.Errorf("%s: can't read header: %w", fn, err)
	}

	alpha, lambda, offtbl, err := rd.decodeHeader(hdrb[:], st.Size())
	if err != nil {
		return nil, err
	}

	if err = rd.verifyChecksum(hdrb[:], offtbl, st.Size()); err != nil {
		return nil, err
	}

	tblsz := rd.nkeys * (8 + 8 + 4)
	if rd.keysOnly() {
		tblsz = rd.nkeys * 8
	}
	if uint64(st.Size()) < 64+32+tblsz {
		return nil, fmt.Errorf("%s: corrupt offset table", fn)
	}

	rd.cache, err = arc.NewARC[uint64, []byte](cacheSize)
	if err != nil {
		return nil, err
	}

	mmapsz := st.Size() - int64(offtbl) - 32
	mm := mmap.New(fd)
	mapping, err := mm.Map(mmapsz, int64(offtbl), mmap.PROT_READ, mmap.F_READAHEAD)
	if err != nil {
		return nil, fmt.Errorf("%s: can't mmap %d bytes at off %d: %w", fn, mmapsz, offtbl, err)
	}
	rd.mm = mapping

	bs := mapping.Bytes()
	offsz := rd.nkeys * (8 + 8)
	vlensz := rd.nkeys * 4
	if rd.keysOnly() {
		offsz = rd.nkeys * 8
		vlensz = 0
	}
	rd.offtblBytes = bs[:offsz]
	if vlensz > 0 {
		rd.vlenBytes = bs[offsz : offsz+vlensz]
	}

	// The writer 8-byte-aligns the file position before writing the
	// marshaled index (see Writer.Freeze), which can insert a padding
	// gap here when offsz+vlensz isn't already a multiple of 8 (e.g.
	// an odd key count in a keys+values database, since vlensz is
	// nkeys*4).
	idxStart := offsz + vlensz
	if pad := idxStart % 8; pad != 0 {
		idxStart += 8 - pad
	}
	idxBytes := bs[idxStart:]
	idx, err := ptrhash.UnmarshalIndex[uint64](&byteReader{b: idxBytes}, ptrhash.FastIntHash, ptrhash.Params{
		Alpha:  alpha,
		Lambda: lambda,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: can't unmarshal index: %w", fn, err)
	}
	rd.idx = idx

	return rd, nil
}

// byteReader adapts a byte slice to io.Reader so UnmarshalIndex can
// consume exactly the bytes it needs from the mmap'd region without a
// length prefix: it reads only as far as the encoded index goes.
type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}

func (rd *Reader) keysOnly() bool { return rd.flags&_DB_KeysOnly != 0 }

// Len returns the number of keys in the database.
func (rd *Reader) Len() int { return int(rd.nkeys) }

// Index returns the MPHF slot a key maps to, in [0, Len()). As with
// ptrhash.Index.Index, a key outside the original set still produces
// an answer; callers wanting membership semantics should use Find or
// Get instead.
func (rd *Reader) Index(key uint64) uint64 { return rd.idx.Index(key) }

// Close releases the mmap and the underlying file descriptor.
func (rd *Reader) Close() error {
	if rd.mm != nil {
		rd.mm.Unmap()
		rd.mm = nil
	}
	if rd.cache != nil {
		rd.cache.Purge()
	}
	return rd.fd.Close()
}

// Get is Find but reports absence as ok=false instead of an error.
func (rd *Reader) Get(key uint64) ([]byte, bool) {
	v, err := rd.Find(key)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Find looks up key and returns its value (nil for a keys-only
// database). It returns ErrNoKey if key was never added, and a
// checksum or I/O error if the underlying file is corrupted.
func (rd *Reader) Find(key uint64) ([]byte, error) {
	if v, ok := rd.cache.Get(key); ok {
		return v, nil
	}

	i := rd.idx.Index(key)
	if i >= rd.nkeys {
		return nil, ErrNoKey
	}

	if rd.keysOnly() {
		stored := binary.LittleEndian.Uint64(rd.offtblBytes[i*8:])
		if stored != key {
			return nil, ErrNoKey
		}
		rd.cache.Add(key, nil)
		return nil, nil
	}

	j := i * 16
	stored := binary.LittleEndian.Uint64(rd.offtblBytes[j:])
	if stored != key {
		return nil, ErrNoKey
	}
	off := binary.LittleEndian.Uint64(rd.offtblBytes[j+8:])
	vlen := binary.LittleEndian.Uint32(rd.vlenBytes[i*4:])

	val, err := rd.decodeRecord(off, vlen)
	if err != nil {
		return nil, err
	}
	rd.cache.Add(key, val)
	return val, nil
}

// IterFunc calls fp once per stored (key, value) pair, in MPHF-slot
// order. Iteration stops early if fp returns a non-nil error.
func (rd *Reader) IterFunc(fp func(key uint64, val []byte) error) error {
	if rd.keysOnly() {
		for i := uint64(0); i < rd.nkeys; i++ {
			k := binary.LittleEndian.Uint64(rd.offtblBytes[i*8:])
			if err := fp(k, nil); err != nil {
				return err
			}
		}
		return nil
	}

	for i := uint64(0); i < rd.nkeys; i++ {
		j := i * 16
		k := binary.LittleEndian.Uint64(rd.offtblBytes[j:])
		off := binary.LittleEndian.Uint64(rd.offtblBytes[j+8:])
		vlen := binary.LittleEndian.Uint32(rd.vlenBytes[i*4:])
		val, err := rd.decodeRecord(off, vlen)
		if err != nil {
			return fmt.Errorf("iter: key %#x: %w", k, err)
		}
		if err := fp(k, val); err != nil {
			return err
		}
	}
	return nil
}

// DumpMeta writes a human-readable summary of the database to w.
func (rd *Reader) DumpMeta(w io.Writer) {
	kind := "KEYS+VALS"
	if rd.keysOnly() {
		kind = "KEYS"
	}
	fmt.Fprintf(w, "persist: <%s> %d keys, salt %#x, n=%d, maxidx=%d\n",
		kind, rd.nkeys, rd.salt, rd.idx.N(), rd.idx.MaxIndex())
}

func (rd *Reader) decodeRecord(off uint64, vlen uint32) ([]byte, error) {
	data := make([]byte, uint64(vlen)+8)
	if _, err := rd.fd.ReadAt(data, int64(off)); err != nil {
		return nil, err
	}

	be := binary.BigEndian
	csum := be.Uint64(data[:8])

	var o [8]byte
	be.PutUint64(o[:], off)

	h := siphash.New(rd.salt)
	h.Write(o[:])
	h.Write(data[8:])
	exp := h.Sum64()
	if csum != exp {
		return nil, fmt.Errorf("%s: corrupted record at off %d (exp %#x, saw %#x)", rd.fn, off, exp, csum)
	}
	return data[8:], nil
}

func (rd *Reader) verifyChecksum(hdrb []byte, offtbl uint64, sz int64) error {
	h := sha512.New512_256()
	h.Write(hdrb)

	remsz := sz - int64(offtbl) - 32
	if _, err := rd.fd.Seek(int64(offtbl), io.SeekStart); err != nil {
		return err
	}
	nw, err := io.CopyN(h, rd.fd, remsz)
	if err != nil {
		return fmt.Errorf("%s: metadata i/o error: %w", rd.fn, err)
	}
	if nw != remsz {
		return fmt.Errorf("%s: partial read verifying checksum, exp %d saw %d", rd.fn, remsz, nw)
	}

	var expsum [32]byte
	if _, err := rd.fd.Seek(sz-32, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.ReadFull(rd.fd, expsum[:]); err != nil {
		return fmt.Errorf("%s: checksum i/o error: %w", rd.fn, err)
	}

	csum := h.Sum(nil)
	if subtle.ConstantTimeCompare(csum, expsum[:]) != 1 {
		return fmt.Errorf("%w: %s", ErrChecksum, rd.fn)
	}

	_, err = rd.fd.Seek(int64(offtbl), io.SeekStart)
	return err
}

// decodeHeader validates the magic and returns (alpha, lambda, offtbl).
func (rd *Reader) decodeHeader(b []byte, sz int64) (float64, float64, uint64, error) {
	if string(b[:4]) != _Magic {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrBadMagic, b[:4])
	}

	be := binary.BigEndian
	i := 4
	rd.flags = be.Uint32(b[i : i+4])
	i += 4
	rd.salt = append([]byte(nil), b[i:i+16]...)
	i += 16
	rd.nkeys = be.Uint64(b[i : i+8])
	i += 8
	offtbl := be.Uint64(b[i : i+8])
	i += 8
	alpha := math.Float64frombits(be.Uint64(b[i : i+8]))
	i += 8
	lambda := math.Float64frombits(be.Uint64(b[i : i+8]))

	if offtbl < 64 || offtbl >= uint64(sz-32) {
		return 0, 0, 0, fmt.Errorf("%s: corrupt header (offtbl %d)", rd.fn, offtbl)
	}

	return alpha, lambda, offtbl, nil
}
