// index.go -- query path (C6 hot path)
//
// Grounded on spec.md 4.6's index()/index_no_remap()/index_single_part()
// pseudocode and the teacher's chd.go Find() (bucket -> pilot -> slot
// chain, single allocation-free lookup).

package ptrhash

// Index maps a key to its assigned slot. Keys outside the original set
// still produce an answer in [0, N) - the query never fails - but the
// answer is meaningless; see doc.go.
func (idx *Index[K]) Index(key K) uint64 {
	h := idx.hasher(key, idx.seed)
	s := idx.slotFor(h)
	if s < idx.n {
		return s
	}
	return idx.remap.Index(s - idx.n)
}

// IndexNoRemap is Index without the final remap branch: it returns
// values in [0, slotsTotal) rather than [0, N).
func (idx *Index[K]) IndexNoRemap(key K) uint64 {
	h := idx.hasher(key, idx.seed)
	return idx.slotFor(h)
}

// IndexSinglePart is Index specialized for a layout with exactly one
// part: it skips the part-offset addition entirely.
func (idx *Index[K]) IndexSinglePart(key K) uint64 {
	h := idx.hasher(key, idx.seed)
	b := idx.l.bucketInPart(h.Hi, idx.bf)
	pilot := idx.pilots[b]
	s := idx.l.slotInPart(h.Lo, pilot, idx.seed)
	if s < idx.n {
		return s
	}
	return idx.remap.Index(s - idx.n)
}

// slotFor computes a hash's global slot, including the part offset.
func (idx *Index[K]) slotFor(h H) uint64 {
	part := idx.l.part(h.Hi)
	base := part * idx.l.bucketsPerPart
	b := base + idx.l.bucketInPart(h.Hi, idx.bf)
	pilot := idx.pilots[b]
	localSlot := idx.l.slotInPart(h.Lo, pilot, idx.seed)
	return part*idx.l.slotsPerPart + localSlot
}

// N returns the number of keys the index was built over.
func (idx *Index[K]) N() uint64 { return idx.n }

// MaxIndex returns the exclusive upper bound of IndexNoRemap's range,
// slotsTotal, whether or not a remap table is present.
func (idx *Index[K]) MaxIndex() uint64 {
	return idx.l.slotsTotal
}

// SlotsPerPart returns the number of slots in a single part.
func (idx *Index[K]) SlotsPerPart() uint64 { return idx.l.slotsPerPart }

// Parts returns the number of parts the key set was split across.
func (idx *Index[K]) Parts() uint64 { return idx.l.parts }

// BitsPerElement returns the amortized space cost of the pilot table
// and the remap table, each expressed in bits per original key.
func (idx *Index[K]) BitsPerElement() (pilotBits, remapBits float64) {
	if idx.n == 0 {
		return 0, 0
	}
	pilotBits = float64(len(idx.pilots)*8) / float64(idx.n)
	remapBits = float64(idx.remap.Len()*32) / float64(idx.n)
	return pilotBits, remapBits
}
