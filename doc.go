// doc.go - top level documentation

// Package ptrhash builds a minimal perfect hash function (MPHF) over a
// fixed set of keys, using a pilot-search and bucket-eviction
// construction in the PTHash family.
//
// Given N distinct keys, Build produces an Index that maps each key to
// a unique integer in [0, N) using a couple bits per key and answers
// queries in a handful of nanoseconds once the pilot table is cache
// resident. The index is immutable once built and safe for concurrent
// read-only use.
//
// Keys outside the original set still produce an answer - the query
// path never fails - but the answer is meaningless. Callers that need
// membership semantics should verify the candidate slot against a
// stored copy of the key themselves (see the store package) or use the
// persist package's on-disk format, which does this for them.
package ptrhash
