// Package store implements a verified, immutable key-value store on
// top of a ptrhash.Index.
//
// Grounded on the original implementation's VerifiedKvStore
// (verified_kv_store.rs): an MPHF gives O(1) lookup but, like any
// minimal perfect hash, produces *some* slot for any key, member or
// not. The store keeps a copy of every key alongside its value so Get
// can compare the candidate slot's stored key against the query key
// before trusting it - non-member queries get (zero value, false)
// instead of whatever value happened to land in that slot. This is
// the same tradeoff the teacher's dbreader.go makes against the
// offset table it keeps next to the MPHF on disk (see package
// persist); this package is the equivalent in-memory-only form for
// callers that never need to touch disk.
package store

import (
	"fmt"

	"github.com/opencoff/ptrhash"
)

// Store is an immutable, verified key-value store: once built, it
// never allocates on the lookup path and Get never returns a value
// for a key it wasn't built with.
type Store[K comparable, V any] struct {
	idx    *ptrhash.Index[K]
	keys   []K
	values []V
}

// New builds a Store over data using FastIntHash. Use New for
// integer-keyed stores; string or other aggregate keys should use
// NewHashed with an appropriate Hasher (see ptrhash.StringHash,
// ptrhash.XXHash64).
func New[V any](data map[uint64]V, params ptrhash.Params) (*Store[uint64, V], error) {
	return NewHashed(data, ptrhash.FastIntHash, params)
}

// NewHashed builds a Store over data using an explicit hasher, for key
// types other than uint64 (strings, structs, etc).
func NewHashed[K comparable, V any](data map[K]V, hasher ptrhash.Hasher[K], params ptrhash.Params) (*Store[K, V], error) {
	if len(data) == 0 {
		return nil, ptrhash.ErrEmptyKeySet
	}

	keys := make([]K, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}

	idx, err := ptrhash.Build(keys, hasher, params)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	n := idx.N()
	skeys := make([]K, n)
	svals := make([]V, n)
	for k, v := range data {
		i := idx.Index(k)
		skeys[i] = k
		svals[i] = v
	}

	return &Store[K, V]{idx: idx, keys: skeys, values: svals}, nil
}

// Get looks up key and reports whether it was a member of the data the
// store was built from. A false return always pairs with the zero
// value of V - never a value belonging to some other key.
func (s *Store[K, V]) Get(key K) (V, bool) {
	i := s.idx.Index(key)
	if i < uint64(len(s.keys)) && s.keys[i] == key {
		return s.values[i], true
	}
	var zero V
	return zero, false
}

// Contains reports whether key was a member of the data the store was
// built from, without paying for a value copy.
func (s *Store[K, V]) Contains(key K) bool {
	i := s.idx.Index(key)
	return i < uint64(len(s.keys)) && s.keys[i] == key
}

// Len returns the number of key-value pairs in the store.
func (s *Store[K, V]) Len() int { return len(s.keys) }

// ForEach calls fn once per stored (key, value) pair, in slot order.
// Iteration stops early if fn returns false.
func (s *Store[K, V]) ForEach(fn func(key K, val V) bool) {
	for i, k := range s.keys {
		if !fn(k, s.values[i]) {
			return
		}
	}
}

// Index exposes the underlying MPHF, for callers that want the raw
// slot assignment (e.g. to lay out a parallel array of their own)
// without paying for key verification on every lookup.
func (s *Store[K, V]) Index() *ptrhash.Index[K] { return s.idx }
