package store

import (
	"testing"

	"github.com/opencoff/ptrhash"
)

func assert(t *testing.T, cond bool, msg string, args ...interface{}) {
	t.Helper()
	if !cond {
		t.Fatalf(msg, args...)
	}
}

func TestStoreBasic(t *testing.T) {
	data := map[uint64]string{
		1:  "one",
		2:  "two",
		3:  "three",
		42: "the answer",
		7:  "lucky",
	}

	s, err := New(data, ptrhash.DefaultParams())
	assert(t, err == nil, "New: %v", err)
	assert(t, s.Len() == len(data), "Len: exp %d, saw %d", len(data), s.Len())

	for k, want := range data {
		got, ok := s.Get(k)
		assert(t, ok, "Get(%d): not found", k)
		assert(t, got == want, "Get(%d): exp %q, saw %q", k, want, got)
		assert(t, s.Contains(k), "Contains(%d): false", k)
	}
}

// TestStoreRejectsNonMembers is the verified-store property: a key
// that was never inserted must come back (zero, false), never a
// value that happens to live in whatever slot the MPHF computes for
// it.
func TestStoreRejectsNonMembers(t *testing.T) {
	data := map[uint64]string{
		10: "ten",
		20: "twenty",
		30: "thirty",
	}

	s, err := New(data, ptrhash.DefaultParams())
	assert(t, err == nil, "New: %v", err)

	for _, k := range []uint64{0, 1, 11, 999, 1 << 40} {
		if _, present := data[k]; present {
			continue
		}
		got, ok := s.Get(k)
		assert(t, !ok, "Get(%d): unexpectedly found %q", k, got)
		assert(t, got == "", "Get(%d): expected zero value, saw %q", k, got)
		assert(t, !s.Contains(k), "Contains(%d): unexpectedly true", k)
	}
}

func TestStoreEmpty(t *testing.T) {
	_, err := New(map[uint64]string{}, ptrhash.DefaultParams())
	assert(t, err == ptrhash.ErrEmptyKeySet, "New(empty): exp ErrEmptyKeySet, saw %v", err)
}

func TestStoreForEach(t *testing.T) {
	data := map[uint64]int{1: 10, 2: 20, 3: 30, 4: 40}
	s, err := New(data, ptrhash.DefaultParams())
	assert(t, err == nil, "New: %v", err)

	seen := make(map[uint64]int)
	s.ForEach(func(k uint64, v int) bool {
		seen[k] = v
		return true
	})
	assert(t, len(seen) == len(data), "ForEach: exp %d pairs, saw %d", len(data), len(seen))
	for k, v := range data {
		got, ok := seen[k]
		assert(t, ok, "ForEach: missing key %d", k)
		assert(t, got == v, "ForEach: key %d: exp %d, saw %d", k, v, got)
	}
}

func TestStoreHashedStringKeys(t *testing.T) {
	data := map[string]int{
		"alpha":   1,
		"bravo":   2,
		"charlie": 3,
		"delta":   4,
	}

	hasher := func(key string, seed uint64) ptrhash.H { return ptrhash.StringHash([]byte(key), seed) }
	s, err := NewHashed(data, hasher, ptrhash.DefaultParams())
	assert(t, err == nil, "NewHashed: %v", err)

	for k, want := range data {
		got, ok := s.Get(k)
		assert(t, ok, "Get(%q): not found", k)
		assert(t, got == want, "Get(%q): exp %d, saw %d", k, want, got)
	}

	_, ok := s.Get("not-a-member")
	assert(t, !ok, "Get(not-a-member): unexpectedly found")
}
