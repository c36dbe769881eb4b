// persist_test.go -- writer/reader round-trip tests
//
// Grounded in shape on the teacher's persist_test.go: build a database
// to a temp file, reopen it, and confirm every written key round-trips
// while an unwritten key is honestly rejected.

package persist

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencoff/ptrhash"
)

func assert(t *testing.T, cond bool, msg string, args ...interface{}) {
	t.Helper()
	if !cond {
		t.Fatalf(msg, args...)
	}
}

func tmpDBName(t *testing.T) string {
	return filepath.Join(t.TempDir(), "test.db")
}

func TestWriterReaderRoundTrip(t *testing.T) {
	fn := tmpDBName(t)

	w, err := NewWriter(fn, ptrhash.DefaultParams())
	assert(t, err == nil, "NewWriter: %v", err)

	want := make(map[uint64][]byte, 5000)
	for i := uint64(0); i < 5000; i++ {
		want[i] = []byte(fmt.Sprintf("value-%d", i))
	}
	for k, v := range want {
		assert(t, w.Add(k, v) == nil, "Add(%d): failed", k)
	}
	assert(t, w.Len() == len(want), "Len: exp %d, saw %d", len(want), w.Len())

	assert(t, w.Freeze() == nil, "Freeze: failed")

	rd, err := NewReader(fn, 128)
	assert(t, err == nil, "NewReader: %v", err)
	defer rd.Close()

	assert(t, rd.Len() == len(want), "Len: exp %d, saw %d", len(want), rd.Len())

	for k, v := range want {
		got, err := rd.Find(k)
		assert(t, err == nil, "Find(%d): %v", k, err)
		assert(t, bytes.Equal(got, v), "Find(%d): exp %q, saw %q", k, v, got)
	}

	for _, k := range []uint64{999999, 1 << 40, 5000} {
		_, err := rd.Find(k)
		assert(t, err == ErrNoKey, "Find(%d): exp ErrNoKey, saw %v", k, err)
	}
}

func TestWriterReaderKeysOnly(t *testing.T) {
	fn := tmpDBName(t)

	w, err := NewWriter(fn, ptrhash.DefaultParams())
	assert(t, err == nil, "NewWriter: %v", err)

	keys := []uint64{10, 20, 30, 40, 50}
	for _, k := range keys {
		assert(t, w.Add(k, nil) == nil, "Add(%d): failed", k)
	}
	assert(t, w.Freeze() == nil, "Freeze: failed")

	rd, err := NewReader(fn, 16)
	assert(t, err == nil, "NewReader: %v", err)
	defer rd.Close()

	for _, k := range keys {
		v, ok := rd.Get(k)
		assert(t, ok, "Get(%d): not found", k)
		assert(t, len(v) == 0, "Get(%d): exp empty value, saw %q", k, v)
	}

	_, ok := rd.Get(999)
	assert(t, !ok, "Get(999): unexpectedly found")
}

func TestWriterReaderIterFunc(t *testing.T) {
	fn := tmpDBName(t)

	w, err := NewWriter(fn, ptrhash.DefaultParams())
	assert(t, err == nil, "NewWriter: %v", err)

	want := map[uint64]string{1: "a", 2: "b", 3: "c", 4: "d"}
	for k, v := range want {
		assert(t, w.Add(k, []byte(v)) == nil, "Add(%d): failed", k)
	}
	assert(t, w.Freeze() == nil, "Freeze: failed")

	rd, err := NewReader(fn, 16)
	assert(t, err == nil, "NewReader: %v", err)
	defer rd.Close()

	seen := make(map[uint64]string)
	err = rd.IterFunc(func(k uint64, v []byte) error {
		seen[k] = string(v)
		return nil
	})
	assert(t, err == nil, "IterFunc: %v", err)
	assert(t, len(seen) == len(want), "IterFunc: exp %d records, saw %d", len(want), len(seen))
	for k, v := range want {
		assert(t, seen[k] == v, "IterFunc: key %d: exp %q, saw %q", k, v, seen[k])
	}
}

func TestWriterAbort(t *testing.T) {
	fn := tmpDBName(t)

	w, err := NewWriter(fn, ptrhash.DefaultParams())
	assert(t, err == nil, "NewWriter: %v", err)

	assert(t, w.Add(1, []byte("x")) == nil, "Add: failed")
	assert(t, w.Abort() == nil, "Abort: failed")

	_, err = os.Stat(fn)
	assert(t, os.IsNotExist(err), "Abort: expected %s to not exist", fn)

	err = w.Add(2, []byte("y"))
	assert(t, err == ErrFrozen, "Add after Abort: exp ErrFrozen, saw %v", err)
}

func TestWriterRejectsDuplicateKey(t *testing.T) {
	fn := tmpDBName(t)

	w, err := NewWriter(fn, ptrhash.DefaultParams())
	assert(t, err == nil, "NewWriter: %v", err)
	defer w.Abort()

	assert(t, w.Add(1, []byte("first")) == nil, "Add: failed")
	err = w.Add(1, []byte("second"))
	assert(t, err == ErrExists, "Add(dup): exp ErrExists, saw %v", err)
}
