// errors.go - public errors exposed by ptrhash

package ptrhash

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyKeySet is returned when Build is called with zero keys.
	ErrEmptyKeySet = errors.New("ptrhash: empty key set")

	// ErrUnsolvableAfterSeedBudget is returned when every seed in the
	// retry budget failed to produce a conflict-free pilot assignment.
	ErrUnsolvableAfterSeedBudget = errors.New("ptrhash: no solution found within seed budget")

	// ErrRemapTooLarge is returned when remap construction finds more
	// taken overflow slots than free slots below N to redirect them to.
	ErrRemapTooLarge = errors.New("ptrhash: remap table too large for backing store")

	// ErrNoKey denotes a query key that is not a member of the original
	// key set. No function in this package returns it: store.Store.Get
	// reports a miss as ok=false, and package persist has its own ErrNoKey.
	ErrNoKey = errors.New("ptrhash: no such key")

	// ErrFrozen is returned when attempting to mutate an already-built
	// or already-closed writer.
	ErrFrozen = errors.New("ptrhash: already frozen")

	// ErrExists is returned when a duplicate key is added to a builder
	// that rejects duplicates.
	ErrExists = errors.New("ptrhash: key exists")

	// ErrValueTooLarge is returned if a stored value exceeds 2^32-1 bytes.
	ErrValueTooLarge = errors.New("ptrhash: value larger than 2^32-1 bytes")

	// ErrTooSmall denotes a buffer too short to hold a valid encoding.
	// UnmarshalIndex does not return it; a truncated encoding surfaces
	// as the io.ReadFull error (io.EOF or io.ErrUnexpectedEOF).
	ErrTooSmall = errors.New("ptrhash: not enough data to unmarshal")
)

// IndistinguishableHashesError is a terminal build error: two distinct
// keys produced bit-identical hashes under every tried seed, so no
// pilot can ever separate them.
type IndistinguishableHashesError struct {
	Part       int
	BucketSize int
}

func (e *IndistinguishableHashesError) Error() string {
	return fmt.Sprintf("ptrhash: indistinguishable hashes in part %d, bucket of size %d", e.Part, e.BucketSize)
}

func errShortWrite(who string, n, want int) error {
	return fmt.Errorf("%s: incomplete write; exp %d, saw %d", who, want, n)
}
