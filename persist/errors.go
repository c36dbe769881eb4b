// errors.go -- sentinel errors for the persist package
//
// Grounded on the teacher's errors.go: plain sentinel errors rather
// than a typed hierarchy, since none of these are inspected by
// structured fields (unlike ptrhash.IndistinguishableHashesError).

package persist

import (
	"errors"
	"fmt"
)

var (
	// ErrFrozen is returned by Add/AddKeyVals/Freeze/Abort once a
	// Writer has already been frozen or aborted.
	ErrFrozen = errors.New("persist: db already frozen")

	// ErrValueTooLarge is returned if a value exceeds 2^32-1 bytes.
	ErrValueTooLarge = errors.New("persist: value is larger than 2^32-1 bytes")

	// ErrExists is returned by Add/AddKeyVals for a duplicate key.
	ErrExists = errors.New("persist: key exists in DB")

	// ErrNoKey is returned by Reader.Find/Get for a key absent from
	// the database, including keys that hash to a slot but fail the
	// stored-key comparison (see store.Store for the same pattern
	// applied to in-memory builds).
	ErrNoKey = errors.New("persist: no such key")

	// ErrTooSmall is returned when a file is smaller than the fixed
	// 64-byte header plus the 32-byte trailer.
	ErrTooSmall = errors.New("persist: file too small or corrupted")

	// ErrBadMagic is returned when a file's header does not start
	// with the expected magic bytes.
	ErrBadMagic = errors.New("persist: bad file magic")

	// ErrChecksum is returned when the trailing SHA-512/256 checksum
	// does not match the header and offset table contents.
	ErrChecksum = errors.New("persist: checksum mismatch")
)

func errShortWrite(who string, n int) error {
	return fmt.Errorf("persist: %s: incomplete write; wrote %d bytes", who, n)
}
