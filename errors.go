package ivarray

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned when a key lies beyond the array's capacity,
	// or when a lookup hits an unused slot.
	ErrOutOfRange = errors.New("key out of range")

	// ErrNotFound is returned by Modify and Remove for an unused slot.
	ErrNotFound = errors.New("key not found")

	// ErrAlreadyExists is returned by Insert for a slot that is in use.
	ErrAlreadyExists = errors.New("key already exists")

	// ErrKeyTooLarge is returned by Insert for keys at or above the
	// configured maximum key id.
	ErrKeyTooLarge = errors.New("key too large")

	// ErrValueTooLargeForCache is returned when a value that is not long
	// does not fit into the cache at all.
	ErrValueTooLargeForCache = errors.New("value too large for cache")

	// ErrBlockRead wraps block store read failures.
	ErrBlockRead = errors.New("block read failed")

	// ErrBlockWrite wraps block store write and free failures.
	ErrBlockWrite = errors.New("block write failed")

	// ErrInitialization is returned by Build and Open when the index file or
	// the block store cannot be set up.
	ErrInitialization = errors.New("initialization failed")

	// ErrClosed is returned by operations on a closed array.
	ErrClosed = errors.New("array closed")
)

// KeyError records a failed per-key operation.
//
// It unwraps to one of the sentinel errors above and, for block store
// failures, to the store's own error as well.
type KeyError struct {
	Op  string
	Key uint32
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("ivarray: %s key %d: %v", e.Op, e.Key, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

func keyError(op string, key uint32, err error) error {
	return &KeyError{Op: op, Key: key, Err: err}
}

// storeError joins a sentinel with the block store's cause.
func storeError(op string, key uint32, sentinel, cause error) error {
	return &KeyError{Op: op, Key: key, Err: fmt.Errorf("%w: %w", sentinel, cause)}
}

func initError(what string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrInitialization, what)
	}
	return fmt.Errorf("%w: %s: %w", ErrInitialization, what, cause)
}
