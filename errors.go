package snapkv

import (
	"errors"

	"github.com/jrhy/snapkv/pmap"
)

var (
	// ErrTxClosed is returned by every operation on a committed or rolled
	// back transaction.
	ErrTxClosed = errors.New("snapkv: transaction closed")
	// ErrTxNotWritable is returned when a read-only transaction is asked
	// to mutate.
	ErrTxNotWritable = errors.New("snapkv: transaction not writable")
	// ErrWriteContention is returned when the write gate could not be
	// acquired under the configured WritePolicy.
	ErrWriteContention = errors.New("snapkv: write contention")
	// ErrCorruption reports a structural invariant violation in a map.
	ErrCorruption = pmap.ErrCorruption
	// ErrKeyAlreadyExists is returned by Put when the key is present.
	ErrKeyAlreadyExists = errors.New("snapkv: key already exists")
	// ErrValNotExpectedValue is returned by Putc and Delc when the current
	// value does not match the check value.
	ErrValNotExpectedValue = errors.New("snapkv: value not the expected value")
	// ErrVersionUnavailable is returned by BeginReadAt for versions that
	// are not retained.
	ErrVersionUnavailable = errors.New("snapkv: version unavailable")
	// ErrDatabaseClosed is returned by Begin calls after Close, and by a
	// second Close.
	ErrDatabaseClosed = errors.New("snapkv: database closed")
)
