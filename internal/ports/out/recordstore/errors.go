package recordstore

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist in the partition.
	ErrNotFound = errors.New("record not found")

	// ErrBatchTooLarge indicates a batch exceeds MaxBatchOps. No op is applied.
	ErrBatchTooLarge = errors.New("batch exceeds max operations")

	// ErrInvalidOp indicates a malformed batch op (empty ID, unknown partition
	// or kind). No op is applied.
	ErrInvalidOp = errors.New("invalid batch operation")
)
