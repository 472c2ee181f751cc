package cerr

import (
	"errors"
	"fmt"

	"github.com/feeta/feeta/pkg/storage"
)

// StorageOp is what was being done to a stored record when it failed.
type StorageOp string

const (
	StorageRead  StorageOp = "read"
	StorageWrite StorageOp = "write"
)

// FromStorage codes a storage failure on record. A read of a missing record
// is NotFound and names it. Anything else is Internal, and op and record
// only reach the log.
func FromStorage(op StorageOp, record string, err error) error {
	if err == nil {
		return nil
	}
	if op == StorageRead && errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, record+" not found", err)
	}
	return NewError(Internal, "storage unavailable", fmt.Errorf("%s %s: %w", op, record, err))
}
