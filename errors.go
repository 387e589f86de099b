package filtercache

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFilterValue = errors.New("filtercache: filter value contains key delimiter")
	ErrInvalidPage        = errors.New("filtercache: page must be >= 1 and size > 0")
	ErrPageSize           = errors.New("filtercache: page size not accepted")
	ErrCorruptEntry       = errors.New("filtercache: corrupt cache entry")
)

// CorruptRowError reports a stored member (or total) that could not be decoded.
// It matches ErrCorruptEntry with errors.Is.
type CorruptRowError struct {
	Key  string
	Rank int64 // -1 for the total count
	Err  error
}

func (e *CorruptRowError) Error() string {
	if e.Rank < 0 {
		return fmt.Sprintf("corrupt total %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("corrupt row %q at rank %d: %v", e.Key, e.Rank, e.Err)
}

func (e *CorruptRowError) Unwrap() []error {
	errs := make([]error, 0, 2)
	errs = append(errs, ErrCorruptEntry)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
