package batch

import (
	"errors"
	"fmt"
)

// ErrEmptyBatch rejects a batch with no tasks before any remote call.
var ErrEmptyBatch = errors.New("batch: no files to upload")

// LocalError reports a staged file that is missing or unreadable. It is
// fatal for the whole batch: partially uploading an inconsistent batch is
// worse than failing fast.
type LocalError struct {
	Path string
	Err  error
}

func (e *LocalError) Error() string {
	return fmt.Sprintf("batch: staged file %s: %v", e.Path, e.Err)
}

func (e *LocalError) Unwrap() error {
	return e.Err
}
