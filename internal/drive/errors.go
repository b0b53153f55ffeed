// Package drive implements the remote store client: folder path resolution
// with per-parent caching, collision-free naming, uploads, replacement
// uploads, and public-read permissions over a hierarchical object store.
package drive

import (
	"errors"
	"fmt"
)

// ErrObjectNotFound is returned when a lookup by name finds nothing.
var ErrObjectNotFound = errors.New("drive: object not found")

// RemoteError wraps any failure of the underlying store API, carrying the
// original message. The client performs no retries; callers decide whether
// to re-enqueue the whole unit of work.
type RemoteError struct {
	Op  string // the client operation that failed, e.g. "create folder"
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("drive: %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func remoteErr(op string, err error) error {
	return &RemoteError{Op: op, Err: err}
}
