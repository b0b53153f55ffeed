package drive

import (
	"context"
	"io"
)

// API is the narrow surface the client consumes from the remote store.
// Defined at the consumer per Go convention "accept interfaces, return
// structs"; the production implementation is the Google Drive adapter in
// google.go, tests substitute an in-memory fake.
type API interface {
	// List returns the non-trashed children of parentID. nameFilter and
	// mimeFilter narrow the result when non-empty. Results are ordered by
	// creation time so duplicate names resolve deterministically to the
	// oldest object.
	List(ctx context.Context, parentID, nameFilter, mimeFilter string) ([]Object, error)

	// CreateFolder creates a folder named name under parentID.
	CreateFolder(ctx context.Context, parentID, name string) (*Object, error)

	// CreateFile uploads content as a new object named name under parentID.
	// No collision checking is performed; the caller supplies an already
	// unique name.
	CreateFile(ctx context.Context, parentID, name, mimeType string, content io.Reader) (*Object, error)

	// Delete removes an object by id.
	Delete(ctx context.Context, id string) error

	// AllowAnyoneRead grants anyone-with-link read access. Idempotent.
	AllowAnyoneRead(ctx context.Context, id string) error
}
