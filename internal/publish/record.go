package publish

import (
	"context"
	"time"
)

// Record is the subject being published: one logbook entry owned by one
// field worker. The pipeline reads it for report rows and writes back the
// publication outcome.
type Record struct {
	ID         string
	OwnerID    string
	OwnerName  string
	Date       time.Time
	Activities []string
	Notes      string

	// Set once the entry has been published.
	FolderID    string
	FolderURL   string
	PublishedAt *time.Time
}

// RecordStore is the persistence contract the pipeline depends on. The
// ledger package provides the SQLite implementation; callers embedding the
// pipeline in a larger system supply their own.
type RecordStore interface {
	// Record loads one entry by id.
	Record(ctx context.Context, id string) (*Record, error)

	// MarkPublished stores the folder id/url and publication time on the
	// entry.
	MarkPublished(ctx context.Context, id, folderID, folderURL string, at time.Time) error

	// PublishedInMonth returns all published entries whose date falls in
	// the given calendar month, ordered by publication time, then date,
	// then owner name.
	PublishedInMonth(ctx context.Context, year int, month time.Month) ([]Record, error)
}
