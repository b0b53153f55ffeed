// Package batch implements the upload orchestrator: it processes one batch
// of staged files for one owner, normalizing formats, resolving destination
// folders, generating collision-free names, uploading, and reporting
// progress. Batches run to a terminal status; the caller persists the
// per-file results.
package batch

import (
	"github.com/fieldlogger/evidencedrive/internal/category"
)

// Task is one staged file to be moved into the remote store.
type Task struct {
	// SourcePath is the staged file on local disk. The batch owns it: it is
	// deleted once the task has been attempted, success or failure.
	SourcePath string
	// OriginalName is the name the file was uploaded with.
	OriginalName string
	// DisplayName optionally overrides the derived name.
	DisplayName string
}

// Batch is one logical unit of staged files sharing progress reporting.
// It is forgotten once a terminal status has been broadcast; only the
// per-file results outlive it.
type Batch struct {
	ID       string
	OwnerID  string
	Category category.Category
	Tasks    []Task
}

// Result is the immutable value produced per successfully uploaded task.
// The domain layer persists it as a permanent evidence record.
type Result struct {
	Category    category.Category
	PeriodLabel string
	FolderURL   string
	FileURL     string
	FileName    string
}
