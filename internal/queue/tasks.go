// Package queue defines the task types exchanged between the API-facing
// layer and the worker pool, plus the enqueue and processing sides. Retry
// policy lives entirely here: the pipelines themselves never retry, so a
// failed unit is re-enqueued whole or not at all.
package queue

import "time"

// Task type names routed through the asynq mux.
const (
	TypeUploadBatch  = "evidence:upload_batch"
	TypePublishEntry = "evidence:publish_entry"
)

// UploadTaskPayload describes one staged file inside a batch payload.
type UploadTaskPayload struct {
	SourcePath   string `json:"source_path"`
	OriginalName string `json:"original_name"`
	DisplayName  string `json:"display_name,omitempty"`
}

// UploadBatchPayload is the wire form of an upload batch.
type UploadBatchPayload struct {
	BatchID  string              `json:"batch_id"`
	OwnerID  string              `json:"owner_id"`
	Category string              `json:"category"`
	Tasks    []UploadTaskPayload `json:"tasks"`
}

// PublishEntryPayload is the wire form of a publication request. Evidence
// is referenced by staged local paths; the worker resolves them.
type PublishEntryPayload struct {
	SubjectID     string    `json:"subject_id"`
	OperationID   string    `json:"operation_id"`
	EvidencePaths []string  `json:"evidence_paths"`
	TargetDate    time.Time `json:"target_date"`
}
