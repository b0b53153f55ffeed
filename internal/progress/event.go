// Package progress implements the fire-and-forget progress event channel:
// stage/status/progress/message tuples published per (owner, operation) and
// fanned out to in-process subscribers and WebSocket clients. Events are a
// best-effort side channel, never a correctness mechanism.
package progress

// Status is the lifecycle state an event reports. Transitions are monotonic:
// queued -> started -> progress* -> completed | failed.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusStarted   Status = "started"
	StatusProgress  Status = "progress"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Stage names reported by the pipelines.
const (
	StagePreparingFolders      = "preparing_folders"
	StageUploadingEvidence     = "uploading_evidence"
	StageUpdatingLogbook       = "updating_logbook"
	StageGeneratingSpreadsheet = "generating_spreadsheet"
)

// Event is the payload consumed by the realtime channel.
type Event struct {
	OperationID string         `json:"operation_id"`
	OwnerID     string         `json:"owner_id"`
	Status      Status         `json:"status"`
	Stage       string         `json:"stage,omitempty"`
	Message     string         `json:"message"`
	Progress    int            `json:"progress"`
	Extra       map[string]any `json:"extra,omitempty"`
}
