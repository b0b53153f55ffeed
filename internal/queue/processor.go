package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/fieldlogger/evidencedrive/internal/batch"
	"github.com/fieldlogger/evidencedrive/internal/category"
	"github.com/fieldlogger/evidencedrive/internal/progress"
	"github.com/fieldlogger/evidencedrive/internal/publish"
)

// RemoteStore is the full remote surface a worker unit needs; *drive.Client
// implements it.
type RemoteStore interface {
	batch.Store
	publish.Store
}

// StoreFactory builds a fresh remote store for one unit of work. Each unit
// gets its own folder cache and credential handle; nothing is shared across
// units.
type StoreFactory func(ctx context.Context) (RemoteStore, error)

// Records is the persistence surface the processor writes outcomes to.
type Records interface {
	publish.RecordStore
	SaveUploadResults(ctx context.Context, batchID, ownerID string, results []batch.Result) error
}

// Processor executes queued units of work. It is plugged into the asynq
// worker loop.
type Processor struct {
	stores      StoreFactory
	records     Records
	broadcaster *progress.Broadcaster
	rootFolder  string
	locale      string
	logger      *slog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(
	stores StoreFactory, records Records, broadcaster *progress.Broadcaster,
	rootFolder, locale string, logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		stores:      stores,
		records:     records,
		broadcaster: broadcaster,
		rootFolder:  rootFolder,
		locale:      locale,
		logger:      logger,
	}
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeUploadBatch, p.handleUploadBatch)
	mux.HandleFunc(TypePublishEntry, p.handlePublishEntry)

	return mux
}

// handleUploadBatch runs one upload batch to a terminal status. Results of
// tasks that completed before a failure are persisted either way; the
// returned error hands retry policy back to the queue.
func (p *Processor) handleUploadBatch(ctx context.Context, task *asynq.Task) error {
	var payload UploadBatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("queue: decoding upload batch payload: %w", err)
	}

	cat, err := category.Parse(payload.Category)
	if err != nil {
		return err
	}

	store, err := p.stores(ctx)
	if err != nil {
		return err
	}

	tasks := make([]batch.Task, 0, len(payload.Tasks))
	for _, t := range payload.Tasks {
		tasks = append(tasks, batch.Task{
			SourcePath:   t.SourcePath,
			OriginalName: t.OriginalName,
			DisplayName:  t.DisplayName,
		})
	}

	b := &batch.Batch{
		ID:       payload.BatchID,
		OwnerID:  payload.OwnerID,
		Category: cat,
		Tasks:    tasks,
	}

	orchestrator := batch.NewOrchestrator(store, p.broadcaster, p.rootFolder, p.locale, p.logger)

	results, runErr := orchestrator.Run(ctx, b)

	if len(results) > 0 {
		if saveErr := p.records.SaveUploadResults(ctx, payload.BatchID, payload.OwnerID, results); saveErr != nil {
			p.logger.Error("failed to save upload results",
				slog.String("batch_id", payload.BatchID),
				slog.String("error", saveErr.Error()),
			)

			if runErr == nil {
				return saveErr
			}
		}
	}

	return runErr
}

// handlePublishEntry runs one publication request to a terminal status.
func (p *Processor) handlePublishEntry(ctx context.Context, task *asynq.Task) error {
	var payload PublishEntryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("queue: decoding publish payload: %w", err)
	}

	store, err := p.stores(ctx)
	if err != nil {
		return err
	}

	evidence := make([]publish.Evidence, 0, len(payload.EvidencePaths))
	for _, path := range payload.EvidencePaths {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		evidence = append(evidence, publish.Evidence{Name: name, Path: path})
	}

	pipeline := publish.NewPipeline(store, p.records, p.broadcaster, p.rootFolder, p.locale, p.logger)

	_, err = pipeline.Publish(ctx, &publish.Request{
		SubjectID:   payload.SubjectID,
		OperationID: payload.OperationID,
		Evidence:    evidence,
		TargetDate:  payload.TargetDate,
	})

	return err
}
