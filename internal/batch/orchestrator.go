package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fieldlogger/evidencedrive/internal/drive"
	"github.com/fieldlogger/evidencedrive/internal/progress"
)

// Store is the remote surface the orchestrator consumes; *drive.Client
// implements it, tests substitute a fake.
type Store interface {
	EnsureFolderPath(ctx context.Context, segments []string, makePublic bool) (*drive.Folder, error)
	UniqueChildFileName(ctx context.Context, parentID, name string) (string, error)
	UploadFile(ctx context.Context, parentID, name, mimeType, localPath string) (*drive.File, error)
}

// Orchestrator processes upload batches sequentially. Construct one per unit
// of work; it holds no state across batches.
type Orchestrator struct {
	store       Store
	broadcaster *progress.Broadcaster
	rootFolder  string
	locale      string
	logger      *slog.Logger

	// now is stubbed in tests so period buckets are deterministic.
	now func() time.Time
}

// NewOrchestrator wires an orchestrator.
func NewOrchestrator(
	store Store, broadcaster *progress.Broadcaster, rootFolder, locale string, logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		store:       store,
		broadcaster: broadcaster,
		rootFolder:  rootFolder,
		locale:      locale,
		logger:      logger,
		now:         time.Now,
	}
}

// Run executes one batch to a terminal status. Tasks run strictly
// sequentially; the first unrecoverable error abandons the remaining tasks.
// Already-produced results are returned alongside the error so the caller
// can persist the files that did make it — remote artifacts of completed
// tasks are never rolled back.
func (o *Orchestrator) Run(ctx context.Context, b *Batch) ([]Result, error) {
	reporter := o.broadcaster.NewReporter(b.OwnerID, b.ID)

	if len(b.Tasks) == 0 {
		reporter.Failed("no files to upload")
		return nil, ErrEmptyBatch
	}

	reporter.Queued(fmt.Sprintf("%d file(s) staged", len(b.Tasks)))
	reporter.Started(fmt.Sprintf("uploading %s", b.Category.Display()))

	o.logger.Info("batch started",
		slog.String("batch_id", b.ID),
		slog.String("owner_id", b.OwnerID),
		slog.String("category", string(b.Category)),
		slog.Int("tasks", len(b.Tasks)),
	)

	period := b.Category.PeriodLabel(o.now(), o.locale)
	segments := b.Category.PathSegments(o.rootFolder, o.now(), o.locale)

	results := make([]Result, 0, len(b.Tasks))

	for i := range b.Tasks {
		result, err := o.processTask(ctx, b, i, segments, period)
		if err != nil {
			o.logger.Error("batch failed",
				slog.String("batch_id", b.ID),
				slog.String("owner_id", b.OwnerID),
				slog.String("category", string(b.Category)),
				slog.Int("completed", len(results)),
				slog.String("error", err.Error()),
			)
			reporter.Failed(err.Error())

			return results, err
		}

		results = append(results, *result)

		pct := len(results) * 100 / len(b.Tasks)
		reporter.Progress(progress.StageUploadingEvidence, pct,
			fmt.Sprintf("uploaded %d of %d", len(results), len(b.Tasks)))
	}

	reporter.Completed("all files uploaded", map[string]any{"uploaded": len(results)})

	o.logger.Info("batch completed",
		slog.String("batch_id", b.ID),
		slog.Int("uploaded", len(results)),
	)

	return results, nil
}

// processTask moves one staged file into the remote store. The staged file
// and any normalization temp file are removed on every exit path once the
// task has been attempted.
func (o *Orchestrator) processTask(
	ctx context.Context, b *Batch, index int, segments []string, period string,
) (*Result, error) {
	task := &b.Tasks[index]

	if _, err := os.Stat(task.SourcePath); err != nil {
		return nil, &LocalError{Path: task.SourcePath, Err: err}
	}

	uploadPath := task.SourcePath
	tempPath := ""

	defer func() {
		if tempPath != "" {
			if err := os.Remove(tempPath); err != nil {
				o.logger.Warn("failed to remove temp file",
					slog.String("path", tempPath),
					slog.String("error", err.Error()),
				)
			}
		}

		if err := os.Remove(task.SourcePath); err != nil {
			o.logger.Warn("failed to remove staged file",
				slog.String("path", task.SourcePath),
				slog.String("error", err.Error()),
			)
		}
	}()

	if needsNormalization(task.SourcePath) {
		normalized, err := normalizeImage(task.SourcePath)
		if err != nil {
			// Normalization is best-effort: upload the original bytes
			// unchanged rather than failing the batch.
			o.logger.Warn("normalization failed, uploading original",
				slog.String("path", task.SourcePath),
				slog.String("error", err.Error()),
			)
		} else {
			tempPath = normalized
			uploadPath = normalized
		}
	}

	name := fileName(displayBase(task, index, len(b.Tasks)), uploadPath)
	mimeType := mimeByExtension(uploadPath)

	folder, err := o.store.EnsureFolderPath(ctx, segments, false)
	if err != nil {
		return nil, err
	}

	uniqueName, err := o.store.UniqueChildFileName(ctx, folder.ID, name)
	if err != nil {
		return nil, err
	}

	file, err := o.store.UploadFile(ctx, folder.ID, uniqueName, mimeType, uploadPath)
	if err != nil {
		return nil, err
	}

	o.logger.Info("task uploaded",
		slog.String("batch_id", b.ID),
		slog.String("file_name", uniqueName),
		slog.String("file_id", file.ID),
	)

	return &Result{
		Category:    b.Category,
		PeriodLabel: period,
		FolderURL:   folder.ViewURL,
		FileURL:     file.ViewURL,
		FileName:    uniqueName,
	}, nil
}
