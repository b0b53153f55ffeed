package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fieldlogger/evidencedrive/internal/batch"
	"github.com/fieldlogger/evidencedrive/internal/category"
	"github.com/fieldlogger/evidencedrive/internal/drive"
	"github.com/fieldlogger/evidencedrive/internal/progress"
)

// Progress percentages for the fixed pipeline stages. Evidence uploads are
// scaled into the gap between uploadFloor and uploadCeil.
const (
	pctFoldersResolving = 10
	pctFoldersReady     = 15
	uploadFloor         = 20
	uploadCeil          = 70
	pctRecordUpdated    = 80
	pctReportBuilding   = 90
	pctReportUploaded   = 95
)

// Evidence is one file attached to a publication request. Path points at
// bytes already on the local filesystem; when it is empty, Open streams the
// content from wherever it lives and the pipeline spools it to a temporary
// file for the duration of the upload.
type Evidence struct {
	Name string
	Path string
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// Request asks the pipeline to publish one subject's evidence.
type Request struct {
	SubjectID   string
	OperationID string
	Evidence    []Evidence
	TargetDate  time.Time
}

// Store is the remote surface the pipeline consumes; *drive.Client
// implements it.
type Store interface {
	EnsureFolderPath(ctx context.Context, segments []string, makePublic bool) (*drive.Folder, error)
	UploadFile(ctx context.Context, parentID, name, mimeType, localPath string) (*drive.File, error)
	UploadOrReplaceFile(ctx context.Context, parentID, name, mimeType, localPath string) (*drive.File, error)
	SetPubliclyReadable(ctx context.Context, objectID string) error
}

// Pipeline publishes logbook entries: it builds the dated folder hierarchy,
// uploads the evidence files, records the outcome on the entry, and
// regenerates the monthly report. Construct one per unit of work.
type Pipeline struct {
	store       Store
	records     RecordStore
	broadcaster *progress.Broadcaster
	rootFolder  string
	locale      string
	logger      *slog.Logger

	now func() time.Time
}

// NewPipeline wires a publication pipeline.
func NewPipeline(
	store Store, records RecordStore, broadcaster *progress.Broadcaster,
	rootFolder, locale string, logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		store:       store,
		records:     records,
		broadcaster: broadcaster,
		rootFolder:  rootFolder,
		locale:      locale,
		logger:      logger,
		now:         time.Now,
	}
}

// Publish runs one request to a terminal status. There are no retries at
// this layer; on error the operation is reported failed and the caller's
// scheduler decides whether to re-enqueue the whole request.
func (p *Pipeline) Publish(ctx context.Context, req *Request) (*drive.Folder, error) {
	rec, err := p.records.Record(ctx, req.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("publish: loading record %s: %w", req.SubjectID, err)
	}

	reporter := p.broadcaster.NewReporter(rec.OwnerID, req.OperationID)
	reporter.Started(fmt.Sprintf("publishing logbook entry for %s", req.TargetDate.Format("2006-01-02")))

	folder, err := p.run(ctx, req, rec, reporter)
	if err != nil {
		p.logger.Error("publication failed",
			slog.String("subject_id", req.SubjectID),
			slog.String("owner_id", rec.OwnerID),
			slog.String("error", err.Error()),
		)
		reporter.Failed(err.Error())

		return nil, err
	}

	reporter.Completed("logbook entry published", map[string]any{
		"folder_url": folder.ViewURL,
	})

	p.logger.Info("publication completed",
		slog.String("subject_id", req.SubjectID),
		slog.String("folder_id", folder.ID),
	)

	return folder, nil
}

func (p *Pipeline) run(
	ctx context.Context, req *Request, rec *Record, reporter *progress.Reporter,
) (*drive.Folder, error) {
	reporter.Progress(progress.StagePreparingFolders, pctFoldersResolving, "resolving remote folders")

	monthLabel := category.MonthLabel(req.TargetDate, p.locale)
	segments := []string{
		p.rootFolder,
		category.Logbook.FolderName(),
		monthLabel,
		rec.OwnerName,
	}

	folder, err := p.store.EnsureFolderPath(ctx, segments, false)
	if err != nil {
		return nil, err
	}

	reporter.Progress(progress.StagePreparingFolders, pctFoldersReady, "remote folders ready")

	if len(req.Evidence) == 0 {
		reporter.Progress(progress.StageUploadingEvidence, uploadCeil, "nothing to upload")
	} else if err := p.uploadEvidence(ctx, req, folder, reporter); err != nil {
		return nil, err
	}

	reporter.Progress(progress.StageUpdatingLogbook, pctRecordUpdated, "recording publication")

	publishedAt := p.now()
	if err := p.records.MarkPublished(ctx, req.SubjectID, folder.ID, folder.ViewURL, publishedAt); err != nil {
		return nil, fmt.Errorf("publish: marking %s published: %w", req.SubjectID, err)
	}

	reporter.Progress(progress.StageGeneratingSpreadsheet, pctReportBuilding, "regenerating monthly report")

	if err := p.regenerateReport(ctx, req.TargetDate, monthLabel); err != nil {
		return nil, err
	}

	reporter.Progress(progress.StageGeneratingSpreadsheet, pctReportUploaded, "monthly report uploaded")

	return folder, nil
}

// uploadEvidence uploads the request's files sequentially into folder,
// scaling per-file progress into the upload sub-range.
func (p *Pipeline) uploadEvidence(
	ctx context.Context, req *Request, folder *drive.Folder, reporter *progress.Reporter,
) error {
	for i := range req.Evidence {
		if err := p.uploadOne(ctx, req, i, folder); err != nil {
			return err
		}

		pct := uploadFloor + (i+1)*(uploadCeil-uploadFloor)/len(req.Evidence)
		reporter.Progress(progress.StageUploadingEvidence, pct,
			fmt.Sprintf("uploaded %d of %d", i+1, len(req.Evidence)))
	}

	return nil
}

// uploadOne resolves one evidence item to a local path, uploads it under a
// deterministic name, and makes the uploaded file public. A spooled
// temporary file is removed before returning, on every path.
func (p *Pipeline) uploadOne(ctx context.Context, req *Request, index int, folder *drive.Folder) error {
	ev := &req.Evidence[index]

	localPath, temp, err := p.resolveEvidence(ctx, ev)
	if err != nil {
		return err
	}

	if temp {
		defer func() {
			if rmErr := os.Remove(localPath); rmErr != nil {
				p.logger.Warn("failed to remove spooled file",
					slog.String("path", localPath),
					slog.String("error", rmErr.Error()),
				)
			}
		}()
	}

	name := evidenceFileName(req.TargetDate, ev.Name, index, localPath)

	file, err := p.store.UploadFile(ctx, folder.ID, name, mimeByPath(localPath), localPath)
	if err != nil {
		return err
	}

	if err := p.store.SetPubliclyReadable(ctx, file.ID); err != nil {
		return err
	}

	p.logger.Info("evidence uploaded",
		slog.String("subject_id", req.SubjectID),
		slog.String("file_name", name),
		slog.String("file_id", file.ID),
	)

	return nil
}

// resolveEvidence returns a local path holding the evidence bytes and
// whether that path is a temporary spool file owned by the caller.
func (p *Pipeline) resolveEvidence(ctx context.Context, ev *Evidence) (string, bool, error) {
	if ev.Path != "" {
		if _, err := os.Stat(ev.Path); err != nil {
			return "", false, &batch.LocalError{Path: ev.Path, Err: err}
		}

		return ev.Path, false, nil
	}

	if ev.Open == nil {
		return "", false, fmt.Errorf("publish: evidence %q has neither a path nor a source", ev.Name)
	}

	src, err := ev.Open(ctx)
	if err != nil {
		return "", false, fmt.Errorf("publish: opening evidence %q: %w", ev.Name, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "evidence-spool-*")
	if err != nil {
		return "", false, fmt.Errorf("publish: creating spool file: %w", err)
	}

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return "", false, fmt.Errorf("publish: spooling evidence %q: %w", ev.Name, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return "", false, fmt.Errorf("publish: closing spool file: %w", err)
	}

	return tmp.Name(), true, nil
}
