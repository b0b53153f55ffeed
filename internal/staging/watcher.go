package staging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/fieldlogger/evidencedrive/internal/category"
	"github.com/fieldlogger/evidencedrive/internal/queue"
)

// Settle parameters: a category directory is flushed once no event has
// touched it for settleDelay, checked every sweepInterval.
const (
	settleDelay   = 2 * time.Second
	sweepInterval = 500 * time.Millisecond
)

// BatchEnqueuer is the queue surface the watcher pushes settled batches to;
// *queue.Enqueuer implements it.
type BatchEnqueuer interface {
	EnqueueUploadBatch(ctx context.Context, payload queue.UploadBatchPayload) error
}

// Watcher turns files dropped into the staging tree into enqueued upload
// batches. One batch is built per (owner, category) directory each time the
// directory settles.
type Watcher struct {
	root     string
	enqueuer BatchEnqueuer
	logger   *slog.Logger

	settle time.Duration
	newID  func() string

	// pending maps a category directory to the time of its last event.
	pending map[string]time.Time
}

// NewWatcher builds a watcher over the staging root.
func NewWatcher(root string, enqueuer BatchEnqueuer, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		root:     root,
		enqueuer: enqueuer,
		logger:   logger,
		settle:   settleDelay,
		newID:    func() string { return uuid.NewString() },
		pending:  make(map[string]time.Time),
	}
}

// Run watches the staging tree until the context is canceled. Files already
// present at startup are flushed once their directories settle.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("staging: creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("staging: creating root %s: %w", w.root, err)
	}

	if err := w.watchTree(watcher); err != nil {
		return err
	}

	w.logger.Info("staging watcher started", slog.String("root", w.root))

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			w.handleEvent(watcher, ev)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("staging watcher error", slog.String("error", watchErr.Error()))

		case <-ticker.C:
			w.flushSettled(ctx)
		}
	}
}

// watchTree registers watches on the root, every owner directory, and every
// category directory, marking non-empty category directories pending so
// leftovers from a previous run get enqueued.
func (w *Watcher) watchTree(watcher *fsnotify.Watcher) error {
	if err := watcher.Add(w.root); err != nil {
		return fmt.Errorf("staging: watching %s: %w", w.root, err)
	}

	owners, err := os.ReadDir(w.root)
	if err != nil {
		return fmt.Errorf("staging: reading %s: %w", w.root, err)
	}

	for _, owner := range owners {
		if !owner.IsDir() || strings.HasPrefix(owner.Name(), ".") {
			continue
		}

		ownerDir := filepath.Join(w.root, owner.Name())
		if err := watcher.Add(ownerDir); err != nil {
			return fmt.Errorf("staging: watching %s: %w", ownerDir, err)
		}

		cats, err := os.ReadDir(ownerDir)
		if err != nil {
			return fmt.Errorf("staging: reading %s: %w", ownerDir, err)
		}

		for _, cat := range cats {
			if !cat.IsDir() {
				continue
			}

			if _, err := category.Parse(cat.Name()); err != nil {
				continue
			}

			catDir := filepath.Join(ownerDir, cat.Name())
			if err := watcher.Add(catDir); err != nil {
				return fmt.Errorf("staging: watching %s: %w", catDir, err)
			}

			files, err := listFiles(catDir)
			if err != nil {
				return err
			}

			if len(files) > 0 {
				w.pending[catDir] = time.Now()
			}
		}
	}

	return nil
}

// handleEvent classifies one fsnotify event: new directories get watches,
// file activity inside a category directory (re)arms its settle timer.
func (w *Watcher) handleEvent(watcher *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	if ev.Has(fsnotify.Create) {
		info, err := os.Stat(ev.Name)
		if err == nil && info.IsDir() {
			w.watchNewDir(watcher, ev.Name)
			return
		}
	}

	dir := filepath.Dir(ev.Name)
	if w.categoryOf(dir) == "" {
		return
	}

	if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
		w.pending[dir] = time.Now()
	}
}

// watchNewDir adds a watch on a newly created owner or category directory
// and arms the settle timer if files beat the watch registration.
func (w *Watcher) watchNewDir(watcher *fsnotify.Watcher, dir string) {
	rel, err := filepath.Rel(w.root, dir)
	if err != nil {
		return
	}

	depth := len(strings.Split(filepath.ToSlash(rel), "/"))
	isCategory := depth == 2

	if isCategory && w.categoryOf(dir) == "" {
		return
	}

	if depth > 2 {
		return
	}

	if err := watcher.Add(dir); err != nil {
		w.logger.Warn("failed to watch new directory",
			slog.String("path", dir),
			slog.String("error", err.Error()),
		)

		return
	}

	if isCategory {
		// Files created before the watch landed would otherwise be missed.
		files, err := listFiles(dir)
		if err == nil && len(files) > 0 {
			w.pending[dir] = time.Now()
		}

		return
	}

	// New owner directory: category directories may have been created
	// before this watch landed. Pick them up now.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, e := range entries {
		if e.IsDir() {
			w.watchNewDir(watcher, filepath.Join(dir, e.Name()))
		}
	}
}

// categoryOf returns the category a directory stages for, or "" when the
// directory is not a valid <root>/<owner>/<category> path.
func (w *Watcher) categoryOf(dir string) category.Category {
	rel, err := filepath.Rel(w.root, dir)
	if err != nil {
		return ""
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 || strings.HasPrefix(parts[0], ".") {
		return ""
	}

	cat, err := category.Parse(parts[1])
	if err != nil {
		return ""
	}

	return cat
}

// flushSettled enqueues one batch per pending directory that has had no
// activity for the settle window.
func (w *Watcher) flushSettled(ctx context.Context) {
	now := time.Now()

	for dir, last := range w.pending {
		if now.Sub(last) < w.settle {
			continue
		}

		delete(w.pending, dir)

		if err := w.flush(ctx, dir); err != nil {
			w.logger.Error("failed to flush staged batch",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
		}
	}
}

// flush claims every staged file in dir into a batch directory and enqueues
// the batch. Claiming happens before enqueueing so a later sweep of the same
// directory cannot enqueue the same files again.
func (w *Watcher) flush(ctx context.Context, dir string) error {
	cat := w.categoryOf(dir)
	ownerID := filepath.Base(filepath.Dir(dir))

	files, err := listFiles(dir)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return nil
	}

	batchID := w.newID()

	claimed, err := claimBatch(w.root, batchID, files)
	if err != nil {
		return err
	}

	tasks := make([]queue.UploadTaskPayload, 0, len(claimed))
	for _, f := range claimed {
		tasks = append(tasks, queue.UploadTaskPayload{
			SourcePath:   f,
			OriginalName: filepath.Base(f),
		})
	}

	payload := queue.UploadBatchPayload{
		BatchID:  batchID,
		OwnerID:  ownerID,
		Category: string(cat),
		Tasks:    tasks,
	}

	if err := w.enqueuer.EnqueueUploadBatch(ctx, payload); err != nil {
		return err
	}

	w.logger.Info("staged batch enqueued",
		slog.String("batch_id", batchID),
		slog.String("owner_id", ownerID),
		slog.String("category", string(cat)),
		slog.Int("files", len(tasks)),
	)

	return nil
}
