package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldlogger/evidencedrive/internal/category"
	"github.com/fieldlogger/evidencedrive/internal/drive"
	"github.com/fieldlogger/evidencedrive/internal/progress"
)

// fakeStore records uploads and can fail the nth one.
type fakeStore struct {
	uploads     []string // unique names in upload order
	mimes       []string
	failAtCall  int // 1-based; 0 = never
	uploadCalls int
	taken       map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{taken: make(map[string]bool)}
}

func (s *fakeStore) EnsureFolderPath(_ context.Context, segments []string, _ bool) (*drive.Folder, error) {
	return &drive.Folder{
		ID:      "folder-leaf",
		Name:    segments[len(segments)-1],
		ViewURL: "https://store.example/folders/leaf",
	}, nil
}

func (s *fakeStore) UniqueChildFileName(_ context.Context, _, name string) (string, error) {
	if !s.taken[name] {
		return name, nil
	}

	for n := 2; ; n++ {
		ext := filepath.Ext(name)
		candidate := fmt.Sprintf("%s_%d%s", name[:len(name)-len(ext)], n, ext)
		if !s.taken[candidate] {
			return candidate, nil
		}
	}
}

func (s *fakeStore) UploadFile(
	_ context.Context, _, name, mimeType, localPath string,
) (*drive.File, error) {
	s.uploadCalls++

	if s.failAtCall != 0 && s.uploadCalls == s.failAtCall {
		return nil, &drive.RemoteError{Op: "upload file", Err: errors.New("backend unavailable")}
	}

	if _, err := os.Stat(localPath); err != nil {
		return nil, fmt.Errorf("upload source vanished: %w", err)
	}

	s.taken[name] = true
	s.uploads = append(s.uploads, name)
	s.mimes = append(s.mimes, mimeType)

	return &drive.File{
		ID:      fmt.Sprintf("file-%d", s.uploadCalls),
		Name:    name,
		ViewURL: fmt.Sprintf("https://store.example/files/%d", s.uploadCalls),
	}, nil
}

func stageFile(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("staged bytes"), 0o644))

	return path
}

func newTestOrchestrator(store Store) (*Orchestrator, *progress.Broadcaster) {
	b := progress.NewBroadcaster(nil)
	o := NewOrchestrator(store, b, "Evidence Archive", "en", nil)
	o.now = func() time.Time { return time.Date(2026, time.July, 10, 12, 0, 0, 0, time.UTC) }

	return o, b
}

func collectEvents(ch <-chan progress.Event) []progress.Event {
	var out []progress.Event

	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestRun_BatchCompleteness(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	o, broadcaster := newTestOrchestrator(store)

	events, cancel := broadcaster.Subscribe("owner-1")
	defer cancel()

	b := &Batch{
		ID:       "batch-1",
		OwnerID:  "owner-1",
		Category: category.Digital,
		Tasks: []Task{
			{SourcePath: stageFile(t, dir, "a.jpg"), OriginalName: "a.jpg"},
			{SourcePath: stageFile(t, dir, "b.png"), OriginalName: "b.png"},
			{SourcePath: stageFile(t, dir, "c.pdf"), OriginalName: "c.pdf"},
		},
	}

	results, err := o.Run(context.Background(), b)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, r := range results {
		assert.Equal(t, category.Digital, r.Category)
		assert.Equal(t, "Q3 2026", r.PeriodLabel)
		assert.NotEmpty(t, r.FileURL)
		assert.NotEmpty(t, r.FolderURL)
	}

	// Staged files are gone after their tasks completed.
	for _, task := range b.Tasks {
		assert.NoFileExists(t, task.SourcePath)
	}

	got := collectEvents(events)
	require.NotEmpty(t, got)

	statuses := make([]progress.Status, 0, len(got))
	for _, ev := range got {
		statuses = append(statuses, ev.Status)
	}

	assert.Equal(t, []progress.Status{
		progress.StatusQueued,
		progress.StatusStarted,
		progress.StatusProgress,
		progress.StatusProgress,
		progress.StatusProgress,
		progress.StatusCompleted,
	}, statuses)

	// Progress percentages are monotonically increasing.
	last := -1
	for _, ev := range got {
		if ev.Status != progress.StatusProgress {
			continue
		}

		assert.Greater(t, ev.Progress, last)
		last = ev.Progress
	}

	terminal := got[len(got)-1]
	assert.Equal(t, map[string]any{"uploaded": 3}, terminal.Extra)
}

func TestRun_CleanupOnFailure(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	store.failAtCall = 2
	o, broadcaster := newTestOrchestrator(store)

	events, cancel := broadcaster.Subscribe("owner-1")
	defer cancel()

	b := &Batch{
		ID:       "batch-2",
		OwnerID:  "owner-1",
		Category: category.Social,
		Tasks: []Task{
			{SourcePath: stageFile(t, dir, "one.jpg"), OriginalName: "one.jpg"},
			{SourcePath: stageFile(t, dir, "two.jpg"), OriginalName: "two.jpg"},
			{SourcePath: stageFile(t, dir, "three.jpg"), OriginalName: "three.jpg"},
		},
	}

	results, err := o.Run(context.Background(), b)
	require.Error(t, err)

	var remoteError *drive.RemoteError
	assert.ErrorAs(t, err, &remoteError)

	// Exactly one result: the task that succeeded before the failure.
	require.Len(t, results, 1)
	assert.Equal(t, "one.jpg", results[0].FileName)

	// Attempted tasks are cleaned up; the abandoned third task keeps its
	// staged file for manual recovery.
	assert.NoFileExists(t, b.Tasks[0].SourcePath)
	assert.NoFileExists(t, b.Tasks[1].SourcePath)
	assert.FileExists(t, b.Tasks[2].SourcePath)

	got := collectEvents(events)
	require.NotEmpty(t, got)

	terminal := got[len(got)-1]
	assert.Equal(t, progress.StatusFailed, terminal.Status)
	assert.Contains(t, terminal.Message, "backend unavailable")
}

func TestRun_EmptyBatch(t *testing.T) {
	store := newFakeStore()
	o, broadcaster := newTestOrchestrator(store)

	events, cancel := broadcaster.Subscribe("owner-1")
	defer cancel()

	_, err := o.Run(context.Background(), &Batch{ID: "batch-3", OwnerID: "owner-1", Category: category.Digital})
	assert.ErrorIs(t, err, ErrEmptyBatch)

	// Rejected before any remote call.
	assert.Zero(t, store.uploadCalls)

	got := collectEvents(events)
	require.Len(t, got, 1)
	assert.Equal(t, progress.StatusFailed, got[0].Status)
}

func TestRun_MissingStagedFileFailsWholeBatch(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	o, _ := newTestOrchestrator(store)

	b := &Batch{
		ID:       "batch-4",
		OwnerID:  "owner-1",
		Category: category.Digital,
		Tasks: []Task{
			{SourcePath: filepath.Join(dir, "vanished.jpg"), OriginalName: "vanished.jpg"},
			{SourcePath: stageFile(t, dir, "never-reached.jpg"), OriginalName: "never-reached.jpg"},
		},
	}

	results, err := o.Run(context.Background(), b)
	require.Error(t, err)

	var localError *LocalError
	require.ErrorAs(t, err, &localError)
	assert.Equal(t, b.Tasks[0].SourcePath, localError.Path)

	assert.Empty(t, results)
	assert.Zero(t, store.uploadCalls)
	assert.FileExists(t, b.Tasks[1].SourcePath)
}

func TestRun_SharedDisplayNameGetsOrdinals(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	o, _ := newTestOrchestrator(store)

	b := &Batch{
		ID:       "batch-5",
		OwnerID:  "owner-1",
		Category: category.Digital,
		Tasks: []Task{
			{SourcePath: stageFile(t, dir, "x1.jpg"), OriginalName: "x1.jpg", DisplayName: "Site Visit"},
			{SourcePath: stageFile(t, dir, "x2.jpg"), OriginalName: "x2.jpg", DisplayName: "Site Visit"},
			{SourcePath: stageFile(t, dir, "x3.jpg"), OriginalName: "x3.jpg", DisplayName: "Site Visit"},
		},
	}

	_, err := o.Run(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, []string{"Site Visit.jpg", "Site Visit_2.jpg", "Site Visit_3.jpg"}, store.uploads)
}

func TestRun_UndecodableWebPFallsBackToOriginal(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	o, _ := newTestOrchestrator(store)

	// Valid extension, garbage content: the decoder fails and the original
	// bytes are uploaded unchanged.
	b := &Batch{
		ID:       "batch-6",
		OwnerID:  "owner-1",
		Category: category.Digital,
		Tasks: []Task{
			{SourcePath: stageFile(t, dir, "photo.webp"), OriginalName: "photo.webp"},
		},
	}

	results, err := o.Run(context.Background(), b)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, []string{"photo.webp"}, store.uploads)
	assert.Equal(t, []string{"image/webp"}, store.mimes)
	assert.NoFileExists(t, b.Tasks[0].SourcePath)
}

func TestDisplayBase(t *testing.T) {
	tests := []struct {
		name  string
		task  Task
		index int
		total int
		want  string
	}{
		{"derived from original", Task{OriginalName: "IMG_2041.jpg"}, 0, 1, "IMG_2041"},
		{"explicit name", Task{OriginalName: "IMG_2041.jpg", DisplayName: "Opening Ceremony"}, 0, 1, "Opening Ceremony"},
		{"shared name, first keeps base", Task{OriginalName: "a.jpg", DisplayName: "Visit"}, 0, 3, "Visit"},
		{"shared name, second gets ordinal", Task{OriginalName: "b.jpg", DisplayName: "Visit"}, 1, 3, "Visit_2"},
		{"derived names never get ordinals", Task{OriginalName: "c.jpg"}, 2, 3, "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, displayBase(&tt.task, tt.index, tt.total))
		})
	}
}

func TestNeedsNormalization(t *testing.T) {
	assert.True(t, needsNormalization("photo.webp"))
	assert.True(t, needsNormalization("PHOTO.WEBP"))
	assert.False(t, needsNormalization("photo.jpg"))
	assert.False(t, needsNormalization("document.pdf"))
}

func TestNormalizeImage_InvalidInput(t *testing.T) {
	path := stageFile(t, t.TempDir(), "garbage.webp")

	_, err := normalizeImage(path)
	assert.Error(t, err)
}

func TestMimeByExtension(t *testing.T) {
	assert.Equal(t, "image/jpeg", mimeByExtension("a.JPG"))
	assert.Equal(t, "image/png", mimeByExtension("a.png"))
	assert.Equal(t, "application/pdf", mimeByExtension("a.pdf"))
	assert.Equal(t, "application/octet-stream", mimeByExtension("a.xyz"))
}
