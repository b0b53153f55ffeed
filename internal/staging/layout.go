// Package staging manages the local staging area: files dropped under
// <root>/<owner>/<category>/ are picked up by the watcher, claimed into a
// per-batch directory, and enqueued as one upload batch.
package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/fieldlogger/evidencedrive/internal/category"
)

// queuedDirName holds claimed batches awaiting a worker. Hidden so the
// watcher never treats it as an owner directory.
const queuedDirName = ".queued"

// Dir returns the staging directory for one owner and category.
func Dir(root, ownerID string, cat category.Category) string {
	return filepath.Join(root, ownerID, string(cat))
}

// Stage copies src into the owner's staging directory under name, creating
// the directory as needed. The file is written to a temp name and renamed so
// the watcher never observes a half-written file.
func Stage(root, ownerID string, cat category.Category, name string, src io.Reader) (string, error) {
	dir := Dir(root, ownerID, cat)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("staging: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".staging-*")
	if err != nil {
		return "", fmt.Errorf("staging: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return "", fmt.Errorf("staging: writing %s: %w", name, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return "", fmt.Errorf("staging: closing %s: %w", name, err)
	}

	dest := filepath.Join(dir, name)
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)

		return "", fmt.Errorf("staging: placing %s: %w", name, err)
	}

	return dest, nil
}

// listFiles returns the regular files directly inside dir, sorted by name.
// Dotfiles are skipped: temp files and claimed batches live behind dots.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("staging: reading %s: %w", dir, err)
	}

	var out []string

	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}

		out = append(out, filepath.Join(dir, e.Name()))
	}

	sort.Strings(out)

	return out, nil
}

// claimBatch moves the given staged files into a fresh per-batch directory
// under <root>/.queued/<batchID>/ so later watcher flushes cannot enqueue
// them twice. Returns the new paths in the same order.
func claimBatch(root, batchID string, files []string) ([]string, error) {
	dir := filepath.Join(root, queuedDirName, batchID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("staging: creating batch dir %s: %w", dir, err)
	}

	claimed := make([]string, 0, len(files))

	for _, f := range files {
		dest := filepath.Join(dir, filepath.Base(f))
		if err := os.Rename(f, dest); err != nil {
			return nil, fmt.Errorf("staging: claiming %s: %w", f, err)
		}

		claimed = append(claimed, dest)
	}

	return claimed, nil
}
