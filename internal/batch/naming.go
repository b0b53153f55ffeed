package batch

import (
	"fmt"
	"path/filepath"
	"strings"
)

// displayBase returns the base display name for a task: the caller-provided
// name when present, otherwise the original file name without extension.
// When a batch shares one caller-provided base name across multiple files,
// all but the first get a 1-based ordinal suffix so names stay
// distinguishable.
func displayBase(t *Task, index, total int) string {
	base := t.DisplayName
	if base == "" {
		base = strings.TrimSuffix(t.OriginalName, filepath.Ext(t.OriginalName))
	}

	if t.DisplayName != "" && total > 1 && index > 0 {
		base = fmt.Sprintf("%s_%d", base, index+1)
	}

	return base
}

// fileName combines the display base with the extension of the file actually
// being uploaded (which differs from the original after normalization).
func fileName(base, uploadPath string) string {
	return base + strings.ToLower(filepath.Ext(uploadPath))
}
