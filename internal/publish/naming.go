package publish

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// evidenceFileName builds the deterministic remote name for one evidence
// file: the entry date, a slug of the caller-supplied name (or of the file
// name when none was given), and a zero-padded 1-based sequence number. The
// extension comes from the file actually uploaded.
func evidenceFileName(date time.Time, name string, index int, localPath string) string {
	base := name
	if base == "" {
		base = strings.TrimSuffix(filepath.Base(localPath), filepath.Ext(localPath))
	}

	return fmt.Sprintf("%s_%s_%02d%s",
		date.Format("2006-01-02"),
		slugify(base),
		index+1,
		strings.ToLower(filepath.Ext(localPath)),
	)
}

// mimeByPath maps a local file to the MIME type sent with its upload.
func mimeByPath(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}

	return "application/octet-stream"
}
