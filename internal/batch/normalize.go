package batch

import (
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/webp"
)

// jpegQuality for re-encoded images. High enough that evidence photos stay
// legible, low enough to cap the size of re-encoded uploads.
const jpegQuality = 90

// needsNormalization reports whether the file's extension indicates a format
// the remote store renders poorly and a local decoder exists for.
func needsNormalization(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".webp")
}

// normalizeImage decodes a WebP file and re-encodes it as JPEG into a fresh
// temporary file, returning its path. The caller owns the temporary file and
// must remove it on every exit path.
func normalizeImage(srcPath string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("batch: opening %s for normalization: %w", srcPath, err)
	}
	defer src.Close()

	img, err := webp.Decode(src)
	if err != nil {
		return "", fmt.Errorf("batch: decoding %s: %w", srcPath, err)
	}

	tmp, err := os.CreateTemp("", "evidence-normalized-*.jpg")
	if err != nil {
		return "", fmt.Errorf("batch: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return "", fmt.Errorf("batch: encoding %s: %w", tmpPath, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return "", fmt.Errorf("batch: closing %s: %w", tmpPath, err)
	}

	return tmpPath, nil
}

// mimeByExtension maps a file name to the MIME type sent to the remote
// store. Unknown extensions upload as opaque bytes.
func mimeByExtension(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
