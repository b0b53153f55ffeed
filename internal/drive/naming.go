package drive

import (
	"fmt"
	"path/filepath"
	"strings"
)

// uniqueName resolves a collision-free name within one parent: the base name
// when free, otherwise base_2, base_3, ... until a free suffix is found.
func uniqueName(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}

	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", base, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

// uniqueFileName applies the suffix-increment algorithm to a file name,
// keeping the extension in place.
func uniqueFileName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if !taken[candidate] {
			return candidate
		}
	}
}
