// Package category defines the closed set of evidence categories and their
// per-category display, folder, and file-name behavior. Categories are a
// small tagged-variant type with a lookup table rather than an open
// interface: the set is fixed by the domain.
package category

import (
	"fmt"
	"time"
)

// Category identifies one evidence kind.
type Category string

// The closed set of categories.
const (
	Digital Category = "digital"
	Social  Category = "social"
	Logbook Category = "logbook"
)

// props holds the per-category behavior served by the lookup table.
type props struct {
	display    string
	folderName string
	filePrefix string
	// monthly buckets use month labels; the rest bucket by quarter.
	monthly bool
}

var table = map[Category]props{
	Digital: {
		display:    "Digital Evidence",
		folderName: "Digital",
		filePrefix: "digital",
	},
	Social: {
		display:    "Social Evidence",
		folderName: "Social",
		filePrefix: "social",
	},
	Logbook: {
		display:    "Logbook Evidence",
		folderName: "Logbook",
		filePrefix: "logbook",
		monthly:    true,
	},
}

// Parse validates a category string from an external payload.
func Parse(s string) (Category, error) {
	c := Category(s)
	if _, ok := table[c]; !ok {
		return "", fmt.Errorf("category: unknown category %q", s)
	}

	return c, nil
}

// Display returns the human-readable label.
func (c Category) Display() string { return table[c].display }

// FolderName returns the folder segment for this category.
func (c Category) FolderName() string { return table[c].folderName }

// FilePrefix returns the prefix used when deriving file names.
func (c Category) FilePrefix() string { return table[c].filePrefix }

// PeriodLabel returns the chronological bucket label for a point in time:
// a locale-aware month label for monthly categories, a quarter label
// otherwise.
func (c Category) PeriodLabel(t time.Time, locale string) string {
	if table[c].monthly {
		return MonthLabel(t, locale)
	}

	return QuarterLabel(t)
}

// PathSegments returns the destination folder path for this category:
// root / category folder / period bucket.
func (c Category) PathSegments(rootFolder string, t time.Time, locale string) []string {
	return []string{rootFolder, c.FolderName(), c.PeriodLabel(t, locale)}
}
