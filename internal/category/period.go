package category

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// supportedLocales are the languages month labels can be rendered in. The
// matcher falls back to English for anything it cannot match.
var supportedLocales = []language.Tag{
	language.English,
	language.Indonesian,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// monthNames holds CLDR-style standalone month names per supported language.
var monthNames = map[language.Tag][12]string{
	language.English: {
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	},
	language.Indonesian: {
		"Januari", "Februari", "Maret", "April", "Mei", "Juni",
		"Juli", "Agustus", "September", "Oktober", "November", "Desember",
	},
}

// matchLocale resolves a BCP 47 locale string to a supported language tag.
func matchLocale(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}

	_, index, _ := localeMatcher.Match(tag)

	return supportedLocales[index]
}

// MonthLabel renders a locale-aware "Month YYYY" folder label.
func MonthLabel(t time.Time, locale string) string {
	names := monthNames[matchLocale(locale)]

	return fmt.Sprintf("%s %d", names[t.Month()-1], t.Year())
}

// QuarterLabel renders a "Qn YYYY" folder label.
func QuarterLabel(t time.Time) string {
	quarter := (int(t.Month())-1)/3 + 1

	return fmt.Sprintf("Q%d %d", quarter, t.Year())
}
