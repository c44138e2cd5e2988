package blog

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const wordsPerMinute = 200

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespace   = regexp.MustCompile(`\s+`)
	dashes       = regexp.MustCompile(`-+`)
)

// stripMarks lowercases s and removes combining marks after canonical
// decomposition, so "Bien-être" becomes "bien-etre".
func stripMarks(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(s))
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, decomposed)
}

// Slugify turns a title into a URL-safe identifier.
func Slugify(title string) string {
	s := stripMarks(title)
	s = nonSlugChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "-")
	s = dashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// CategorySlug derives the category identifier used by the front end
// filters from a category display name.
func CategorySlug(category string) string {
	return whitespace.ReplaceAllString(stripMarks(strings.TrimSpace(category)), "-")
}

// ReadingTime estimates minutes of reading at 200 words per minute, never
// less than one.
func ReadingTime(content string) int {
	words := len(strings.Fields(content))
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}
