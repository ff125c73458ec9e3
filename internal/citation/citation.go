// Package citation recovers located references from free-text answers.
//
// Extraction is a pure function of the answer string. Page references are
// collected first, each with a preview snippet of the surrounding answer,
// followed by section and chapter references. The result is capped at
// MaxCitations.
package citation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mfenderov/citedoc/pkg/models"
)

const (
	// MaxCitations is the maximum number of citations returned per answer.
	MaxCitations = 5

	// SnippetBefore and SnippetAfter bound the context window around a page
	// reference, measured in characters from the start of the match.
	SnippetBefore = 100
	SnippetAfter  = 150

	// MaxSnippet is the snippet length kept before the ellipsis is appended.
	MaxSnippet = 100

	ellipsis = "..."
)

var (
	pagePattern    = regexp.MustCompile(`(?i)Page\s+(\d+)`)
	// ASCII letters only; (?i) would also fold "ſ" (U+017F) onto "s".
	sectionPattern = regexp.MustCompile(`([Ss][Ee][Cc][Tt][Ii][Oo][Nn]|[Cc][Hh][Aa][Pp][Tt][Ee][Rr])\s+[\w.\-]+`)
)

// Extract returns the citations found in answer, page citations first.
// It returns nil when the answer contains no reference at all.
func Extract(answer string) []models.Citation {
	var citations []models.Citation

	citations = append(citations, pages(answer)...)

	for _, loc := range sectionPattern.FindAllStringIndex(answer, -1) {
		text := answer[loc[0]:loc[1]]
		if contains(citations, text) {
			continue
		}
		citations = append(citations, models.Citation{Text: text})
	}

	if len(citations) == 0 {
		return nil
	}
	if len(citations) > MaxCitations {
		citations = citations[:MaxCitations]
	}
	return citations
}

// pages collects every page reference in order of occurrence. Repeated page
// numbers are kept so each mention carries its own snippet.
func pages(answer string) []models.Citation {
	matches := pagePattern.FindAllStringSubmatchIndex(answer, -1)
	if len(matches) == 0 {
		return nil
	}

	runes := []rune(answer)
	out := make([]models.Citation, 0, len(matches))
	for _, m := range matches {
		digits := answer[m[2]:m[3]]
		start := utf8.RuneCountInString(answer[:m[0]])
		page, err := strconv.Atoi(digits)
		if err != nil {
			// out of int range: keep the reference, clamp the page
			c := models.PageCitation(math.MaxInt, Snippet(runes, start))
			c.Text = "Page " + strings.TrimLeft(digits, "0")
			out = append(out, c)
			continue
		}
		out = append(out, models.PageCitation(page, Snippet(runes, start)))
	}
	return out
}

// Snippet returns the trimmed preview around the match starting at rune
// offset start. The window is clamped to the text bounds.
func Snippet(runes []rune, start int) string {
	from := max(0, start-SnippetBefore)
	to := min(len(runes), start+SnippetAfter)
	if from > to {
		return ""
	}

	snippet := []rune(strings.TrimSpace(string(runes[from:to])))
	if len(snippet) > MaxSnippet {
		return string(snippet[:MaxSnippet]) + ellipsis
	}
	return string(snippet)
}

func contains(citations []models.Citation, text string) bool {
	for _, c := range citations {
		if c.Text == text {
			return true
		}
	}
	return false
}
