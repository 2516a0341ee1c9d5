// Package snippet cuts short display excerpts out of journal entries around
// the first place a query matched.
package snippet

import (
	"sort"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/journal-search/internal/indexer/normalizer"
)

const (
	// DefaultMaxLength is the snippet length used when none is given.
	DefaultMaxLength = 160
	// Ellipsis marks text that was cut away.
	Ellipsis = "…"

	contextRunes = 50
	minSafeCut   = 40
)

// Build returns an excerpt of doc of at most maxLen runes. The excerpt is
// centred on the first occurrence of the longest matched term that can be
// located in the raw text. Without a located match the start of the text is
// used; entries without text fall back to their label, then their prompt.
func Build(doc *document.Document, matched []string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	raw := collapse(doc.RawText)
	if raw == "" {
		aux := doc.Label
		if strings.TrimSpace(aux) == "" {
			aux = doc.Prompt
		}
		return Ellipsize(aux, maxLen)
	}

	text := []rune(raw)
	for _, term := range byLength(matched) {
		if pos, n, ok := locate(text, term); ok {
			return window(text, pos, n, maxLen)
		}
	}
	return Ellipsize(raw, maxLen)
}

// Ellipsize collapses whitespace in s and shortens it to at most maxLen
// runes. The cut falls on the last space when that keeps at least 40 runes,
// otherwise mid-word; either way Ellipsis is appended.
func Ellipsize(s string, maxLen int) string {
	s = collapse(s)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return Ellipsis
	}
	cut := r[:maxLen-1]
	if i := lastSpace(cut); i >= minSafeCut {
		cut = cut[:i]
	}
	return strings.TrimRightFunc(string(cut), unicode.IsSpace) + Ellipsis
}

func window(text []rune, pos, n, maxLen int) string {
	start := max(0, pos-contextRunes)
	end := min(len(text), pos+n+contextRunes)
	for start > 0 && start < pos && !unicode.IsSpace(text[start-1]) {
		start++
	}
	for end < len(text) && end > pos+n && !unicode.IsSpace(text[end]) {
		end--
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString(Ellipsis)
	}
	b.WriteString(strings.TrimSpace(string(text[start:end])))
	if end < len(text) {
		b.WriteString(Ellipsis)
	}
	return Ellipsize(b.String(), maxLen)
}

// locate finds term in text, first case-insensitively, then under the
// primary diacritic fold, then under the stripping fold. It returns the rune
// offset and rune length of the match in text.
func locate(text []rune, term string) (int, int, bool) {
	needle := []rune(term)
	if len(needle) == 0 {
		return 0, 0, false
	}
	lower := make([]rune, len(text))
	for i, r := range text {
		lower[i] = unicode.ToLower(r)
	}
	if pos := indexRunes(lower, needle); pos >= 0 {
		return pos, len(needle), true
	}
	for _, fold := range []func(rune) string{normalizer.FoldRune, normalizer.StripRune} {
		folded, origin := foldRunes(lower, fold)
		if pos := indexRunes(folded, needle); pos >= 0 {
			start := origin[pos]
			end := origin[pos+len(needle)-1] + 1
			return start, end - start, true
		}
	}
	return 0, 0, false
}

// foldRunes folds every rune of lower and records, for each output rune, the
// index of the input rune it came from.
func foldRunes(lower []rune, fold func(rune) string) ([]rune, []int) {
	folded := make([]rune, 0, len(lower))
	origin := make([]int, 0, len(lower))
	for i, r := range lower {
		for _, f := range fold(r) {
			folded = append(folded, f)
			origin = append(origin, i)
		}
	}
	return folded, origin
}

func indexRunes(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// byLength orders terms longest first, keeping the given order on ties.
func byLength(terms []string) []string {
	sorted := append([]string(nil), terms...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len([]rune(sorted[i])) > len([]rune(sorted[j]))
	})
	return sorted
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}
	return -1
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
