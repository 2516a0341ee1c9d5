// Package normalizer turns journal text into index terms. It lower-cases
// input, folds diacritics through a fixed substitution table, collapses
// whitespace and splits the result into runs of ASCII letters and digits.
package normalizer

import (
	"iter"
	"maps"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// foldTable is the primary fold. German umlauts and ligatures are
// transliterated, the common Latin accents lose their mark.
var foldTable = map[rune]string{
	'ä': "ae", 'ö': "oe", 'ü': "ue", 'ß': "ss",
	'æ': "ae", 'œ': "oe", 'ø': "oe", 'þ': "th",
	'ð': "d", 'đ': "d", 'ł': "l", 'ı': "i",
	'à': "a", 'á': "a", 'â': "a", 'ã': "a", 'å': "a", 'ā': "a", 'ą': "a",
	'ç': "c", 'ć': "c", 'č': "c",
	'è': "e", 'é': "e", 'ê': "e", 'ë': "e", 'ē': "e", 'ę': "e", 'ě': "e",
	'ì': "i", 'í': "i", 'î': "i", 'ï': "i", 'ī': "i",
	'ñ': "n", 'ń': "n", 'ň': "n",
	'ò': "o", 'ó': "o", 'ô': "o", 'õ': "o", 'ō': "o", 'ő': "o",
	'ř': "r", 'ś': "s", 'š': "s", 'ť': "t",
	'ù': "u", 'ú': "u", 'û': "u", 'ū': "u", 'ů': "u", 'ű': "u",
	'ý': "y", 'ÿ': "y", 'ź': "z", 'ż': "z", 'ž': "z",
}

// stripTable is the secondary fold: marks are dropped instead of
// transliterated, so "ü" becomes "u". Only runes that NFD cannot split are
// listed.
var stripTable = map[rune]string{
	'ß': "ss", 'æ': "ae", 'œ': "oe", 'ø': "o", 'þ': "th",
	'ð': "d", 'đ': "d", 'ł': "l", 'ı': "i",
}

// Normalize lower-cases text, folds diacritics and collapses runs of
// whitespace to single spaces. Pure ASCII input skips the fold entirely.
func Normalize(text string) string {
	return fold(text, foldTable)
}

// Strip is like Normalize but removes diacritic marks without
// transliterating them.
func Strip(text string) string {
	return fold(text, stripTable)
}

// Tokenize returns the terms of an already normalized string. The sequence
// is lazy and can be ranged over any number of times.
func Tokenize(normalized string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := -1
		for i := 0; i < len(normalized); i++ {
			if isTermByte(normalized[i]) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 {
				if !yield(normalized[start:i]) {
					return
				}
				start = -1
			}
		}
		if start >= 0 {
			yield(normalized[start:])
		}
	}
}

// QueryTerms normalizes a query and returns its distinct terms in the order
// they first appear.
func QueryTerms(query string) []string {
	seen := make(map[string]struct{})
	terms := make([]string, 0, 4)
	for term := range Tokenize(Normalize(query)) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}

// TermFrequencies counts the terms of text. When text carries diacritics the
// stripped spelling of each word is counted as well, unless it already occurs
// as a primary term, so "Müdigkeit" is indexed as both "muedigkeit" and
// "mudigkeit".
func TermFrequencies(text string) map[string]int {
	tf := make(map[string]int)
	for term := range Tokenize(Normalize(text)) {
		tf[term]++
	}
	if isASCII(text) {
		return tf
	}
	alt := make(map[string]int)
	for term := range Tokenize(Strip(text)) {
		if _, primary := tf[term]; !primary {
			alt[term]++
		}
	}
	maps.Copy(tf, alt)
	return tf
}

// Spellings maps every stripped spelling TermFrequencies adds for text to
// the primary term of the same word, e.g. "mudigkeit" to "muedigkeit".
// It is nil for ASCII text.
func Spellings(text string) map[string]string {
	if isASCII(text) {
		return nil
	}
	primary := make(map[string]struct{})
	for term := range Tokenize(Normalize(text)) {
		primary[term] = struct{}{}
	}
	spellings := make(map[string]string)
	for _, word := range strings.Fields(text) {
		if isASCII(word) {
			continue
		}
		folded := slices.Collect(Tokenize(Normalize(word)))
		stripped := slices.Collect(Tokenize(Strip(word)))
		if len(folded) != len(stripped) {
			continue
		}
		for i, alt := range stripped {
			if _, ok := primary[alt]; ok {
				continue
			}
			spellings[alt] = folded[i]
		}
	}
	return spellings
}

// FoldRune applies the primary fold to a single lower-case rune.
func FoldRune(r rune) string {
	return foldRune(r, foldTable)
}

// StripRune applies the secondary fold to a single lower-case rune.
func StripRune(r rune) string {
	return foldRune(r, stripTable)
}

func fold(text string, table map[rune]string) string {
	if isASCII(text) {
		return collapse(strings.ToLower(text))
	}
	lower := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		b.WriteString(foldRune(r, table))
	}
	return collapse(b.String())
}

func foldRune(r rune, table map[rune]string) string {
	if r < utf8.RuneSelf {
		return string(r)
	}
	if rep, ok := table[r]; ok {
		return rep
	}
	decomposed := norm.NFD.String(string(r))
	var b strings.Builder
	for _, d := range decomposed {
		if unicode.Is(unicode.Mn, d) {
			continue
		}
		b.WriteRune(d)
	}
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func isTermByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z')
}
