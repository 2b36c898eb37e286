// Package similarity implements the text comparison tiers used to decide
// whether two caption texts are revisions of one another, duplicates, or
// distinct sentences.
//
// Every function is total: empty or degenerate input yields "not similar"
// instead of an error. Lengths are measured in runes.
package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinWordsForNewSentence is the minimum number of words a text needs to be
// kept as a transcript entry. The duplicate-of-recent overlap check also
// ignores candidates below it.
const MinWordsForNewSentence = 3

const (
	incrementalPrefixRunes = 20
	minSignificantRunes    = 3

	incrementalThreshold       = 0.70
	duplicateThreshold         = 0.80
	highlySimilarThreshold     = 0.70
	veryHighlySimilarThreshold = 0.90
	shorterVersionFactor       = 0.8
)

// Normalize lowercases and trims text.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// NormalizeStrict lowercases and trims text, then strips every rune that is
// not a letter, digit, underscore or whitespace.
func NormalizeStrict(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, Normalize(text))
}

// Words splits text on runs of whitespace.
func Words(text string) []string {
	return strings.Fields(text)
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Contains reports whether either string contains the other. Empty strings
// never match.
func Contains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// CommonWords counts the entries of words that also occur in pool.
func CommonWords(words, pool []string) int {
	if len(words) == 0 || len(pool) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(pool))
	for _, w := range pool {
		set[w] = struct{}{}
	}
	common := 0
	for _, w := range words {
		if _, ok := set[w]; ok {
			common++
		}
	}
	return common
}

// WordOverlap returns the share of words that occur in pool, relative to
// denominator. A zero denominator yields zero.
func WordOverlap(words, pool []string, denominator int) float64 {
	if denominator <= 0 {
		return 0
	}
	return float64(CommonWords(words, pool)) / float64(denominator)
}

// IsIncrementalUpdate reports whether next looks like a revision of previous:
// next contains the opening of previous, or most of previous's words survive.
func IsIncrementalUpdate(previous, next string) bool {
	p, n := Normalize(previous), Normalize(next)
	if p == "" || n == "" {
		return false
	}
	if strings.Contains(n, prefix(p, incrementalPrefixRunes)) {
		return true
	}
	pw := Words(p)
	return WordOverlap(pw, Words(n), len(pw)) > incrementalThreshold
}

// IsDuplicateOfRecent reports whether candidate repeats a recently finalized
// sentence. Containment counts regardless of length; the word overlap check
// only applies to candidates of at least MinWordsForNewSentence words.
func IsDuplicateOfRecent(candidate, recent string) bool {
	c, r := Normalize(candidate), Normalize(recent)
	if Contains(c, r) {
		return true
	}
	cw := Words(c)
	if len(cw) < MinWordsForNewSentence {
		return false
	}
	return WordOverlap(cw, Words(r), max(len(cw), 1)) > duplicateThreshold
}

// IsDuplicateOfAny reports whether candidate duplicates any of recents.
func IsDuplicateOfAny(candidate string, recents []string) bool {
	for _, r := range recents {
		if IsDuplicateOfRecent(candidate, r) {
			return true
		}
	}
	return false
}

// IsHighlySimilar compares punctuation-free texts: containment, or overlap of
// words longer than two runes above 0.70.
func IsHighlySimilar(a, b string) bool {
	t1, t2 := NormalizeStrict(a), NormalizeStrict(b)
	if Contains(t1, t2) {
		return true
	}
	return significantOverlap(t1, t2) > highlySimilarThreshold
}

// IsVeryHighlySimilar is the strict tier used across speakers. When one text
// contains the other, the answer depends only on their length ratio.
func IsVeryHighlySimilar(a, b string) bool {
	t1, t2 := NormalizeStrict(a), NormalizeStrict(b)
	if Contains(t1, t2) {
		l1, l2 := runeLen(t1), runeLen(t2)
		return float64(min(l1, l2))/float64(max(l1, l2)) > veryHighlySimilarThreshold
	}
	return significantOverlap(t1, t2) > veryHighlySimilarThreshold
}

// IsShorterVersion reports whether one text is substantially shorter than
// the other and contained in it, ignoring case.
func IsShorterVersion(a, b string) bool {
	la, lb := runeLen(a), runeLen(b)
	switch {
	case float64(la) < float64(lb)*shorterVersionFactor:
		return strings.Contains(strings.ToLower(b), strings.ToLower(a))
	case float64(lb) < float64(la)*shorterVersionFactor:
		return strings.Contains(strings.ToLower(a), strings.ToLower(b))
	default:
		return false
	}
}

func significantOverlap(a, b string) float64 {
	w1, w2 := significantWords(a), significantWords(b)
	if len(w1) == 0 || len(w2) == 0 {
		return 0
	}
	return WordOverlap(w1, w2, max(len(w1), len(w2)))
}

func significantWords(text string) []string {
	var out []string
	for _, w := range Words(text) {
		if runeLen(w) >= minSignificantRunes {
			out = append(out, w)
		}
	}
	return out
}

func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
