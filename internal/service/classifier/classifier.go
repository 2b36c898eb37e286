// Package classifier decides what a caption fragment means for a speaker's
// in-progress sentence.
package classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/similarity"
)

// UnknownSpeaker replaces empty speaker labels.
const UnknownSpeaker = "Unknown Speaker"

// continuationMaxWords: fragments shorter than this are assumed to continue
// the buffered sentence.
const continuationMaxWords = 4

// Decision is the outcome of classifying one fragment.
type Decision int

const (
	// DecisionNewSentence - finalize the buffered sentence (if any) and start over.
	DecisionNewSentence Decision = iota
	// DecisionIncremental - a longer revision of the buffered sentence.
	DecisionIncremental
	// DecisionStale - an older or equal revision; only refreshes activity.
	DecisionStale
	// DecisionDuplicate - repeats a recently finalized sentence; discarded.
	DecisionDuplicate
	// DecisionContinuation - appended to the buffered sentence.
	DecisionContinuation
)

// String returns the label used in logs and metrics.
func (d Decision) String() string {
	switch d {
	case DecisionNewSentence:
		return "new_sentence"
	case DecisionIncremental:
		return "incremental"
	case DecisionStale:
		return "stale"
	case DecisionDuplicate:
		return "duplicate"
	case DecisionContinuation:
		return "continuation"
	default:
		return "unknown"
	}
}

// Classify compares text against the speaker's buffered sentence (current,
// empty when idle) and recently finalized sentences. The rules are checked in
// order: revision of the buffer, duplicate of a recent sentence,
// continuation, new sentence.
func Classify(current string, recent []string, text string) Decision {
	if current != "" && isRevision(current, text) {
		if utf8.RuneCountInString(text) > utf8.RuneCountInString(current) {
			return DecisionIncremental
		}
		return DecisionStale
	}
	if similarity.IsDuplicateOfAny(text, recent) {
		return DecisionDuplicate
	}
	if current != "" && SeemsContinuation(current, text) {
		return DecisionContinuation
	}
	return DecisionNewSentence
}

func isRevision(current, text string) bool {
	return similarity.IsIncrementalUpdate(current, text) ||
		strings.Contains(text, current) ||
		strings.Contains(current, text)
}

// SeemsContinuation guesses whether next carries on from prev: next opens
// with a lowercase letter, prev lacks terminal punctuation, or next is short.
//
// The guess is deliberately loose. Caption sources rarely punctuate partial
// results, so most fragments from an active speaker merge; sentence
// boundaries come from the buffer window instead.
func SeemsContinuation(prev, next string) bool {
	if r, _ := utf8.DecodeRuneInString(next); unicode.IsLower(r) {
		return true
	}
	if !endsSentence(strings.TrimSpace(prev)) {
		return true
	}
	return similarity.WordCount(next) < continuationMaxWords
}

func endsSentence(s string) bool {
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return strings.ContainsRune(".!?;:", r)
}

// NormalizeSpeaker trims the label, maps known aliases and replaces empty
// labels with UnknownSpeaker.
func NormalizeSpeaker(speaker string, aliases map[string]string) string {
	name := strings.TrimSpace(speaker)
	if name == "" {
		return UnknownSpeaker
	}
	if alias, ok := aliases[name]; ok && alias != "" {
		return alias
	}
	return name
}
