// Package consolidate reorders and deduplicates a transcript.
package consolidate

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/similarity"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/transcript"
)

// MisattributionWindowMs: near-identical entries from different speakers
// closer than this are treated as one utterance credited twice.
const MisattributionWindowMs = 1000

// Report describes what a pass changed.
type Report struct {
	Before            int
	After             int
	Pruned            int
	SameSpeaker       int
	Misattributed     int
	LegitimateRepeats int
}

// Removed returns the total number of entries dropped.
func (r Report) Removed() int {
	return r.Before - r.After
}

// Run returns a consolidated copy of entries: sorted by time, with short
// entries pruned and adjacent duplicates collapsed to their longer text.
// The input is not modified. Running the result through Run again returns it
// unchanged.
func Run(entries []models.TranscriptEntry) ([]models.TranscriptEntry, Report) {
	report := Report{Before: len(entries)}

	out := make([]models.TranscriptEntry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Text) == "" || similarity.WordCount(e.Text) < similarity.MinWordsForNewSentence {
			report.Pruned++
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return transcript.EffectiveMs(out[i]) < transcript.EffectiveMs(out[j])
	})

	i := 0
	for i < len(out)-1 {
		cur, next := out[i], out[i+1]

		if cur.Speaker == next.Speaker {
			if similarity.IsHighlySimilar(cur.Text, next.Text) || similarity.IsShorterVersion(cur.Text, next.Text) {
				out = dropShorter(out, i)
				report.SameSpeaker++
				i = max(i-1, 0)
				continue
			}
		} else if similarity.IsVeryHighlySimilar(cur.Text, next.Text) {
			if transcript.Gap(cur, next) < MisattributionWindowMs {
				out = dropShorter(out, i)
				report.Misattributed++
				i = max(i-1, 0)
				continue
			}
			report.LegitimateRepeats++
		}
		i++
	}

	report.After = len(out)
	return out, report
}

// dropShorter removes whichever of out[i] and out[i+1] has the shorter text.
// On a tie the later entry goes.
func dropShorter(out []models.TranscriptEntry, i int) []models.TranscriptEntry {
	victim := i + 1
	if utf8.RuneCountInString(out[i+1].Text) > utf8.RuneCountInString(out[i].Text) {
		victim = i
	}
	return append(out[:victim], out[victim+1:]...)
}
