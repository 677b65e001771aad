// Package tasks implements C3: the nine task-specific generators built
// atop internal/aigen's shared generate() contract.
package tasks

import (
	"fmt"
	"strings"

	"github.com/sessionwave/orchestrator/internal/store"
)

// Segment is an alias of store.TranscriptSegment, used as generator input
// by the prompt-building code below.
type Segment = store.TranscriptSegment

// truncateNoMidWord truncates s to at most maxLen characters without
// splitting a word (spec §4.3: topics.summary rule, reused for the 45-char
// action_items_summary and elsewhere a hard length cap applies).
func truncateNoMidWord(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := strings.LastIndex(s[:maxLen], " ")
	if cut <= 0 {
		cut = maxLen
	}
	return strings.TrimSpace(s[:cut])
}

// snapToHalf rounds a score to the nearest 0.5 step in [0, 10] (spec §4.3:
// mood task hard rule).
func snapToHalf(score float64) float64 {
	snapped := float64(int(score*2+0.5)) / 2
	if snapped < 0 {
		return 0
	}
	if snapped > 10 {
		return 10
	}
	return snapped
}

// techniqueLibrary is the static set of recognized therapeutic techniques
// (spec §4.3: "technique validated against a static library").
var techniqueLibrary = map[string]bool{
	"CBT":                       true,
	"DBT":                       true,
	"Motivational Interviewing": true,
	"Psychodynamic":             true,
	"Solution-Focused":          true,
	"Mindfulness-Based":         true,
	"Exposure Therapy":          true,
	"EMDR":                      true,
	"Acceptance and Commitment": true,
	"Person-Centered":           true,
}

const unmatchedTechnique = "Not specified"

func validateTechnique(t string) string {
	if techniqueLibrary[t] {
		return t
	}
	return unmatchedTechnique
}

// roadmapSectionVocabulary is the fixed vocabulary your_journey sections
// must draw from (spec §4.3).
var roadmapSectionVocabulary = []string{
	"Where You Started",
	"Key Breakthroughs",
	"Skills You've Built",
	"Patterns You've Noticed",
	"Where You're Headed",
}

func formatSegments(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		fmt.Fprintf(&b, "[%s] %s: %s\n", formatTimeRange(s.StartSec, s.EndSec), s.SpeakerID, s.Text)
	}
	return b.String()
}

func formatTimeRange(startSec, endSec float64) string {
	return fmt.Sprintf("%.0fs-%.0fs", startSec, endSec)
}

// patientSegmentsOnly filters to segments spoken by the patient, used by
// the mood task (spec §4.3: "Patient-speaker segments only").
func patientSegmentsOnly(segments []Segment) []Segment {
	var out []Segment
	for _, s := range segments {
		if s.SpeakerID == "Client" || s.SpeakerID == "S1" {
			out = append(out, s)
		}
	}
	return out
}
