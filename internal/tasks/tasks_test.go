package tasks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMood_ParseResult_SnapsToHalfStep(t *testing.T) {
	result, err := Mood{}.ParseResult(`{"score": 7.3, "confidence": 0.9, "rationale": "r", "key_indicators": [], "emotional_tone": "calm"}`)
	require.NoError(t, err)
	mr := result.(MoodResult)
	assert.Equal(t, 7.5, mr.Score)
}

func TestTopics_ParseResult_TruncatesSummaryAndValidatesTechnique(t *testing.T) {
	long := strings.Repeat("word ", 40)
	raw := `{"topics": ["anxiety"], "action_items": ["a", "b"], "technique": "Not a real technique", "summary": "` + long + `", "confidence": 0.8}`
	result, err := Topics{}.ParseResult(raw)
	require.NoError(t, err)
	tr := result.(TopicsResult)
	assert.LessOrEqual(t, len(tr.Summary), 150)
	assert.Equal(t, unmatchedTechnique, tr.Technique)
}

func TestTopics_ParseResult_RejectsWrongActionItemCount(t *testing.T) {
	_, err := Topics{}.ParseResult(`{"topics": ["a"], "action_items": ["only one"], "technique": "CBT", "summary": "s", "confidence": 0.8}`)
	assert.Error(t, err)
}

func TestBreakthrough_ParseResult_ForcesFalseBelowConfidenceThreshold(t *testing.T) {
	result, err := Breakthrough{}.ParseResult(`{"has_breakthrough": true, "label": "big shift", "confidence": 0.5}`)
	require.NoError(t, err)
	br := result.(BreakthroughResult)
	assert.False(t, br.HasBreakthrough)
}

func TestBreakthrough_ParseResult_KeepsTrueAboveThreshold(t *testing.T) {
	result, err := Breakthrough{}.ParseResult(`{"has_breakthrough": true, "label": "big shift", "confidence": 0.95}`)
	require.NoError(t, err)
	br := result.(BreakthroughResult)
	assert.True(t, br.HasBreakthrough)
}

func TestActionSummary_ParseResult_EmptyIsNonFatal(t *testing.T) {
	result, err := ActionSummary{}.ParseResult(`{"summary": ""}`)
	require.NoError(t, err)
	asr := result.(ActionSummaryResult)
	assert.Nil(t, asr.Summary)
}

func TestProse_ParseResult_RejectsOutOfRangeWordCount(t *testing.T) {
	short := `{"prose_analysis": "too short", "confidence": 0.9}`
	_, err := Prose{}.ParseResult(short)
	assert.Error(t, err)
}

func TestYourJourney_ParseResult_RejectsUnknownSectionTitle(t *testing.T) {
	raw := `{"summary": "s", "achievements": [], "currentFocus": [], "sections": [{"title": "Not A Real Section", "content": "c"}]}`
	_, err := YourJourney{}.ParseResult(raw)
	assert.Error(t, err)
}

func TestHeuristicSpeakerLabel_TherapistRatioWithinRange(t *testing.T) {
	segments := []Segment{
		{StartSec: 0, EndSec: 3, SpeakerID: "S0", Text: "hello"},
		{StartSec: 3, EndSec: 10, SpeakerID: "S1", Text: "..."},
	}
	result := HeuristicSpeakerLabel(segments)
	assert.Equal(t, "Therapist", result.Labels["S0"])
	assert.Equal(t, "Client", result.Labels["S1"])
}
