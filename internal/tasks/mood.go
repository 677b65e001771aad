package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/sessionwave/orchestrator/internal/aigen"
)

// MoodInput is the mood task's input: patient-speaker segments only
// (spec §4.3).
type MoodInput struct {
	Segments []Segment
}

// MoodResult is the mood task's parsed output (spec §4.3).
type MoodResult struct {
	Score         float64  `json:"score"`
	Confidence    float64  `json:"confidence"`
	Rationale     string   `json:"rationale"`
	KeyIndicators []string `json:"key_indicators"`
	EmotionalTone string   `json:"emotional_tone"`
}

// Mood implements aigen.Spec for the mood task.
type Mood struct{}

func (Mood) TaskName() string { return "mood" }

func (Mood) BuildMessages(input any) ([]aigen.Message, error) {
	in, ok := input.(MoodInput)
	if !ok {
		return nil, fmt.Errorf("mood: unexpected input type %T", input)
	}
	patientLines := patientSegmentsOnly(in.Segments)
	prompt := fmt.Sprintf(
		"Score the patient's mood across this therapy session on a 0-10 scale in 0.5 increments.\n"+
			"Patient statements only:\n%s\n"+
			"Respond as JSON: {score, confidence, rationale, key_indicators, emotional_tone}.",
		formatSegments(patientLines))
	return []aigen.Message{
		{Role: aigen.RoleSystem, Content: "You are a clinical mood-scoring assistant."},
		{Role: aigen.RoleUser, Content: prompt},
	}, nil
}

func (Mood) ParseResult(rawText string) (any, error) {
	var r MoodResult
	if err := json.Unmarshal([]byte(rawText), &r); err != nil {
		return nil, fmt.Errorf("mood: parse result: %w", err)
	}
	r.Score = snapToHalf(r.Score)
	return r, nil
}
