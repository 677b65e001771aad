package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/sessionwave/orchestrator/internal/aigen"
)

// SpeakerLabelInput is the speaker_label task's input: raw segments
// (spec §4.3).
type SpeakerLabelInput struct {
	Segments []Segment
}

// SpeakerLabelResult maps S0|S1 to Therapist/Client with confidence
// (spec §4.3).
type SpeakerLabelResult struct {
	Labels     map[string]string  `json:"labels"`
	Confidence map[string]float64 `json:"confidence"`
}

// SpeakerLabel implements aigen.Spec for the speaker_label task.
type SpeakerLabel struct{}

func (SpeakerLabel) TaskName() string { return "speaker_label" }

func (SpeakerLabel) BuildMessages(input any) ([]aigen.Message, error) {
	in, ok := input.(SpeakerLabelInput)
	if !ok {
		return nil, fmt.Errorf("speaker_label: unexpected input type %T", input)
	}
	prompt := fmt.Sprintf(
		"Label each raw speaker id as Therapist or Client based on conversational role.\n%s\n"+
			"Respond as JSON: {labels: {speaker_id: role}, confidence: {speaker_id: score}}.",
		formatSegments(in.Segments))
	return []aigen.Message{
		{Role: aigen.RoleSystem, Content: "You identify therapist vs. client speakers."},
		{Role: aigen.RoleUser, Content: prompt},
	}, nil
}

func (SpeakerLabel) ParseResult(rawText string) (any, error) {
	var r SpeakerLabelResult
	if err := json.Unmarshal([]byte(rawText), &r); err != nil {
		return nil, fmt.Errorf("speaker_label: parse result: %w", err)
	}
	return r, nil
}

// HeuristicSpeakerLabel applies the heuristic fusion rule (spec §4.3): the first
// speaker is assumed Therapist if their speaking-time ratio falls in
// [0.25, 0.45], a plausible listening-heavy therapist ratio; otherwise
// Client.
func HeuristicSpeakerLabel(segments []Segment) SpeakerLabelResult {
	totalBySpeaker := map[string]float64{}
	var total float64
	var firstSpeaker string
	for _, s := range segments {
		if firstSpeaker == "" {
			firstSpeaker = s.SpeakerID
		}
		dur := s.EndSec - s.StartSec
		totalBySpeaker[s.SpeakerID] += dur
		total += dur
	}
	if total == 0 || firstSpeaker == "" {
		return SpeakerLabelResult{Labels: map[string]string{}, Confidence: map[string]float64{}}
	}

	ratio := totalBySpeaker[firstSpeaker] / total
	firstLabel := "Client"
	if ratio >= 0.25 && ratio <= 0.45 {
		firstLabel = "Therapist"
	}
	complement := "Therapist"
	if firstLabel == "Therapist" {
		complement = "Client"
	}

	labels := map[string]string{}
	confidence := map[string]float64{}
	for speaker := range totalBySpeaker {
		if speaker == firstSpeaker {
			labels[speaker] = firstLabel
		} else {
			labels[speaker] = complement
		}
		confidence[speaker] = 0.5
	}
	return SpeakerLabelResult{Labels: labels, Confidence: confidence}
}
