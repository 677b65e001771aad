package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/sessionwave/orchestrator/internal/aigen"
)

// BreakthroughInput is the breakthrough task's input: the full
// conversation (spec §4.3).
type BreakthroughInput struct {
	Segments []Segment
}

// BreakthroughResult is the breakthrough task's parsed output (spec §4.3).
type BreakthroughResult struct {
	HasBreakthrough bool    `json:"has_breakthrough"`
	Label           string  `json:"label"`
	EvidenceQuote   string  `json:"evidence_quote"`
	TimestampRange  string  `json:"timestamp_range"`
	Confidence      float64 `json:"confidence"`
}

// Breakthrough implements aigen.Spec for the breakthrough task.
type Breakthrough struct{}

func (Breakthrough) TaskName() string { return "breakthrough" }

func (Breakthrough) BuildMessages(input any) ([]aigen.Message, error) {
	in, ok := input.(BreakthroughInput)
	if !ok {
		return nil, fmt.Errorf("breakthrough: unexpected input type %T", input)
	}
	prompt := fmt.Sprintf(
		"Determine whether a therapeutic breakthrough occurred in this session.\nTranscript:\n%s\n"+
			"Respond as JSON: {has_breakthrough, label, evidence_quote, timestamp_range, confidence}. "+
			"label must be 2-3 words.",
		formatSegments(in.Segments))
	return []aigen.Message{
		{Role: aigen.RoleSystem, Content: "You are a clinical breakthrough detector."},
		{Role: aigen.RoleUser, Content: prompt},
	}, nil
}

func (Breakthrough) ParseResult(rawText string) (any, error) {
	var r BreakthroughResult
	if err := json.Unmarshal([]byte(rawText), &r); err != nil {
		return nil, fmt.Errorf("breakthrough: parse result: %w", err)
	}
	// Strict rule (spec §4.3): low confidence forces has_breakthrough=false.
	if r.Confidence < 0.8 {
		r.HasBreakthrough = false
	}
	return r, nil
}

func (Breakthrough) FallbackResult() any {
	return BreakthroughResult{HasBreakthrough: false, Confidence: 0}
}
