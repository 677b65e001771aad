package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/sessionwave/orchestrator/internal/aigen"
)

// TopicsInput is the topics task's input: the full conversation (spec §4.3).
type TopicsInput struct {
	Segments []Segment
}

// TopicsResult is the topics task's parsed output (spec §4.3).
type TopicsResult struct {
	Topics      []string `json:"topics"`
	ActionItems []string `json:"action_items"`
	Technique   string   `json:"technique"`
	Summary     string   `json:"summary"`
	Confidence  float64  `json:"confidence"`
}

// Topics implements aigen.Spec for the topics task.
type Topics struct{}

func (Topics) TaskName() string { return "topics" }

func (Topics) BuildMessages(input any) ([]aigen.Message, error) {
	in, ok := input.(TopicsInput)
	if !ok {
		return nil, fmt.Errorf("topics: unexpected input type %T", input)
	}
	prompt := fmt.Sprintf(
		"Identify 1-2 primary topics, exactly 2 action items, the therapeutic technique used, "+
			"and a summary (<=150 chars) of this session.\nTranscript:\n%s\n"+
			"Respond as JSON: {topics, action_items, technique, summary, confidence}.",
		formatSegments(in.Segments))
	return []aigen.Message{
		{Role: aigen.RoleSystem, Content: "You are a clinical session summarizer."},
		{Role: aigen.RoleUser, Content: prompt},
	}, nil
}

func (Topics) ParseResult(rawText string) (any, error) {
	var r TopicsResult
	if err := json.Unmarshal([]byte(rawText), &r); err != nil {
		return nil, fmt.Errorf("topics: parse result: %w", err)
	}
	if len(r.Topics) < 1 {
		return nil, fmt.Errorf("topics: need at least 1 topic, got %d", len(r.Topics))
	}
	if len(r.Topics) > 2 {
		r.Topics = r.Topics[:2]
	}
	if len(r.ActionItems) != 2 {
		return nil, fmt.Errorf("topics: need exactly 2 action items, got %d", len(r.ActionItems))
	}
	r.Technique = validateTechnique(r.Technique)
	r.Summary = truncateNoMidWord(r.Summary, 150)
	return r, nil
}
