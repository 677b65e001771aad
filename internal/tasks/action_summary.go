package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/sessionwave/orchestrator/internal/aigen"
)

// ActionSummaryInput is the action_summary task's input: action_items
// only (spec §4.3).
type ActionSummaryInput struct {
	ActionItems []string
}

// ActionSummaryResult is the action_summary task's parsed output. Summary
// is nil on empty output, a non-fatal outcome (spec §4.3).
type ActionSummaryResult struct {
	Summary *string `json:"summary"`
}

// ActionSummary implements aigen.Spec for the action_summary task. It
// never opts in to optional params — invoked with minimal parameters per
// spec §9, which calls this task out explicitly.
type ActionSummary struct{}

func (ActionSummary) TaskName() string { return "action_summary" }

func (ActionSummary) BuildMessages(input any) ([]aigen.Message, error) {
	in, ok := input.(ActionSummaryInput)
	if !ok {
		return nil, fmt.Errorf("action_summary: unexpected input type %T", input)
	}
	prompt := fmt.Sprintf(
		"Summarize these action items in <=45 characters: %v", in.ActionItems)
	return []aigen.Message{
		{Role: aigen.RoleUser, Content: prompt},
	}, nil
}

func (ActionSummary) ParseResult(rawText string) (any, error) {
	var r struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(rawText), &r); err != nil {
		return nil, fmt.Errorf("action_summary: parse result: %w", err)
	}
	if r.Summary == "" {
		return ActionSummaryResult{Summary: nil}, nil
	}
	truncated := truncateNoMidWord(r.Summary, 45)
	return ActionSummaryResult{Summary: &truncated}, nil
}

func (ActionSummary) FallbackResult() any {
	return ActionSummaryResult{Summary: nil}
}
