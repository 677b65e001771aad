package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/sessionwave/orchestrator/internal/aigen"
	"github.com/sessionwave/orchestrator/internal/compaction"
)

// SessionBridgeInput is the session_bridge task's input: the patient's
// tiered context (spec §4.3).
type SessionBridgeInput struct {
	Context compaction.Context
}

// SessionBridgeResult is the session_bridge task's parsed output: three
// patient-facing lists (spec §4.3).
type SessionBridgeResult struct {
	ShareConcerns []string `json:"shareConcerns"`
	ShareProgress []string `json:"shareProgress"`
	SetGoals      []string `json:"setGoals"`
	LowConfidence bool     `json:"low_confidence,omitempty"`
}

// SessionBridge implements aigen.Spec for the session_bridge task.
type SessionBridge struct{}

func (SessionBridge) TaskName() string { return "session_bridge" }

func (SessionBridge) BuildMessages(input any) ([]aigen.Message, error) {
	in, ok := input.(SessionBridgeInput)
	if !ok {
		return nil, fmt.Errorf("session_bridge: unexpected input type %T", input)
	}
	prompt := fmt.Sprintf(
		"Write three patient-facing lists (4 items each) for sharing with a support network: "+
			"concerns to share, progress to share, goals to set.\n"+
			"Recent insights: %v\nMid-term summaries: %v\nOlder arc: %s\n"+
			"Respond as JSON: {shareConcerns[4], shareProgress[4], setGoals[4]}.",
		in.Context.Tier1Insights, in.Context.Tier2Summaries, in.Context.Tier3Arc)
	return []aigen.Message{
		{Role: aigen.RoleSystem, Content: "You write patient-facing session bridges."},
		{Role: aigen.RoleUser, Content: prompt},
	}, nil
}

func (SessionBridge) ParseResult(rawText string) (any, error) {
	var r SessionBridgeResult
	if err := json.Unmarshal([]byte(rawText), &r); err != nil {
		return nil, fmt.Errorf("session_bridge: parse result: %w", err)
	}
	return r, nil
}

func (SessionBridge) SupportsOptionalParams() bool { return true }

func (SessionBridge) OptionalParams() aigen.OptionalParams {
	maxTokens := 1500
	return aigen.OptionalParams{MaxTokens: &maxTokens}
}
