package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/sessionwave/orchestrator/internal/aigen"
	"github.com/sessionwave/orchestrator/internal/compaction"
)

// DeepAnalysisInput is the deep_analysis task's input: Wave-1 outputs plus
// tiered context from prior sessions (spec §4.3). Requires Wave-1 complete
// for the same session — enforced by the scheduler, not here.
type DeepAnalysisInput struct {
	Wave1Summary string
	Wave1Topics  []string
	Context      compaction.Context
}

// DeepAnalysisResult is the Wave-2 structured result with 5 dimensions
// (spec §4.3).
type DeepAnalysisResult struct {
	Progress        string   `json:"progress"`
	Insights        []string `json:"insights"`
	Skills          []string `json:"skills"`
	Relationship    string   `json:"relationship"`
	Recommendations []string `json:"recommendations"`
	Confidence      float64  `json:"confidence"`
}

// DeepAnalysis implements aigen.Spec for the deep_analysis task.
type DeepAnalysis struct{}

func (DeepAnalysis) TaskName() string { return "deep_analysis" }

func (DeepAnalysis) BuildMessages(input any) ([]aigen.Message, error) {
	in, ok := input.(DeepAnalysisInput)
	if !ok {
		return nil, fmt.Errorf("deep_analysis: unexpected input type %T", input)
	}
	prompt := fmt.Sprintf(
		"Produce a structured clinical synthesis with 5 dimensions: progress, insights, skills, "+
			"relationship, recommendations.\nThis session's topics: %v\nThis session's summary: %s\n"+
			"Prior-session context (tier1=%d, tier2=%d, arc=%q):\n"+
			"Respond as JSON: {progress, insights, skills, relationship, recommendations, confidence}.",
		in.Wave1Topics, in.Wave1Summary,
		len(in.Context.Tier1Insights), len(in.Context.Tier2Summaries), in.Context.Tier3Arc)
	return []aigen.Message{
		{Role: aigen.RoleSystem, Content: "You are a clinical synthesis assistant."},
		{Role: aigen.RoleUser, Content: prompt},
	}, nil
}

func (DeepAnalysis) ParseResult(rawText string) (any, error) {
	var r DeepAnalysisResult
	if err := json.Unmarshal([]byte(rawText), &r); err != nil {
		return nil, fmt.Errorf("deep_analysis: parse result: %w", err)
	}
	return r, nil
}

// SupportsOptionalParams: deep_analysis is long-form and benefits from a
// bounded max-tokens setting (spec §9: opt-in is per task).
func (DeepAnalysis) SupportsOptionalParams() bool { return true }

func (DeepAnalysis) OptionalParams() aigen.OptionalParams {
	maxTokens := 4000
	return aigen.OptionalParams{MaxTokens: &maxTokens}
}
