package tasks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sessionwave/orchestrator/internal/aigen"
)

// ProseInput is the prose task's input: the deep_analysis result
// (spec §4.3).
type ProseInput struct {
	DeepAnalysis DeepAnalysisResult
}

// ProseResult is the prose task's parsed output: a single-voice narrative,
// 500-750 words, no lists (spec §4.3).
type ProseResult struct {
	ProseAnalysis string  `json:"prose_analysis"`
	Confidence    float64 `json:"confidence"`
}

// Prose implements aigen.Spec for the prose task.
type Prose struct{}

func (Prose) TaskName() string { return "prose" }

func (Prose) BuildMessages(input any) ([]aigen.Message, error) {
	in, ok := input.(ProseInput)
	if !ok {
		return nil, fmt.Errorf("prose: unexpected input type %T", input)
	}
	prompt := fmt.Sprintf(
		"Write a single-voice narrative (500-750 words, no bullet lists) synthesizing this "+
			"clinical analysis into a prose account of the session.\nProgress: %s\nInsights: %v\n"+
			"Skills: %v\nRelationship: %s\nRecommendations: %v\n"+
			"Respond as JSON: {prose_analysis, confidence}.",
		in.DeepAnalysis.Progress, in.DeepAnalysis.Insights, in.DeepAnalysis.Skills,
		in.DeepAnalysis.Relationship, in.DeepAnalysis.Recommendations)
	return []aigen.Message{
		{Role: aigen.RoleSystem, Content: "You write prose clinical narratives."},
		{Role: aigen.RoleUser, Content: prompt},
	}, nil
}

func (Prose) ParseResult(rawText string) (any, error) {
	var r ProseResult
	if err := json.Unmarshal([]byte(rawText), &r); err != nil {
		return nil, fmt.Errorf("prose: parse result: %w", err)
	}
	wordCount := len(strings.Fields(r.ProseAnalysis))
	if wordCount < 500 || wordCount > 750 {
		return nil, fmt.Errorf("prose: word count %d outside [500, 750]", wordCount)
	}
	return r, nil
}

func (Prose) SupportsOptionalParams() bool { return true }

func (Prose) OptionalParams() aigen.OptionalParams {
	maxTokens := 2000
	return aigen.OptionalParams{MaxTokens: &maxTokens}
}
