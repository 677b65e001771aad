package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/sessionwave/orchestrator/internal/aigen"
	"github.com/sessionwave/orchestrator/internal/compaction"
)

// YourJourneyInput is the your_journey (roadmap) task's input: the
// patient's tiered context (spec §4.3).
type YourJourneyInput struct {
	Context compaction.Context
}

// RoadmapSection is one entry of the fixed-vocabulary sections array
// (spec §4.3).
type RoadmapSection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// YourJourneyResult is the your_journey task's parsed output (spec §4.3).
type YourJourneyResult struct {
	Summary      string           `json:"summary"`
	Achievements []string         `json:"achievements"`
	CurrentFocus []string         `json:"currentFocus"`
	Sections     []RoadmapSection `json:"sections"`
}

// YourJourney implements aigen.Spec for the your_journey task.
type YourJourney struct{}

func (YourJourney) TaskName() string { return "your_journey" }

func (YourJourney) BuildMessages(input any) ([]aigen.Message, error) {
	in, ok := input.(YourJourneyInput)
	if !ok {
		return nil, fmt.Errorf("your_journey: unexpected input type %T", input)
	}
	prompt := fmt.Sprintf(
		"Build a therapeutic roadmap for this patient using exactly these five section titles: %v.\n"+
			"Recent insights: %v\nMid-term summaries: %v\nOlder arc: %s\nPrevious journey: %s\n"+
			"Respond as JSON: {summary, achievements[5], currentFocus[3], sections[5]}.",
		roadmapSectionVocabulary, in.Context.Tier1Insights, in.Context.Tier2Summaries,
		in.Context.Tier3Arc, in.Context.PreviousJourney)
	return []aigen.Message{
		{Role: aigen.RoleSystem, Content: "You write patient-facing therapeutic roadmaps."},
		{Role: aigen.RoleUser, Content: prompt},
	}, nil
}

func (YourJourney) ParseResult(rawText string) (any, error) {
	var r YourJourneyResult
	if err := json.Unmarshal([]byte(rawText), &r); err != nil {
		return nil, fmt.Errorf("your_journey: parse result: %w", err)
	}
	allowed := make(map[string]bool, len(roadmapSectionVocabulary))
	for _, t := range roadmapSectionVocabulary {
		allowed[t] = true
	}
	for _, sec := range r.Sections {
		if !allowed[sec.Title] {
			return nil, fmt.Errorf("your_journey: section title %q not in fixed vocabulary", sec.Title)
		}
	}
	return r, nil
}

func (YourJourney) SupportsOptionalParams() bool { return true }

func (YourJourney) OptionalParams() aigen.OptionalParams {
	maxTokens := 3000
	return aigen.OptionalParams{MaxTokens: &maxTokens}
}
