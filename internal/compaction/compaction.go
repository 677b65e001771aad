// Package compaction implements C4: a pure function building tiered
// context for Journey and Bridge generation, bounding token growth so
// per-generation cost stays roughly constant in the number of prior
// sessions (spec §4.4).
package compaction

import (
	"fmt"
	"strings"

	"github.com/sessionwave/orchestrator/internal/config"
)

// PriorSession is the subset of a session's Wave-1/Wave-2 fields the
// compaction engine reads. Ordered most-recent-first by the caller.
type PriorSession struct {
	SessionDate  string
	Summary      string
	DeepAnalysis string // extracted key lines, not an AI call (spec §4.4 Tier 2)
	Insights     []string
}

// Input is everything the engine needs; it performs no I/O (spec §4.4).
type Input struct {
	PriorSessions  []PriorSession // most recent first
	PreviousJourney string        // previous JourneyLatest.data_json summary, if any
}

// Context is the structured dictionary fed directly into the Journey or
// Bridge prompt template (spec §4.4).
type Context struct {
	Strategy         config.CompactionStrategy
	Tier1Insights    []TierEntry // most recent 1-3 sessions, per-session bullets
	Tier2Summaries   []TierEntry // sessions 4-7, paragraph summaries
	Tier3Arc         string      // sessions 8+, single combined arc
	PreviousJourney  string
	SessionsIncluded int
}

// TierEntry pairs a session date with its per-session content.
type TierEntry struct {
	SessionDate string
	Content     string
}

// Build dispatches to the named strategy (spec §4.4).
func Build(strategy config.CompactionStrategy, in Input) Context {
	switch strategy {
	case config.StrategyFull:
		return buildFull(in)
	case config.StrategyProgressive:
		return buildProgressive(in)
	default:
		return buildHierarchical(in)
	}
}

// buildFull concatenates every prior session's raw fields into Tier 1,
// unbounded (spec §4.4: "cost grows linearly").
func buildFull(in Input) Context {
	ctx := Context{Strategy: config.StrategyFull, PreviousJourney: in.PreviousJourney}
	for _, s := range in.PriorSessions {
		ctx.Tier1Insights = append(ctx.Tier1Insights, TierEntry{
			SessionDate: s.SessionDate,
			Content:     fmt.Sprintf("%s\n%s", s.Summary, s.DeepAnalysis),
		})
	}
	ctx.SessionsIncluded = len(in.PriorSessions)
	return ctx
}

// buildProgressive keeps only the previous Journey plus the current
// session, trading fidelity for a constant cost (spec §4.4).
func buildProgressive(in Input) Context {
	ctx := Context{Strategy: config.StrategyProgressive, PreviousJourney: in.PreviousJourney}
	if len(in.PriorSessions) > 0 {
		s := in.PriorSessions[0]
		ctx.Tier1Insights = []TierEntry{{SessionDate: s.SessionDate, Content: s.Summary}}
		ctx.SessionsIncluded = 1
	}
	return ctx
}

// Boundary constants from spec §4.4, verified at these exact values in
// the package's tests.
const (
	Tier1Count      = 3  // most recent 1-3 sessions get full per-session insights
	Tier2UpperBound = 7  // sessions 4-7 get paragraph summaries
	Tier3Cap        = 30 // sessions older than ~30 are dropped from the arc
)

// buildHierarchical partitions by recency into the three named tiers
// (spec §4.4). Always counts from the most recent session.
func buildHierarchical(in Input) Context {
	ctx := Context{Strategy: config.StrategyHierarchical, PreviousJourney: in.PreviousJourney}

	sessions := in.PriorSessions
	if len(sessions) > Tier3Cap {
		sessions = sessions[:Tier3Cap]
	}
	ctx.SessionsIncluded = len(sessions)

	tier1End := min(Tier1Count, len(sessions))
	for _, s := range sessions[:tier1End] {
		ctx.Tier1Insights = append(ctx.Tier1Insights, TierEntry{
			SessionDate: s.SessionDate,
			Content:     bulletize(s.Insights),
		})
	}

	if tier1End < len(sessions) {
		tier2End := min(Tier2UpperBound, len(sessions))
		for _, s := range sessions[tier1End:tier2End] {
			ctx.Tier2Summaries = append(ctx.Tier2Summaries, TierEntry{
				SessionDate: s.SessionDate,
				Content:     paragraph(s.DeepAnalysis, 300),
			})
		}

		if tier2End < len(sessions) {
			ctx.Tier3Arc = combineArc(sessions[tier2End:])
		}
	}

	return ctx
}

func bulletize(insights []string) string {
	if len(insights) == 0 {
		return ""
	}
	var b strings.Builder
	for _, line := range insights {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// paragraph extracts key lines from deep_analysis without an additional
// AI call, truncated to maxChars without a mid-word break (mirrors the
// truncation rule applied to the topics task's summary field, spec §4.3).
func paragraph(deepAnalysis string, maxChars int) string {
	if len(deepAnalysis) <= maxChars {
		return deepAnalysis
	}
	cut := strings.LastIndex(deepAnalysis[:maxChars], " ")
	if cut <= 0 {
		cut = maxChars
	}
	return deepAnalysis[:cut]
}

// combineArc folds the oldest tail into one journey-arc string.
func combineArc(sessions []PriorSession) string {
	var b strings.Builder
	for i, s := range sessions {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(s.SessionDate)
		b.WriteString(": ")
		b.WriteString(paragraph(s.Summary, 120))
	}
	return b.String()
}
