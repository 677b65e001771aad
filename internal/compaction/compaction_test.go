package compaction

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionwave/orchestrator/internal/config"
)

func sessionsNamed(n int) []PriorSession {
	sessions := make([]PriorSession, n)
	for i := 0; i < n; i++ {
		sessions[i] = PriorSession{
			SessionDate:  fmt.Sprintf("session-%d", i+1),
			Summary:      fmt.Sprintf("summary %d", i+1),
			DeepAnalysis: fmt.Sprintf("deep analysis for session %d", i+1),
			Insights:     []string{fmt.Sprintf("insight %d", i+1)},
		}
	}
	return sessions
}

func TestBuildHierarchical_PartitionBoundaries(t *testing.T) {
	t.Run("below tier1 count, everything is tier1", func(t *testing.T) {
		ctx := Build(config.StrategyHierarchical, Input{PriorSessions: sessionsNamed(2)})
		assert.Len(t, ctx.Tier1Insights, 2)
		assert.Empty(t, ctx.Tier2Summaries)
		assert.Empty(t, ctx.Tier3Arc)
	})

	t.Run("exactly 3 sessions stay entirely in tier1", func(t *testing.T) {
		ctx := Build(config.StrategyHierarchical, Input{PriorSessions: sessionsNamed(3)})
		assert.Len(t, ctx.Tier1Insights, 3)
		assert.Empty(t, ctx.Tier2Summaries)
	})

	t.Run("4th session spills into tier2", func(t *testing.T) {
		ctx := Build(config.StrategyHierarchical, Input{PriorSessions: sessionsNamed(4)})
		assert.Len(t, ctx.Tier1Insights, 3)
		require.Len(t, ctx.Tier2Summaries, 1)
		assert.Equal(t, "session-4", ctx.Tier2Summaries[0].SessionDate)
	})

	t.Run("exactly 7 sessions fill tier1+tier2 with no arc", func(t *testing.T) {
		ctx := Build(config.StrategyHierarchical, Input{PriorSessions: sessionsNamed(7)})
		assert.Len(t, ctx.Tier1Insights, 3)
		assert.Len(t, ctx.Tier2Summaries, 4)
		assert.Empty(t, ctx.Tier3Arc)
	})

	t.Run("8th session spills into tier3 arc", func(t *testing.T) {
		ctx := Build(config.StrategyHierarchical, Input{PriorSessions: sessionsNamed(8)})
		assert.Len(t, ctx.Tier1Insights, 3)
		assert.Len(t, ctx.Tier2Summaries, 4)
		assert.NotEmpty(t, ctx.Tier3Arc)
		assert.Contains(t, ctx.Tier3Arc, "session-8")
	})

	t.Run("sessions beyond 30 are dropped from the arc", func(t *testing.T) {
		ctx := Build(config.StrategyHierarchical, Input{PriorSessions: sessionsNamed(40)})
		assert.Equal(t, Tier3Cap, ctx.SessionsIncluded)
		assert.NotContains(t, ctx.Tier3Arc, "session-31")
		assert.Contains(t, ctx.Tier3Arc, "session-30")
	})

	t.Run("always counts from the most recent session", func(t *testing.T) {
		ctx := Build(config.StrategyHierarchical, Input{PriorSessions: sessionsNamed(10)})
		assert.Equal(t, "session-1", ctx.Tier1Insights[0].SessionDate)
	})
}

func TestBuildFull_ConcatenatesEverything(t *testing.T) {
	ctx := Build(config.StrategyFull, Input{PriorSessions: sessionsNamed(12)})
	assert.Len(t, ctx.Tier1Insights, 12)
	assert.Equal(t, 12, ctx.SessionsIncluded)
}

func TestBuildProgressive_KeepsOnlyMostRecent(t *testing.T) {
	ctx := Build(config.StrategyProgressive, Input{
		PriorSessions:   sessionsNamed(9),
		PreviousJourney: "prior journey text",
	})
	require.Len(t, ctx.Tier1Insights, 1)
	assert.Equal(t, "session-1", ctx.Tier1Insights[0].SessionDate)
	assert.Equal(t, "prior journey text", ctx.PreviousJourney)
}

func TestBuild_PreviousJourneyAlwaysCarried(t *testing.T) {
	ctx := Build(config.StrategyHierarchical, Input{
		PriorSessions:   sessionsNamed(5),
		PreviousJourney: "continuity text",
	})
	assert.Equal(t, "continuity text", ctx.PreviousJourney)
}

func TestParagraph_TruncatesWithoutMidWordBreak(t *testing.T) {
	text := "word1 word2 word3 word4 word5"
	out := paragraph(text, 12)
	assert.LessOrEqual(t, len(out), 12)
	assert.NotContains(t, out, "word2wo")
}
