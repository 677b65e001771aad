package config

import "fmt"

// CompactionStrategy selects how prior-session context is folded into a
// prompt for the current session (spec §4.4).
type CompactionStrategy string

const (
	// StrategyFull concatenates every prior session's summary and
	// deep-analysis text untrimmed, so its size grows with the number of
	// prior sessions.
	StrategyFull CompactionStrategy = "full"

	// StrategyProgressive summarizes anything older than the most recent
	// session, a coarser fallback to the tiered strategy.
	StrategyProgressive CompactionStrategy = "progressive"

	// StrategyHierarchical is the default: recent-full / mid-summarized /
	// old-arc tiering at the 3/4/7/8/30 boundaries from spec §4.4.
	StrategyHierarchical CompactionStrategy = "hierarchical"
)

func (s CompactionStrategy) Valid() bool {
	switch s {
	case StrategyFull, StrategyProgressive, StrategyHierarchical:
		return true
	}
	return false
}

// CompactionConfig controls the tiered context builder (C4). Only Strategy
// is consumed; compaction.Build uses its own Tier1Count, Tier2UpperBound
// and Tier3Cap constants rather than the four boundary fields below.
type CompactionConfig struct {
	// Strategy selects which builder runs (env COMPACTION_STRATEGY,
	// default "hierarchical").
	Strategy CompactionStrategy

	// RecentFullCount is how many of the most recent sessions get
	// per-session insight bullets (spec §4.4 boundary: 3).
	RecentFullCount int

	// MidSummaryCount is how many sessions before the recent window get
	// paragraph summaries (spec §4.4 boundary: 4, i.e. sessions 4-7 back).
	MidSummaryCount int

	// OldArcThreshold is the session-count boundary past which sessions
	// are folded into a single rolled-up arc summary instead of individual
	// summaries (spec §4.4 boundary: 7).
	OldArcThreshold int

	// MaxArcSessions caps the total number of most recent sessions
	// considered; older sessions are dropped entirely (spec §4.4
	// boundary: 30).
	MaxArcSessions int
}

// DefaultCompactionConfig returns the boundary values named in spec §4.4.
func DefaultCompactionConfig() *CompactionConfig {
	return &CompactionConfig{
		Strategy:        StrategyHierarchical,
		RecentFullCount: 3,
		MidSummaryCount: 4,
		OldArcThreshold: 7,
		MaxArcSessions:  30,
	}
}

// LoadCompactionConfigFromEnv overlays COMPACTION_STRATEGY on the defaults.
func LoadCompactionConfigFromEnv() (*CompactionConfig, error) {
	cfg := DefaultCompactionConfig()
	strategy := CompactionStrategy(getEnv("COMPACTION_STRATEGY", string(cfg.Strategy)))
	if !strategy.Valid() {
		return nil, &ValidationError{
			Component: "compaction",
			Field:     "COMPACTION_STRATEGY",
			Err:       fmt.Errorf("%w: %q", ErrInvalidValue, strategy),
		}
	}
	cfg.Strategy = strategy
	return cfg, nil
}
