package config

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Tier is the process-wide model-quality selector (spec §4.1, §6).
type Tier string

const (
	TierPrecision Tier = "precision"
	TierBalanced  Tier = "balanced"
	TierRapid     Tier = "rapid"
)

func (t Tier) Valid() bool {
	switch t {
	case TierPrecision, TierBalanced, TierRapid:
		return true
	}
	return false
}

// tierRefreshInterval bounds how stale a cached MODEL_TIER read may be.
// The spec requires a change to the environment to be visible within one
// second of the next resolveModel call (§4.1).
const tierRefreshInterval = time.Second

// TierState is the process-wide ModelTierConfig (spec §3): the active tier
// plus any per-task model overrides, refreshed from the environment on a
// read-through cache. Mirrors the teacher's LLMProviderRegistry
// (pkg/config/llm.go) but adds a TTL-based refresh instead of a one-shot
// load, since MODEL_TIER is meant to be changed at runtime (spec §6, S6).
type TierState struct {
	mu        sync.RWMutex
	tier      Tier
	overrides map[string]string // task -> model id
	lastRead  atomic.Int64      // unix nanos of last env refresh

	// envReader is overridable in tests; defaults to os.Getenv via envTierReader.
	envReader func() (Tier, map[string]string)
}

// NewTierState creates a TierState that reads MODEL_TIER from the
// environment, defaulting to TierPrecision.
func NewTierState() *TierState {
	return &TierState{
		tier:      TierPrecision,
		overrides: map[string]string{},
		envReader: envTierReader,
	}
}

// Current returns the active tier and override map, refreshing from the
// environment if the cache has gone stale.
func (s *TierState) Current() (Tier, map[string]string) {
	now := time.Now().UnixNano()
	last := s.lastRead.Load()
	if time.Duration(now-last) >= tierRefreshInterval {
		if s.lastRead.CompareAndSwap(last, now) {
			tier, overrides := s.envReader()
			s.mu.Lock()
			s.tier = tier
			s.overrides = overrides
			s.mu.Unlock()
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tier, s.overrides
}

// SetForTest pins the tier and overrides directly, bypassing the
// environment-backed refresh. For use in tests only.
func (s *TierState) SetForTest(tier Tier, overrides map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tier = tier
	if overrides == nil {
		overrides = map[string]string{}
	}
	s.overrides = overrides
	s.lastRead.Store(time.Now().UnixNano())
}

func envTierReader() (Tier, map[string]string) {
	tier := Tier(getEnv("MODEL_TIER", string(TierPrecision)))
	if !tier.Valid() {
		tier = TierPrecision
	}
	// Per-task overrides are expressed as MODEL_OVERRIDE_<TASK>=<model-id>.
	overrides := map[string]string{}
	for _, task := range []string{
		"mood", "topics", "breakthrough", "action_summary", "deep_analysis",
		"prose", "speaker_label", "your_journey", "session_bridge",
	} {
		if v := envOverride(task); v != "" {
			overrides[task] = v
		}
	}
	return tier, overrides
}

func envOverride(task string) string {
	return getEnv("MODEL_OVERRIDE_"+upperSnake(task), "")
}

func upperSnake(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// ModelPrice holds per-million-token pricing for a model id.
type ModelPrice struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// ModelCatalog is the static table backing C1's priceOf/costOf and the
// per-tier model substitutions described in spec §4.1.
type ModelCatalog struct {
	// Precision is the default (strongest) model per task.
	Precision map[string]string
	// Balanced substitutes a mid model for the heavyweight tasks only.
	Balanced map[string]string
	// Rapid substitutes the cheapest model for every task.
	Rapid map[string]string
	// Prices maps every model id referenced above to its pricing.
	Prices map[string]ModelPrice
}

// heavyweightTasks substitute under the "balanced" tier (spec §4.1).
var heavyweightTasks = map[string]bool{
	"deep_analysis":  true,
	"prose":          true,
	"your_journey":   true,
	"session_bridge": true,
	"breakthrough":   true,
}

// DefaultModelCatalog returns the built-in catalog. Model names are
// deliberately generic ("deep-synth", "quick-draft", ...) — speed/quality
// adjectives, never cost labels, per spec §4.1.
func DefaultModelCatalog() *ModelCatalog {
	allTasks := []string{
		"mood", "topics", "breakthrough", "action_summary", "deep_analysis",
		"prose", "speaker_label", "your_journey", "session_bridge",
	}

	precisionModel := "deep-synth-large"
	balancedModel := "deep-synth-mid"
	rapidModel := "quick-draft-small"

	precision := map[string]string{}
	balanced := map[string]string{}
	rapid := map[string]string{}
	for _, t := range allTasks {
		precision[t] = precisionModel
		if heavyweightTasks[t] {
			balanced[t] = balancedModel
		} else {
			balanced[t] = precisionModel
		}
		rapid[t] = rapidModel
	}

	return &ModelCatalog{
		Precision: precision,
		Balanced:  balanced,
		Rapid:     rapid,
		Prices: map[string]ModelPrice{
			precisionModel: {InputPerMillion: 15.00, OutputPerMillion: 75.00},
			balancedModel:  {InputPerMillion: 3.00, OutputPerMillion: 15.00},
			rapidModel:     {InputPerMillion: 0.25, OutputPerMillion: 1.25},
		},
	}
}

// ModelFor resolves the catalog entry for a task under a given tier.
func (c *ModelCatalog) ModelFor(tier Tier, task string) (string, error) {
	var table map[string]string
	switch tier {
	case TierPrecision:
		table = c.Precision
	case TierBalanced:
		table = c.Balanced
	case TierRapid:
		table = c.Rapid
	default:
		return "", fmt.Errorf("%w: unknown tier %q", ErrInvalidValue, tier)
	}
	model, ok := table[task]
	if !ok {
		return "", fmt.Errorf("%w: unknown task %q", ErrInvalidValue, task)
	}
	return model, nil
}

// Price looks up pricing for a model id.
func (c *ModelCatalog) Price(modelID string) (ModelPrice, error) {
	p, ok := c.Prices[modelID]
	if !ok {
		return ModelPrice{}, fmt.Errorf("%w: unknown model %q", ErrInvalidValue, modelID)
	}
	return p, nil
}
