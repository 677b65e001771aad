package modeltier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionwave/orchestrator/internal/config"
	"github.com/sessionwave/orchestrator/internal/modeltier"
)

func tierStateWith(tier config.Tier, overrides map[string]string) *config.TierState {
	s := config.NewTierState()
	s.SetForTest(tier, overrides)
	return s
}

func TestResolveModel_OverrideWinsUnconditionally(t *testing.T) {
	catalog := config.DefaultModelCatalog()
	tier := tierStateWith(config.TierPrecision, map[string]string{"mood": "deep-synth-large"})
	r := modeltier.New(tier, catalog)

	model, err := r.ResolveModel("mood", "quick-draft-small")
	require.NoError(t, err)
	assert.Equal(t, "quick-draft-small", model)
}

func TestResolveModel_TierOverrideBeatsDefault(t *testing.T) {
	catalog := config.DefaultModelCatalog()
	tier := tierStateWith(config.TierPrecision, map[string]string{"mood": "quick-draft-small"})
	r := modeltier.New(tier, catalog)

	model, err := r.ResolveModel("mood", "")
	require.NoError(t, err)
	assert.Equal(t, "quick-draft-small", model)
}

func TestResolveModel_BalancedTierSubstitutesHeavyweightTasksOnly(t *testing.T) {
	catalog := config.DefaultModelCatalog()
	tier := tierStateWith(config.TierBalanced, nil)
	r := modeltier.New(tier, catalog)

	deep, err := r.ResolveModel("deep_analysis", "")
	require.NoError(t, err)
	assert.Equal(t, "deep-synth-mid", deep)

	mood, err := r.ResolveModel("mood", "")
	require.NoError(t, err)
	assert.Equal(t, "deep-synth-large", mood, "mood is not a heavyweight task, keeps the precision model under balanced")
}

func TestResolveModel_UnknownOverrideModelIsConfigError(t *testing.T) {
	catalog := config.DefaultModelCatalog()
	tier := tierStateWith(config.TierPrecision, nil)
	r := modeltier.New(tier, catalog)

	_, err := r.ResolveModel("mood", "nonexistent-model")
	assert.True(t, modeltier.IsConfigError(err))
}

func TestCostOf(t *testing.T) {
	catalog := config.DefaultModelCatalog()
	tier := tierStateWith(config.TierPrecision, nil)
	r := modeltier.New(tier, catalog)

	cost, err := r.CostOf("deep-synth-large", 1_000_000, 1_000_000)
	require.NoError(t, err)
	assert.InDelta(t, 90.0, cost, 0.001)
}
