// Package modeltier implements C1: resolving a task to a concrete model id
// under the active tier, and pricing that model's token usage.
package modeltier

import (
	"errors"
	"fmt"

	"github.com/sessionwave/orchestrator/internal/config"
)

// ConfigError is returned for an unknown task or an unknown override model
// id (spec §4.1).
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

func configErrorf(format string, args ...any) error {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Resolver is the process-wide C1 surface: resolveModel / priceOf / costOf.
type Resolver struct {
	tier    *config.TierState
	catalog *config.ModelCatalog
}

// New builds a Resolver over a live tier state and a model catalog.
func New(tier *config.TierState, catalog *config.ModelCatalog) *Resolver {
	return &Resolver{tier: tier, catalog: catalog}
}

// ResolveModel implements resolveModel(task, overrideModel?) → modelId
// (spec §4.1). If overrideModel is non-empty it wins unconditionally;
// otherwise the active tier's per-task override wins; otherwise the task's
// tier default. Re-reads the tier on every call via the TTL-cached
// TierState, satisfying the one-call-per-second freshness bound.
func (r *Resolver) ResolveModel(task string, overrideModel string) (string, error) {
	if overrideModel != "" {
		if _, err := r.catalog.Price(overrideModel); err != nil {
			return "", configErrorf("resolve model for task %q: %v", task, err)
		}
		return overrideModel, nil
	}

	tier, overrides := r.tier.Current()
	if m, ok := overrides[task]; ok {
		return m, nil
	}

	model, err := r.catalog.ModelFor(tier, task)
	if err != nil {
		return "", configErrorf("resolve model for task %q: %v", task, err)
	}
	return model, nil
}

// PriceOf implements priceOf(modelId).
func (r *Resolver) PriceOf(modelID string) (config.ModelPrice, error) {
	p, err := r.catalog.Price(modelID)
	if err != nil {
		return config.ModelPrice{}, configErrorf("price of %q: %v", modelID, err)
	}
	return p, nil
}

// CostOf implements costOf(modelId, inTok, outTok) → usd.
func (r *Resolver) CostOf(modelID string, inputTokens, outputTokens int64) (float64, error) {
	price, err := r.PriceOf(modelID)
	if err != nil {
		return 0, err
	}
	cost := float64(inputTokens)/1_000_000*price.InputPerMillion +
		float64(outputTokens)/1_000_000*price.OutputPerMillion
	return cost, nil
}
