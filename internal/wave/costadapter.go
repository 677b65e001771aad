package wave

import (
	"context"

	"github.com/sessionwave/orchestrator/internal/aigen"
	"github.com/sessionwave/orchestrator/internal/metrics"
	"github.com/sessionwave/orchestrator/internal/store"
)

// costAdapter satisfies aigen.CostRecorder over *store.CostRepo, keeping
// internal/aigen free of a store import (spec §4.2 doc comment on
// CostEntryInput) while still persisting every GenerationCostEntry.
type costAdapter struct {
	repo *store.CostRepo
}

// NewCostRecorder adapts a CostRepo to aigen.CostRecorder.
func NewCostRecorder(repo *store.CostRepo) aigen.CostRecorder {
	return &costAdapter{repo: repo}
}

func (a *costAdapter) Record(ctx context.Context, entry aigen.CostEntryInput) error {
	metrics.GenerationCostUSD.WithLabelValues(entry.Task).Add(entry.CostUSD)
	return a.repo.Record(ctx, store.NewCostEntryInput{
		Task:         entry.Task,
		Model:        entry.Model,
		InputTokens:  entry.InputTokens,
		OutputTokens: entry.OutputTokens,
		CostUSD:      entry.CostUSD,
		DurationMs:   entry.DurationMs,
		SessionID:    entry.SessionID,
		PatientID:    entry.PatientID,
	})
}
