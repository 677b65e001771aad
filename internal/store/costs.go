package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CostRepo is the append-only gateway for GenerationCostEntry rows
// (spec §3). Persistence failures here are logged and swallowed by the
// caller (internal/aigen) per spec §4.2 — this repo only reports the error.
type CostRepo struct {
	db *sqlx.DB
}

func NewCostRepo(db *sqlx.DB) *CostRepo {
	return &CostRepo{db: db}
}

// NewCostEntryInput is the Record argument.
type NewCostEntryInput struct {
	Task         string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	DurationMs   int64
	SessionID    *string
	PatientID    *string
	MetadataJSON []byte
}

// Record appends a cost entry.
func (r *CostRepo) Record(ctx context.Context, in NewCostEntryInput) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO generation_cost_entries
			(task, model, input_tokens, output_tokens, cost_usd, duration_ms,
			 session_id, patient_id, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		in.Task, in.Model, in.InputTokens, in.OutputTokens, in.CostUSD, in.DurationMs,
		in.SessionID, in.PatientID, in.MetadataJSON)
	if err != nil {
		return fmt.Errorf("record cost entry for %s: %w", in.Task, err)
	}
	return nil
}

// SumByPatientSince returns the total cost_usd of a patient's cost entries
// with id greater than afterID. Nothing in this module calls it.
func (r *CostRepo) SumByPatientSince(ctx context.Context, patientID string, afterID int64) (float64, error) {
	var total float64
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(cost_usd), 0) FROM generation_cost_entries
		WHERE patient_id = $1 AND id > $2`,
		patientID, afterID)
	if err != nil {
		return 0, fmt.Errorf("sum cost entries for %s: %w", patientID, err)
	}
	return total, nil
}
