package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PatientRepo owns patient existence. Patients are created implicitly by
// ingest and never deleted by the core (spec §3).
type PatientRepo struct {
	db *sqlx.DB
}

func NewPatientRepo(db *sqlx.DB) *PatientRepo {
	return &PatientRepo{db: db}
}

// EnsureExists inserts the patient row if it does not already exist.
func (r *PatientRepo) EnsureExists(ctx context.Context, patientID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO patients (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, patientID)
	if err != nil {
		return fmt.Errorf("ensure patient %s: %w", patientID, err)
	}
	return nil
}
