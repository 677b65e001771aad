package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// EventRepo is C7's exclusive gateway to PipelineEvent rows (spec §3).
type EventRepo struct {
	db *sqlx.DB
}

func NewEventRepo(db *sqlx.DB) *EventRepo {
	return &EventRepo{db: db}
}

// NewEventInput is the Append argument.
type NewEventInput struct {
	PatientID   string
	Phase       string
	EventType   string
	SessionID   *string
	Status      string
	DetailsJSON []byte
}

// Append inserts one event, flushing immediately (spec §4.7: "a single row
// insert, flushing immediately"). Returns the assigned id so callers that
// need ordering guarantees (START before terminal) can log it.
func (r *EventRepo) Append(ctx context.Context, in NewEventInput) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `
		INSERT INTO pipeline_events (patient_id, phase, event_type, session_id, status, details_json)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		in.PatientID, in.Phase, in.EventType, in.SessionID, in.Status, in.DetailsJSON)
	if err != nil {
		return 0, fmt.Errorf("append event for patient %s: %w", in.PatientID, err)
	}
	return id, nil
}

// ListSince returns events for a patient with id > sinceID, in id order —
// the SSE poll loop's core query (spec §4.7).
func (r *EventRepo) ListSince(ctx context.Context, patientID string, sinceID int64, limit int) ([]*PipelineEvent, error) {
	var events []*PipelineEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT * FROM pipeline_events
		WHERE patient_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3`,
		patientID, sinceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events since %d for %s: %w", sinceID, patientID, err)
	}
	return events, nil
}

// MarkConsumed flips consumed=true for events up to a watermark (spec §3).
// The SSE handler calls it after writing a batch to its own stream.
func (r *EventRepo) MarkConsumed(ctx context.Context, patientID string, uptoID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE pipeline_events SET consumed = true WHERE patient_id = $1 AND id <= $2`,
		patientID, uptoID)
	if err != nil {
		return fmt.Errorf("mark consumed for %s: %w", patientID, err)
	}
	return nil
}

// SweepExpired deletes events older than ttl, used by the periodic
// sweeper (spec §4.7: default 24h).
func (r *EventRepo) SweepExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM pipeline_events WHERE created_at < $1`,
		time.Now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("sweep expired events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
