package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ProcessingLogRepo is C6's narrow append-heavy log surface (spec §4.6).
type ProcessingLogRepo struct {
	db *sqlx.DB
}

func NewProcessingLogRepo(db *sqlx.DB) *ProcessingLogRepo {
	return &ProcessingLogRepo{db: db}
}

// LogStart opens a new `started` row. The partial unique index on
// (session_id, wave) WHERE status='started' enforces "at most one
// concurrent started row" (spec §8 property 4) at the database level.
func (r *ProcessingLogRepo) LogStart(ctx context.Context, sessionID, wave string, retry int) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `
		INSERT INTO processing_log_entries (session_id, wave, status, retry_count)
		VALUES ($1, $2, 'started', $3)
		RETURNING id`,
		sessionID, wave, retry)
	if err != nil {
		return 0, fmt.Errorf("log start %s/%s: %w", sessionID, wave, err)
	}
	return id, nil
}

// LogComplete transitions a started row to completed.
func (r *ProcessingLogRepo) LogComplete(ctx context.Context, logID int64, durationMs int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE processing_log_entries
		SET status = 'completed', completed_at = now(), duration_ms = $2
		WHERE id = $1`,
		logID, durationMs)
	if err != nil {
		return fmt.Errorf("log complete %d: %w", logID, err)
	}
	return nil
}

// LogFail transitions a started row to failed with an error message.
func (r *ProcessingLogRepo) LogFail(ctx context.Context, logID int64, durationMs int64, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE processing_log_entries
		SET status = 'failed', completed_at = now(), duration_ms = $2, error_message = $3
		WHERE id = $1`,
		logID, durationMs, errMsg)
	if err != nil {
		return fmt.Errorf("log fail %d: %w", logID, err)
	}
	return nil
}

// LogStop transitions a started row to stopped, used by the wave scheduler
// when an attempt is cancelled.
func (r *ProcessingLogRepo) LogStop(ctx context.Context, logID int64, durationMs int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE processing_log_entries
		SET status = 'stopped', completed_at = now(), duration_ms = $2
		WHERE id = $1`,
		logID, durationMs)
	if err != nil {
		return fmt.Errorf("log stop %d: %w", logID, err)
	}
	return nil
}

// StopRunning marks every started row for a session as stopped and
// returns the affected waves, used by /stop (spec §4.9).
func (r *ProcessingLogRepo) StopRunning(ctx context.Context, sessionID string) ([]string, error) {
	var waves []string
	err := r.db.SelectContext(ctx, &waves, `
		UPDATE processing_log_entries
		SET status = 'stopped', completed_at = now()
		WHERE session_id = $1 AND status = 'started'
		RETURNING wave`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("stop running for %s: %w", sessionID, err)
	}
	return waves, nil
}

// IsWaveComplete considers only the latest attempt per wave (spec §4.6).
func (r *ProcessingLogRepo) IsWaveComplete(ctx context.Context, sessionID, wave string) (bool, error) {
	var status WaveStatus
	err := r.db.GetContext(ctx, &status, `
		SELECT status FROM processing_log_entries
		WHERE session_id = $1 AND wave = $2
		ORDER BY started_at DESC, id DESC
		LIMIT 1`,
		sessionID, wave)
	if err != nil {
		return false, translateNotFound(err)
	}
	return status == WaveCompleted, nil
}

// ListBySession returns every log row for a session, for status reporting.
func (r *ProcessingLogRepo) ListBySession(ctx context.Context, sessionID string) ([]*ProcessingLogEntry, error) {
	var entries []*ProcessingLogEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM processing_log_entries WHERE session_id = $1 ORDER BY id ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list log entries for %s: %w", sessionID, err)
	}
	return entries, nil
}
