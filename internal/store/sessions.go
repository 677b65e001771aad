package store

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a lookup by id finds nothing.
var ErrNotFound = errors.New("not found")

// SessionRepo is the scheduler's exclusive gateway to Session rows (spec
// §3: "the scheduler exclusively owns mutation of Session analysis
// fields"). Every write here is a single-row update, per spec §4.5.
type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// NewSessionInput is the shape ingest hands to Create.
type NewSessionInput struct {
	ID              string
	PatientID       string
	SessionDate     time.Time
	DurationMinutes int
	TranscriptJSON  []byte
}

// Create inserts a new session in processing_status=pending,
// analysis_status=not_started.
func (r *SessionRepo) Create(ctx context.Context, in NewSessionInput) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, patient_id, session_date, duration_minutes, transcript_json)
		VALUES ($1, $2, $3, $4, $5)`,
		in.ID, in.PatientID, in.SessionDate, in.DurationMinutes, in.TranscriptJSON)
	if err != nil {
		return fmt.Errorf("create session %s: %w", in.ID, err)
	}
	return nil
}

// Get fetches a session by id.
func (r *SessionRepo) Get(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := r.db.GetContext(ctx, &s, `SELECT * FROM sessions WHERE id = $1`, id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &s, nil
}

// ListByPatient returns a patient's sessions ordered by session_date.
func (r *SessionRepo) ListByPatient(ctx context.Context, patientID string) ([]*Session, error) {
	var sessions []*Session
	err := r.db.SelectContext(ctx, &sessions,
		`SELECT * FROM sessions WHERE patient_id = $1 ORDER BY session_date ASC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list sessions for patient %s: %w", patientID, err)
	}
	return sessions, nil
}

// SetProcessingStatus updates only processing_status.
func (r *SessionRepo) SetProcessingStatus(ctx context.Context, id string, status ProcessingStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET processing_status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set processing_status for %s: %w", id, err)
	}
	return nil
}

// SetAnalysisStatus updates only analysis_status.
func (r *SessionRepo) SetAnalysisStatus(ctx context.Context, id string, status AnalysisStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET analysis_status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set analysis_status for %s: %w", id, err)
	}
	return nil
}

// MoodResult is the field set written after the mood task completes.
type MoodResult struct {
	Score          float64
	Confidence     float64
	Rationale      string
	IndicatorsJSON []byte
	EmotionalTone  string
}

// WriteMood persists the mood task's result as a single-row update
// (spec §4.5: "the actual persistence is a single row update").
func (r *SessionRepo) WriteMood(ctx context.Context, sessionID string, res MoodResult, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			mood_score = $2, mood_confidence = $3, mood_rationale = $4,
			mood_indicators_json = $5, emotional_tone = $6, mood_analyzed_at = $7,
			updated_at = now()
		WHERE id = $1`,
		sessionID, res.Score, res.Confidence, res.Rationale, res.IndicatorsJSON, res.EmotionalTone, at)
	if err != nil {
		return fmt.Errorf("write mood for %s: %w", sessionID, err)
	}
	return nil
}

// TopicsResult is the field set written after the topics task completes.
type TopicsResult struct {
	TopicsJSON      []byte
	ActionItemsJSON []byte
	Technique       string
	Summary         string
}

// WriteTopics persists the topics task's result.
func (r *SessionRepo) WriteTopics(ctx context.Context, sessionID string, res TopicsResult, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			topics_json = $2, action_items_json = $3, technique = $4, summary = $5,
			topics_extracted_at = $6, updated_at = now()
		WHERE id = $1`,
		sessionID, res.TopicsJSON, res.ActionItemsJSON, res.Technique, res.Summary, at)
	if err != nil {
		return fmt.Errorf("write topics for %s: %w", sessionID, err)
	}
	return nil
}

// WriteActionItemsSummary persists the action_summary task's result. The
// scheduler skips this call entirely when topics failed (spec §4.5 S3),
// leaving action_items_summary null.
func (r *SessionRepo) WriteActionItemsSummary(ctx context.Context, sessionID string, summary *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET action_items_summary = $2, updated_at = now() WHERE id = $1`,
		sessionID, summary)
	if err != nil {
		return fmt.Errorf("write action_items_summary for %s: %w", sessionID, err)
	}
	return nil
}

// BreakthroughResult is the field set written after the breakthrough task
// completes. HasBreakthrough is frozen once set (spec §9 open question).
type BreakthroughResult struct {
	HasBreakthrough bool
	Label           string
	DataJSON        []byte
}

// WriteBreakthrough persists the breakthrough task's result, but only if
// the session has no has_breakthrough value yet — freezing it at first
// Wave-1 completion as resolved in DESIGN.md.
func (r *SessionRepo) WriteBreakthrough(ctx context.Context, sessionID string, res BreakthroughResult, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			has_breakthrough = $2, breakthrough_label = $3, breakthrough_data_json = $4,
			breakthrough_analyzed_at = $5, updated_at = now()
		WHERE id = $1 AND has_breakthrough IS NULL`,
		sessionID, res.HasBreakthrough, res.Label, res.DataJSON, at)
	if err != nil {
		return fmt.Errorf("write breakthrough for %s: %w", sessionID, err)
	}
	return nil
}

// CompleteWave1 stamps wave1_completed_at, called once every Wave-1
// subtask has reached a terminal state (spec §4.5).
func (r *SessionRepo) CompleteWave1(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET wave1_completed_at = $2, updated_at = now() WHERE id = $1`,
		sessionID, at)
	if err != nil {
		return fmt.Errorf("complete wave1 for %s: %w", sessionID, err)
	}
	return nil
}

// WriteDeepAnalysis persists Wave-2's deep_analysis result.
func (r *SessionRepo) WriteDeepAnalysis(ctx context.Context, sessionID string, dataJSON []byte, confidence float64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			deep_analysis_json = $2, analysis_confidence = $3, deep_analyzed_at = $4,
			updated_at = now()
		WHERE id = $1`,
		sessionID, dataJSON, confidence, at)
	if err != nil {
		return fmt.Errorf("write deep_analysis for %s: %w", sessionID, err)
	}
	return nil
}

// WriteProse persists Wave-2's prose_analysis result.
func (r *SessionRepo) WriteProse(ctx context.Context, sessionID string, prose string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET prose_analysis = $2, prose_generated_at = $3, updated_at = now() WHERE id = $1`,
		sessionID, prose, at)
	if err != nil {
		return fmt.Errorf("write prose for %s: %w", sessionID, err)
	}
	return nil
}

// MarkStopped records the stop timestamp used to report stopped_at_session_id.
func (r *SessionRepo) MarkStopped(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET stopped_at = $2, analysis_status = $3, updated_at = now() WHERE id = $1`,
		sessionID, at, AnalysisStopped)
	if err != nil {
		return fmt.Errorf("mark stopped for %s: %w", sessionID, err)
	}
	return nil
}

// ErrNoSessionsAvailable indicates no pending sessions are in the queue,
// mirroring the teacher's queue.ErrNoSessionsAvailable sentinel.
var ErrNoSessionsAvailable = errors.New("no sessions available")

// ClaimNextPending atomically claims the oldest pending session using
// FOR UPDATE SKIP LOCKED, the same claim pattern as the teacher's
// queue.Worker.claimNextSession (spec §5: single-leader work pool).
func (r *SessionRepo) ClaimNextPending(ctx context.Context) (*Session, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("claim next pending: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.GetContext(ctx, &id, `
		SELECT id FROM sessions
		WHERE processing_status = 'pending'
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1`)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, ErrNoSessionsAvailable
		}
		return nil, fmt.Errorf("claim next pending: select: %w", err)
	}

	var s Session
	err = tx.GetContext(ctx, &s, `
		UPDATE sessions SET processing_status = 'running', analysis_status = 'running', updated_at = now()
		WHERE id = $1
		RETURNING *`, id)
	if err != nil {
		return nil, fmt.Errorf("claim next pending: update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim next pending: commit: %w", err)
	}
	return &s, nil
}

// CountPending returns how many sessions are waiting to be claimed, the
// queue depth surfaced via /metrics.
func (r *SessionRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sessions WHERE processing_status = 'pending'`)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// CountWave1Complete returns how many of a patient's sessions have reached
// wave1_completed_at, one of the status-endpoint signals (spec §4.9).
func (r *SessionRepo) CountWave1Complete(ctx context.Context, patientID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM sessions WHERE patient_id = $1 AND wave1_completed_at IS NOT NULL`, patientID)
	if err != nil {
		return 0, fmt.Errorf("count wave1 complete for %s: %w", patientID, err)
	}
	return n, nil
}

// CountWave2Complete returns how many of a patient's sessions have
// prose_generated_at set, i.e. have reached the end of Wave 2.
func (r *SessionRepo) CountWave2Complete(ctx context.Context, patientID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM sessions WHERE patient_id = $1 AND prose_generated_at IS NOT NULL`, patientID)
	if err != nil {
		return 0, fmt.Errorf("count wave2 complete for %s: %w", patientID, err)
	}
	return n, nil
}

// FindStoppedSession returns the most recently stopped session for a
// patient, if any, used to populate stopped_at_session_id (spec §4.9).
func (r *SessionRepo) FindStoppedSession(ctx context.Context, patientID string) (*Session, error) {
	var s Session
	err := r.db.GetContext(ctx, &s, `
		SELECT * FROM sessions WHERE patient_id = $1 AND stopped_at IS NOT NULL
		ORDER BY stopped_at DESC LIMIT 1`, patientID)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &s, nil
}

// RequeueStoppedForPatient clears the stop marker on every stopped or
// failed session of a patient and puts it back in the pending queue, used
// by /resume (spec §4.9: "clears stopped markers and reinstates the
// scheduler"). The worker pool picks each one back up and, since
// wave1_completed_at survives the requeue, resumes at whichever wave is
// still incomplete rather than repeating finished work.
func (r *SessionRepo) RequeueStoppedForPatient(ctx context.Context, patientID string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		UPDATE sessions SET
			processing_status = 'pending', analysis_status = 'running',
			stopped_at = NULL, updated_at = now()
		WHERE patient_id = $1 AND processing_status IN ('stopped', 'failed')
		RETURNING id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("requeue stopped sessions for %s: %w", patientID, err)
	}
	return ids, nil
}

func translateNotFound(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, stdsql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("query: %w", err)
}
