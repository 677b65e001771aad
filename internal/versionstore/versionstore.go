// Package versionstore implements C8: the Journey and Bridge version+latest
// tables, written transactionally alongside their generation metadata.
package versionstore

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sessionwave/orchestrator/internal/store"
)

func translateNotFound(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, stdsql.ErrNoRows) {
		return store.ErrNotFound
	}
	return fmt.Errorf("query: %w", err)
}

// Store writes Journey/Bridge versions in the five-statement transaction
// described in spec §4.8: increment version, insert history row, upsert
// latest row, insert metadata, link metadata to history row.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// WriteInput is shared by WriteJourney and WriteBridge.
type WriteInput struct {
	PatientID          string
	DataJSON           []byte
	SessionsAnalyzed   int
	TotalSessions      int
	ModelUsed          string
	CompactionStrategy *string
	DurationMs         int64
}

// WriteJourney performs the full transactional write for a Journey
// regeneration and returns the new version number.
func (s *Store) WriteJourney(ctx context.Context, in WriteInput) (int, error) {
	return s.write(ctx, journeyKind, in)
}

// WriteBridge performs the full transactional write for a Bridge
// regeneration and returns the new version number.
func (s *Store) WriteBridge(ctx context.Context, in WriteInput) (int, error) {
	return s.write(ctx, bridgeKind, in)
}

type kind string

const (
	journeyKind kind = "journey"
	bridgeKind  kind = "bridge"
)

func (s *Store) write(ctx context.Context, k kind, in WriteInput) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin %s version tx: %w", k, err)
	}
	defer func() { _ = tx.Rollback() }()

	nextVersion, err := nextVersionNumber(ctx, tx, k, in.PatientID)
	if err != nil {
		return 0, err
	}

	versionID, err := insertVersion(ctx, tx, k, in.PatientID, nextVersion, in.DataJSON)
	if err != nil {
		return 0, err
	}

	metaRepo := store.NewMetadataRepo(s.db).WithTx(tx)
	metaInput := store.NewMetadataInput{
		SessionsAnalyzed:   in.SessionsAnalyzed,
		TotalSessions:      in.TotalSessions,
		ModelUsed:          in.ModelUsed,
		CompactionStrategy: in.CompactionStrategy,
		DurationMs:         in.DurationMs,
	}
	if k == journeyKind {
		metaInput.JourneyVersionID = &versionID
	} else {
		metaInput.BridgeVersionID = &versionID
	}
	metadataID, err := metaRepo.CreateMetadata(ctx, metaInput)
	if err != nil {
		return 0, err
	}

	if err := linkMetadataToVersion(ctx, tx, k, versionID, metadataID); err != nil {
		return 0, err
	}

	if err := upsertLatest(ctx, tx, k, in.PatientID, in.DataJSON, metadataID, versionID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s version tx: %w", k, err)
	}
	return nextVersion, nil
}

func nextVersionNumber(ctx context.Context, tx *sqlx.Tx, k kind, patientID string) (int, error) {
	var maxVersion int
	query := fmt.Sprintf(`SELECT COALESCE(MAX(version), 0) FROM %s_versions WHERE patient_id = $1`, k)
	if err := tx.GetContext(ctx, &maxVersion, query, patientID); err != nil {
		return 0, fmt.Errorf("next %s version for %s: %w", k, patientID, err)
	}
	return maxVersion + 1, nil
}

func insertVersion(ctx context.Context, tx *sqlx.Tx, k kind, patientID string, version int, dataJSON []byte) (int64, error) {
	var id int64
	query := fmt.Sprintf(`
		INSERT INTO %s_versions (patient_id, version, data_json)
		VALUES ($1, $2, $3)
		RETURNING id`, k)
	if err := tx.GetContext(ctx, &id, query, patientID, version, dataJSON); err != nil {
		return 0, fmt.Errorf("insert %s version for %s: %w", k, patientID, err)
	}
	return id, nil
}

func linkMetadataToVersion(ctx context.Context, tx *sqlx.Tx, k kind, versionID, metadataID int64) error {
	query := fmt.Sprintf(`UPDATE %s_versions SET metadata_id = $2 WHERE id = $1`, k)
	if _, err := tx.ExecContext(ctx, query, versionID, metadataID); err != nil {
		return fmt.Errorf("link metadata to %s version %d: %w", k, versionID, err)
	}
	return nil
}

func upsertLatest(ctx context.Context, tx *sqlx.Tx, k kind, patientID string, dataJSON []byte, metadataID, versionID int64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s_latest (patient_id, data_json, metadata_id, version_id, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (patient_id) DO UPDATE SET
			data_json = EXCLUDED.data_json,
			metadata_id = EXCLUDED.metadata_id,
			version_id = EXCLUDED.version_id,
			updated_at = now()`, k)
	if _, err := tx.ExecContext(ctx, query, patientID, dataJSON, metadataID, versionID); err != nil {
		return fmt.Errorf("upsert %s latest for %s: %w", k, patientID, err)
	}
	return nil
}

// GetJourneyLatest fetches the current Journey document for a patient.
func (s *Store) GetJourneyLatest(ctx context.Context, patientID string) (*store.JourneyLatest, error) {
	var j store.JourneyLatest
	err := s.db.GetContext(ctx, &j, `SELECT * FROM journey_latest WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &j, nil
}

// GetBridgeLatest fetches the current Bridge document for a patient.
func (s *Store) GetBridgeLatest(ctx context.Context, patientID string) (*store.BridgeLatest, error) {
	var b store.BridgeLatest
	err := s.db.GetContext(ctx, &b, `SELECT * FROM bridge_latest WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &b, nil
}
