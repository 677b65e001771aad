package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrMetadataXOR is returned when a caller violates the "exactly one of
// journey_version_id / bridge_version_id" invariant (spec §3, §8 property 2).
var ErrMetadataXOR = errors.New("exactly one of journey_version_id, bridge_version_id must be set")

// MetadataRepo owns generation_metadata rows (spec §4.6).
type MetadataRepo struct {
	db sqlx.ExtContext
}

func NewMetadataRepo(db *sqlx.DB) *MetadataRepo {
	return &MetadataRepo{db: db}
}

// WithTx returns a MetadataRepo bound to an in-flight transaction, used by
// internal/versionstore's all-or-nothing version write.
func (r *MetadataRepo) WithTx(tx *sqlx.Tx) *MetadataRepo {
	return &MetadataRepo{db: tx}
}

// CreateMetadata enforces the XOR invariant at the application level before
// delegating to the database's own CHECK constraint as a second line of
// defense.
func (r *MetadataRepo) CreateMetadata(ctx context.Context, in NewMetadataInput) (int64, error) {
	hasJourney := in.JourneyVersionID != nil
	hasBridge := in.BridgeVersionID != nil
	if hasJourney == hasBridge {
		return 0, ErrMetadataXOR
	}

	var id int64
	err := sqlx.GetContext(ctx, r.db, &id, `
		INSERT INTO generation_metadata
			(journey_version_id, bridge_version_id, sessions_analyzed, total_sessions,
			 model_used, compaction_strategy, generation_duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		in.JourneyVersionID, in.BridgeVersionID, in.SessionsAnalyzed, in.TotalSessions,
		in.ModelUsed, in.CompactionStrategy, in.DurationMs)
	if err != nil {
		return 0, fmt.Errorf("create metadata: %w", err)
	}
	return id, nil
}

// UpdatePartial is the set of fields updateMetadata may revise (spec §4.6:
// "shared by Journey and Bridge consumers").
type UpdatePartial struct {
	SessionsAnalyzed *int
	TotalSessions    *int
	ModelUsed        *string
}

// UpdateMetadata applies a partial update to a single metadata row.
func (r *MetadataRepo) UpdateMetadata(ctx context.Context, id int64, partial UpdatePartial) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE generation_metadata SET
			sessions_analyzed = COALESCE($2, sessions_analyzed),
			total_sessions = COALESCE($3, total_sessions),
			model_used = COALESCE($4, model_used)
		WHERE id = $1`,
		id, partial.SessionsAnalyzed, partial.TotalSessions, partial.ModelUsed)
	if err != nil {
		return fmt.Errorf("update metadata %d: %w", id, err)
	}
	return nil
}
