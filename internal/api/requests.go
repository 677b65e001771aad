package api

import "github.com/sessionwave/orchestrator/internal/store"

// IngestSessionRequest is the POST /ingest/session body (spec §6): the
// diarized transcript plus session metadata handed off by the upstream
// audio/speech-to-text subsystem, named as an external interface in §6.
type IngestSessionRequest struct {
	PatientID       string                     `json:"patient_id" binding:"required"`
	SessionDate     string                     `json:"session_date" binding:"required"` // RFC3339
	DurationMinutes int                        `json:"duration_minutes" binding:"required"`
	Transcript      []store.TranscriptSegment `json:"transcript" binding:"required,min=1"`
}
