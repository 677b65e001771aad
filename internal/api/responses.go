package api

import (
	"encoding/json"
	"time"

	"github.com/sessionwave/orchestrator/internal/store"
)

// SessionResponse is the GET /sessions/{id} and list-item payload (spec §3,
// §6): every nullable analysis field is a pointer or raw JSON tagged
// omitempty, so an unset field is left out of the payload rather than sent
// as a Go zero value, and clients can distinguish "not yet analyzed" from
// "scored zero".
type SessionResponse struct {
	ID               string  `json:"id"`
	PatientID        string  `json:"patient_id"`
	SessionDate      string  `json:"session_date"`
	DurationMinutes  int     `json:"duration_minutes"`
	ProcessingStatus string  `json:"processing_status"`
	AnalysisStatus   string  `json:"analysis_status"`

	MoodScore      *float64        `json:"mood_score,omitempty"`
	MoodConfidence *float64        `json:"mood_confidence,omitempty"`
	MoodRationale  *string         `json:"mood_rationale,omitempty"`
	MoodIndicators json.RawMessage `json:"mood_indicators,omitempty"`
	EmotionalTone  *string         `json:"emotional_tone,omitempty"`
	MoodAnalyzedAt *time.Time      `json:"mood_analyzed_at,omitempty"`

	Topics             json.RawMessage `json:"topics,omitempty"`
	ActionItems        json.RawMessage `json:"action_items,omitempty"`
	Technique          *string         `json:"technique,omitempty"`
	Summary            *string         `json:"summary,omitempty"`
	ActionItemsSummary *string         `json:"action_items_summary,omitempty"`
	TopicsExtractedAt  *time.Time      `json:"topics_extracted_at,omitempty"`

	HasBreakthrough        *bool           `json:"has_breakthrough,omitempty"`
	BreakthroughLabel      *string         `json:"breakthrough_label,omitempty"`
	BreakthroughData       json.RawMessage `json:"breakthrough_data,omitempty"`
	BreakthroughAnalyzedAt *time.Time      `json:"breakthrough_analyzed_at,omitempty"`

	Wave1CompletedAt *time.Time `json:"wave1_completed_at,omitempty"`

	DeepAnalysis       json.RawMessage `json:"deep_analysis,omitempty"`
	AnalysisConfidence *float64        `json:"analysis_confidence,omitempty"`
	DeepAnalyzedAt     *time.Time      `json:"deep_analyzed_at,omitempty"`

	ProseAnalysis    *string    `json:"prose_analysis,omitempty"`
	ProseGeneratedAt *time.Time `json:"prose_generated_at,omitempty"`

	// ProcessingLog is only populated on GET /sessions/{id} (spec §4.6: full
	// per-wave attempt history), not on the list endpoint, to avoid an N+1
	// query per patient.
	ProcessingLog []ProcessingLogEntryResponse `json:"processing_log,omitempty"`
}

// ProcessingLogEntryResponse is one attempt at one (session, wave).
type ProcessingLogEntryResponse struct {
	Wave         string     `json:"wave"`
	Status       string     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	DurationMs   *int64     `json:"duration_ms,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

func processingLogToResponse(entries []*store.ProcessingLogEntry) []ProcessingLogEntryResponse {
	out := make([]ProcessingLogEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = ProcessingLogEntryResponse{
			Wave: e.Wave, Status: string(e.Status), RetryCount: e.RetryCount,
			StartedAt: e.StartedAt, CompletedAt: e.CompletedAt,
			DurationMs: e.DurationMs, ErrorMessage: e.ErrorMessage,
		}
	}
	return out
}

func sessionToResponse(s *store.Session) SessionResponse {
	return SessionResponse{
		ID:                     s.ID,
		PatientID:              s.PatientID,
		SessionDate:            s.SessionDate.Format(time.RFC3339),
		DurationMinutes:        s.DurationMinutes,
		ProcessingStatus:       string(s.ProcessingStatus),
		AnalysisStatus:         string(s.AnalysisStatus),
		MoodScore:              s.MoodScore,
		MoodConfidence:         s.MoodConfidence,
		MoodRationale:          s.MoodRationale,
		MoodIndicators:         json.RawMessage(s.MoodIndicatorsJSON),
		EmotionalTone:          s.EmotionalTone,
		MoodAnalyzedAt:         s.MoodAnalyzedAt,
		Topics:                 json.RawMessage(s.TopicsJSON),
		ActionItems:            json.RawMessage(s.ActionItemsJSON),
		Technique:              s.Technique,
		Summary:                s.Summary,
		ActionItemsSummary:     s.ActionItemsSummary,
		TopicsExtractedAt:      s.TopicsExtractedAt,
		HasBreakthrough:        s.HasBreakthrough,
		BreakthroughLabel:      s.BreakthroughLabel,
		BreakthroughData:       json.RawMessage(s.BreakthroughDataJSON),
		BreakthroughAnalyzedAt: s.BreakthroughAnalyzedAt,
		Wave1CompletedAt:       s.Wave1CompletedAt,
		DeepAnalysis:           json.RawMessage(s.DeepAnalysisJSON),
		AnalysisConfidence:     s.AnalysisConfidence,
		DeepAnalyzedAt:         s.DeepAnalyzedAt,
		ProseAnalysis:          s.ProseAnalysis,
		ProseGeneratedAt:       s.ProseGeneratedAt,
	}
}

// StatusResponse is the GET /patients/{id}/status payload (spec §4.9): the
// signal set adaptive client-side polling is built around.
type StatusResponse struct {
	AnalysisStatus    string     `json:"analysis_status"`
	Wave1CompleteCount int       `json:"wave1_complete_count"`
	Wave2CompleteCount int       `json:"wave2_complete_count"`
	TotalSessions      int       `json:"total_sessions"`
	RoadmapUpdatedAt   *time.Time `json:"roadmap_updated_at,omitempty"`
	ProcessingState    string     `json:"processing_state"`
	StoppedAtSessionID *string    `json:"stopped_at_session_id,omitempty"`
	CanResume          bool       `json:"can_resume"`
}

// StopResponse is the POST /patients/{id}/stop payload.
type StopResponse struct {
	AbortedSessions []string `json:"aborted_sessions"`
}

// ResumeResponse is the POST /patients/{id}/resume payload.
type ResumeResponse struct {
	RequeuedSessions []string `json:"requeued_sessions"`
}
