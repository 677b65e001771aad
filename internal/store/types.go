// Package store models the persisted entities of §3 and implements the
// narrow mutation surface each component (C6, scheduler) is allowed.
package store

import "time"

// ProcessingStatus is the Session-level ingest/schedule status.
type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingRunning   ProcessingStatus = "running"
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
	ProcessingStopped   ProcessingStatus = "stopped"
)

// AnalysisStatus is the coarse-grained status surfaced by C9.
type AnalysisStatus string

const (
	AnalysisNotStarted AnalysisStatus = "not_started"
	AnalysisRunning    AnalysisStatus = "running"
	AnalysisStopped    AnalysisStatus = "stopped"
	AnalysisComplete   AnalysisStatus = "complete"
)

// WaveStatus is the per-(session,wave) processing-log status (spec §4.5).
type WaveStatus string

const (
	WaveStarted   WaveStatus = "started"
	WaveCompleted WaveStatus = "completed"
	WaveFailed    WaveStatus = "failed"
	WaveStopped   WaveStatus = "stopped"
)

// Wave names. The column itself is an open string set (spec §3, §6) — these
// are the values the scheduler currently emits, not an exhaustive enum.
const (
	WaveMood          = "mood"
	WaveTopics        = "topics"
	WaveBreakthrough  = "breakthrough"
	WaveActionSummary = "action_summary"
	WaveDeep          = "deep"
	WaveProse         = "prose"
	WaveYourJourney   = "your_journey"
	WaveSessionBridge = "session_bridge"
	WaveSpeakerLabel  = "speaker_label"
)

// TranscriptSegment is one diarized line of a session transcript.
type TranscriptSegment struct {
	StartSec  float64 `json:"start_sec"`
	EndSec    float64 `json:"end_sec"`
	SpeakerID string  `json:"speaker_id"`
	Text      string  `json:"text"`
}

// Session is the persisted unit of work for Wave 1 and Wave 2 (spec §3).
type Session struct {
	ID               string    `db:"id"`
	PatientID        string    `db:"patient_id"`
	SessionDate      time.Time `db:"session_date"`
	DurationMinutes  int       `db:"duration_minutes"`
	TranscriptJSON   []byte    `db:"transcript_json"`
	ProcessingStatus ProcessingStatus `db:"processing_status"`
	AnalysisStatus   AnalysisStatus   `db:"analysis_status"`

	MoodScore          *float64 `db:"mood_score"`
	MoodConfidence     *float64 `db:"mood_confidence"`
	MoodRationale      *string  `db:"mood_rationale"`
	MoodIndicatorsJSON []byte   `db:"mood_indicators_json"`
	EmotionalTone      *string  `db:"emotional_tone"`
	MoodAnalyzedAt     *time.Time `db:"mood_analyzed_at"`

	TopicsJSON         []byte     `db:"topics_json"`
	ActionItemsJSON    []byte     `db:"action_items_json"`
	Technique          *string    `db:"technique"`
	Summary            *string    `db:"summary"`
	ActionItemsSummary *string    `db:"action_items_summary"`
	TopicsExtractedAt  *time.Time `db:"topics_extracted_at"`

	HasBreakthrough        *bool      `db:"has_breakthrough"`
	BreakthroughLabel      *string    `db:"breakthrough_label"`
	BreakthroughDataJSON   []byte     `db:"breakthrough_data_json"`
	BreakthroughAnalyzedAt *time.Time `db:"breakthrough_analyzed_at"`

	Wave1CompletedAt *time.Time `db:"wave1_completed_at"`

	DeepAnalysisJSON   []byte     `db:"deep_analysis_json"`
	AnalysisConfidence *float64   `db:"analysis_confidence"`
	DeepAnalyzedAt     *time.Time `db:"deep_analyzed_at"`

	ProseAnalysis     *string    `db:"prose_analysis"`
	ProseGeneratedAt  *time.Time `db:"prose_generated_at"`

	StoppedAt *time.Time `db:"stopped_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ProcessingLogEntry is one attempt at one (session, wave) (spec §3, §4.6).
type ProcessingLogEntry struct {
	ID           int64      `db:"id"`
	SessionID    string     `db:"session_id"`
	Wave         string     `db:"wave"`
	Status       WaveStatus `db:"status"`
	RetryCount   int        `db:"retry_count"`
	StartedAt    time.Time  `db:"started_at"`
	CompletedAt  *time.Time `db:"completed_at"`
	DurationMs   *int64     `db:"duration_ms"`
	ErrorMessage *string    `db:"error_message"`
}

// GenerationCostEntry is an append-only token/cost accounting row.
type GenerationCostEntry struct {
	ID           int64     `db:"id"`
	Task         string    `db:"task"`
	Model        string    `db:"model"`
	InputTokens  int64     `db:"input_tokens"`
	OutputTokens int64     `db:"output_tokens"`
	CostUSD      float64   `db:"cost_usd"`
	DurationMs   int64     `db:"duration_ms"`
	SessionID    *string   `db:"session_id"`
	PatientID    *string   `db:"patient_id"`
	MetadataJSON []byte    `db:"metadata_json"`
	CreatedAt    time.Time `db:"created_at"`
}

// PipelineEvent is one durable progress event (spec §3, §4.7).
type PipelineEvent struct {
	ID          int64     `db:"id"`
	PatientID   string    `db:"patient_id"`
	Phase       string    `db:"phase"`
	EventType   string    `db:"event_type"`
	SessionID   *string   `db:"session_id"`
	Status      string    `db:"status"`
	DetailsJSON []byte    `db:"details_json"`
	CreatedAt   time.Time `db:"created_at"`
	Consumed    bool      `db:"consumed"`
}

// Event phases (spec §3).
const (
	PhaseTranscript = "TRANSCRIPT"
	PhaseWave1      = "WAVE1"
	PhaseWave2      = "WAVE2"
	PhaseWave3      = "WAVE3"
)

// GenerationMetadata is the polymorphic provenance row for a Journey or
// Bridge version (spec §3, §4.6). Exactly one of JourneyVersionID,
// BridgeVersionID is non-null — enforced in the metadata repository.
type GenerationMetadata struct {
	ID                   int64     `db:"id"`
	JourneyVersionID     *int64    `db:"journey_version_id"`
	BridgeVersionID      *int64    `db:"bridge_version_id"`
	SessionsAnalyzed     int       `db:"sessions_analyzed"`
	TotalSessions        int       `db:"total_sessions"`
	ModelUsed            string    `db:"model_used"`
	CompactionStrategy   *string   `db:"compaction_strategy"`
	GenerationTimestamp  time.Time `db:"generation_timestamp"`
	GenerationDurationMs int64     `db:"generation_duration_ms"`
}

// NewMetadataInput is the createMetadata argument (spec §4.6).
type NewMetadataInput struct {
	JourneyVersionID   *int64
	BridgeVersionID    *int64
	SessionsAnalyzed   int
	TotalSessions      int
	ModelUsed          string
	CompactionStrategy *string
	DurationMs         int64
}

// JourneyVersion / JourneyLatest / BridgeVersion / BridgeLatest (spec §3, §4.8).
type JourneyVersion struct {
	ID         int64     `db:"id"`
	PatientID  string    `db:"patient_id"`
	Version    int       `db:"version"`
	DataJSON   []byte    `db:"data_json"`
	MetadataID *int64    `db:"metadata_id"`
	CreatedAt  time.Time `db:"created_at"`
}

type JourneyLatest struct {
	PatientID  string    `db:"patient_id"`
	DataJSON   []byte    `db:"data_json"`
	MetadataID *int64    `db:"metadata_id"`
	VersionID  int64     `db:"version_id"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type BridgeVersion struct {
	ID         int64     `db:"id"`
	PatientID  string    `db:"patient_id"`
	Version    int       `db:"version"`
	DataJSON   []byte    `db:"data_json"`
	MetadataID *int64    `db:"metadata_id"`
	CreatedAt  time.Time `db:"created_at"`
}

type BridgeLatest struct {
	PatientID  string    `db:"patient_id"`
	DataJSON   []byte    `db:"data_json"`
	MetadataID *int64    `db:"metadata_id"`
	VersionID  int64     `db:"version_id"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}
