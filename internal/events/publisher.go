// Package events implements C7: durable pipeline events and their SSE
// fan-out. Adapted from the teacher's WebSocket+LISTEN/NOTIFY publisher
// into a poll-based design, since the spec requires events to survive a
// subprocess boundary the teacher's in-process NOTIFY channel cannot
// (spec §4.7, §9).
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sessionwave/orchestrator/internal/store"
)

// Publisher appends PipelineEvent rows. Every public method is best-effort
// per spec §4.7/§7: a failure is logged, never returned to the caller's
// caller, and never fails the generation or scheduling step that triggered it.
type Publisher struct {
	events *store.EventRepo
	log    *slog.Logger
}

func NewPublisher(events *store.EventRepo, log *slog.Logger) *Publisher {
	return &Publisher{events: events, log: log}
}

// Envelope is the JSON body of every SSE frame's data line (spec §6).
type Envelope struct {
	Type      string    `json:"type"`
	SessionID *string   `json:"session_id,omitempty"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Publish appends one event. Ordering guarantee (spec §4.7): callers must
// invoke Publish for a START event strictly before launching the
// generator, and for the terminal event strictly before marking the wave
// terminal, so id order reflects append order within a process.
func (p *Publisher) Publish(ctx context.Context, patientID, phase, eventType string, sessionID *string, status string, payload any) {
	detailsJSON, err := json.Marshal(Envelope{
		Type: eventType, SessionID: sessionID, Status: status,
		Timestamp: time.Now(), Payload: payload,
	})
	if err != nil {
		p.log.Error("marshal pipeline event", "error", err, "patient_id", patientID, "event_type", eventType)
		return
	}

	_, err = p.events.Append(ctx, store.NewEventInput{
		PatientID: patientID, Phase: phase, EventType: eventType,
		SessionID: sessionID, Status: status, DetailsJSON: detailsJSON,
	})
	if err != nil {
		// Best-effort: status is authoritative, events are a signal only
		// (spec §7: "database write failures in the event queue are
		// logged and swallowed").
		p.log.Error("append pipeline event", "error", err, "patient_id", patientID, "event_type", eventType)
	}
}

// WaveStarted emits a START event for a (session, wave) attempt.
func (p *Publisher) WaveStarted(ctx context.Context, patientID, phase, sessionID, wave string) {
	sid := sessionID
	p.Publish(ctx, patientID, phase, wave+".started", &sid, "started", nil)
}

// WaveCompleted emits the terminal COMPLETE event for a (session, wave) attempt.
func (p *Publisher) WaveCompleted(ctx context.Context, patientID, phase, sessionID, wave string, payload any) {
	sid := sessionID
	p.Publish(ctx, patientID, phase, wave+".completed", &sid, "completed", payload)
}

// WaveFailed emits the terminal FAILED event for a (session, wave) attempt.
func (p *Publisher) WaveFailed(ctx context.Context, patientID, phase, sessionID, wave, errMsg string) {
	sid := sessionID
	p.Publish(ctx, patientID, phase, wave+".failed", &sid, "failed", map[string]string{"error": errMsg})
}

// WaveStopped emits a STOPPED event for a (session, wave) attempt.
func (p *Publisher) WaveStopped(ctx context.Context, patientID, phase, sessionID, wave string) {
	sid := sessionID
	p.Publish(ctx, patientID, phase, wave+".stopped", &sid, "stopped", nil)
}
