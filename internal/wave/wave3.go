package wave

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sessionwave/orchestrator/internal/aigen"
	"github.com/sessionwave/orchestrator/internal/compaction"
	"github.com/sessionwave/orchestrator/internal/metrics"
	"github.com/sessionwave/orchestrator/internal/store"
	"github.com/sessionwave/orchestrator/internal/tasks"
	"github.com/sessionwave/orchestrator/internal/versionstore"
)

// triggerWave3 arms (or extends) a patient's debounce timer. Repeated calls
// within DebounceWindow coalesce into a single regeneration (spec §4.4/§4.5:
// "Wave 3 debounces per patient so N sessions finishing together produce
// one Journey/Bridge regeneration, not N").
func (o *Orchestrator) triggerWave3(patientID string) {
	o.debounceMu.Lock()
	defer o.debounceMu.Unlock()

	if t, ok := o.debounce[patientID]; ok {
		t.Stop()
	}
	o.debounce[patientID] = time.AfterFunc(o.queueCfg.DebounceWindow, func() {
		o.debounceMu.Lock()
		delete(o.debounce, patientID)
		o.debounceMu.Unlock()
		// Regeneration runs detached from any single session's context: the
		// debounce timer can fire well after the triggering RunSession call
		// has returned and its context been cancelled.
		o.regeneratePatient(context.Background(), patientID)
	})
}

// regeneratePatient rebuilds the patient's Journey and Bridge documents from
// every Wave-2-complete session, most recent first (spec §4.4).
func (o *Orchestrator) regeneratePatient(ctx context.Context, patientID string) {
	sessions, err := o.sessions.ListByPatient(ctx, patientID)
	if err != nil {
		o.log.Error("wave3: list sessions", "error", err, "patient_id", patientID)
		return
	}

	var prior []compaction.PriorSession
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		if s.ProseGeneratedAt == nil {
			continue
		}
		prior = append(prior, priorSessionFrom(s))
	}
	if len(prior) == 0 {
		o.log.Warn("wave3: no wave2-complete sessions, skipping regeneration", "patient_id", patientID)
		return
	}

	previousJourney := ""
	if latest, err := o.versions.GetJourneyLatest(ctx, patientID); err == nil {
		var jr tasks.YourJourneyResult
		if json.Unmarshal(latest.DataJSON, &jr) == nil {
			previousJourney = jr.Summary
		}
	}

	compactionCtx := compaction.Build(o.compact.Strategy, compaction.Input{
		PriorSessions:   prior,
		PreviousJourney: previousJourney,
	})
	strategy := string(o.compact.Strategy)

	o.publisher.Publish(ctx, patientID, store.PhaseWave3, "wave3.started", nil, "started", nil)

	journeyStart := time.Now()
	journeyRes, journeyErr := o.gen.Generate(ctx, tasks.YourJourney{}, tasks.YourJourneyInput{Context: compactionCtx},
		aigen.Opts{PatientID: patientID})
	if journeyErr != nil {
		o.log.Error("wave3: your_journey generate", "error", journeyErr, "patient_id", patientID)
		o.publisher.Publish(ctx, patientID, store.PhaseWave3, "wave3.failed", nil, "failed",
			map[string]string{"error": journeyErr.Error(), "task": "your_journey"})
		metrics.Wave3RegenerationsTotal.WithLabelValues("journey", "failed").Inc()
	} else {
		journeyJSON, _ := json.Marshal(journeyRes.Value)
		if _, err := o.versions.WriteJourney(ctx, versionstore.WriteInput{
			PatientID: patientID, DataJSON: journeyJSON,
			SessionsAnalyzed: len(prior), TotalSessions: len(sessions),
			ModelUsed: journeyRes.Model, CompactionStrategy: &strategy,
			DurationMs: time.Since(journeyStart).Milliseconds(),
		}); err != nil {
			o.log.Error("wave3: write journey version", "error", err, "patient_id", patientID)
			metrics.Wave3RegenerationsTotal.WithLabelValues("journey", "failed").Inc()
		} else {
			metrics.Wave3RegenerationsTotal.WithLabelValues("journey", "completed").Inc()
		}
	}

	// Bridge generates even for a single-session patient, flagged
	// low_confidence rather than withheld (DESIGN.md open question #2).
	bridgeStart := time.Now()
	bridgeRes, bridgeErr := o.gen.Generate(ctx, tasks.SessionBridge{}, tasks.SessionBridgeInput{Context: compactionCtx},
		aigen.Opts{PatientID: patientID})
	if bridgeErr != nil {
		o.log.Error("wave3: session_bridge generate", "error", bridgeErr, "patient_id", patientID)
		o.publisher.Publish(ctx, patientID, store.PhaseWave3, "wave3.failed", nil, "failed",
			map[string]string{"error": bridgeErr.Error(), "task": "session_bridge"})
		metrics.Wave3RegenerationsTotal.WithLabelValues("bridge", "failed").Inc()
	} else {
		bridge := bridgeRes.Value.(tasks.SessionBridgeResult)
		if len(prior) == 1 {
			bridge.LowConfidence = true
		}
		bridgeJSON, _ := json.Marshal(bridge)
		if _, err := o.versions.WriteBridge(ctx, versionstore.WriteInput{
			PatientID: patientID, DataJSON: bridgeJSON,
			SessionsAnalyzed: len(prior), TotalSessions: len(sessions),
			ModelUsed: bridgeRes.Model, CompactionStrategy: &strategy,
			DurationMs: time.Since(bridgeStart).Milliseconds(),
		}); err != nil {
			o.log.Error("wave3: write bridge version", "error", err, "patient_id", patientID)
			metrics.Wave3RegenerationsTotal.WithLabelValues("bridge", "failed").Inc()
		} else {
			metrics.Wave3RegenerationsTotal.WithLabelValues("bridge", "completed").Inc()
		}
	}

	if journeyErr == nil && bridgeErr == nil {
		o.publisher.Publish(ctx, patientID, store.PhaseWave3, "wave3.completed", nil, "completed", nil)
	}
}
