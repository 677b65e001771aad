package wave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sessionwave/orchestrator/internal/aigen"
	"github.com/sessionwave/orchestrator/internal/compaction"
	"github.com/sessionwave/orchestrator/internal/config"
	"github.com/sessionwave/orchestrator/internal/events"
	"github.com/sessionwave/orchestrator/internal/store"
	"github.com/sessionwave/orchestrator/internal/tasks"
	"github.com/sessionwave/orchestrator/internal/versionstore"
)

// Orchestrator runs one session's Wave 1 / Wave 2 graph and debounces Wave 3
// regeneration per patient (spec §4.5). It has no concept of "which worker
// runs this" — that is the WorkerPool's job.
type Orchestrator struct {
	sessions *store.SessionRepo
	logs     *store.ProcessingLogRepo

	publisher *events.Publisher
	gen       *aigen.Base
	versions  *versionstore.Store

	queueCfg *config.QueueConfig
	compact  *config.CompactionConfig

	log *slog.Logger

	debounceMu sync.Mutex
	debounce   map[string]*time.Timer
}

func NewOrchestrator(
	sessions *store.SessionRepo,
	logs *store.ProcessingLogRepo,
	publisher *events.Publisher,
	gen *aigen.Base,
	versions *versionstore.Store,
	queueCfg *config.QueueConfig,
	compactCfg *config.CompactionConfig,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		sessions:  sessions,
		logs:      logs,
		publisher: publisher,
		gen:       gen,
		versions:  versions,
		queueCfg:  queueCfg,
		compact:   compactCfg,
		log:       log,
		debounce:  make(map[string]*time.Timer),
	}
}

// RunSession executes the dependency graph for one session: a best-effort
// speaker-label pass, the parallel Wave-1 triple plus sequential
// action_summary, then Wave 2's sequential deep_analysis/prose pair, and
// finally arms the patient's Wave-3 debounce (spec §4.5). A session that
// already has Wave1CompletedAt set (a resume after /stop, spec §4.9 S5)
// skips straight to Wave 2 instead of repeating Wave 1.
func (o *Orchestrator) RunSession(ctx context.Context, session *store.Session) error {
	topicsOK := session.TopicsExtractedAt != nil

	if session.Wave1CompletedAt == nil {
		segments, err := decodeSegments(session.TranscriptJSON)
		if err != nil {
			return fmt.Errorf("run session %s: decode transcript: %w", session.ID, err)
		}

		segments = o.relabelSegments(ctx, session, segments)

		topicsOK = o.runWave1(ctx, session, segments)

		if err := o.sessions.CompleteWave1(ctx, session.ID, time.Now()); err != nil {
			o.log.Error("complete wave1", "error", err, "session_id", session.ID)
		}
	}

	if !topicsOK {
		// Wave 2 needs topics' summary/technique as input; without them there
		// is nothing to synthesize (spec §4.5 S3: dependents of a failed
		// upstream task are skipped, not retried independently).
		o.log.Warn("skipping wave 2: topics did not complete", "session_id", session.ID)
		return nil
	}

	if err := o.waitForEarlierWave1(ctx, session); err != nil {
		return fmt.Errorf("run session %s: wait for earlier wave1: %w", session.ID, err)
	}

	if err := o.runWave2(ctx, session); err != nil {
		o.log.Warn("wave 2 incomplete", "error", err, "session_id", session.ID)
	}

	o.triggerWave3(session.PatientID)
	return nil
}

// relabelSegments runs the speaker_label task as a best-effort pre-Wave1
// step (spec §4.3 task #7; absent from the Wave1/2/3 graph in §4.5 because
// it never gates anything downstream). A transport/remote/parse failure
// falls back to the heuristic fusion rule rather than retrying, since
// nothing downstream is blocked waiting for it.
func (o *Orchestrator) relabelSegments(ctx context.Context, session *store.Session, segments []tasks.Segment) []tasks.Segment {
	logID, err := o.logs.LogStart(ctx, session.ID, store.WaveSpeakerLabel, 0)
	if err != nil {
		o.log.Error("log speaker_label start", "error", err, "session_id", session.ID)
	}
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	result, genErr := o.gen.Generate(callCtx, tasks.SpeakerLabel{}, tasks.SpeakerLabelInput{Segments: segments},
		aigen.Opts{SessionID: session.ID, PatientID: session.PatientID})

	var labels map[string]string
	if genErr != nil {
		o.log.Warn("speaker_label failed, using heuristic", "error", genErr, "session_id", session.ID)
		labels = tasks.HeuristicSpeakerLabel(segments).Labels
		if logID != 0 {
			_ = o.logs.LogFail(ctx, logID, time.Since(start).Milliseconds(), genErr.Error())
		}
	} else {
		labels = result.Value.(tasks.SpeakerLabelResult).Labels
		if logID != 0 {
			_ = o.logs.LogComplete(ctx, logID, time.Since(start).Milliseconds())
		}
	}

	return relabel(segments, labels)
}

// relabel rewrites each segment's SpeakerID to the role ("Client" or
// "Therapist") speaker_label (or its heuristic fallback) assigned it, so
// patientSegmentsOnly's "Client"/"S1" filter sees a consistent label
// regardless of the raw diarization ids.
func relabel(segments []tasks.Segment, labels map[string]string) []tasks.Segment {
	if len(labels) == 0 {
		return segments
	}
	out := make([]tasks.Segment, len(segments))
	for i, s := range segments {
		out[i] = s
		if labels[s.SpeakerID] == "Client" {
			out[i].SpeakerID = "Client"
		} else if labels[s.SpeakerID] == "Therapist" {
			out[i].SpeakerID = "Therapist"
		}
	}
	return out
}

// runWave1 runs {mood, topics, breakthrough} concurrently — failure of any
// one does not cancel its peers (spec §4.5 S2) — then action_summary
// sequentially, gated on topics' success. It returns whether topics
// succeeded, the signal Wave 2 is gated on.
func (o *Orchestrator) runWave1(ctx context.Context, session *store.Session, segments []tasks.Segment) bool {
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.queueCfg.Wave1Parallelism)

	var topicsResult tasks.TopicsResult
	var topicsOK bool

	run := func(wave string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			fn()
		}()
	}

	run(store.WaveMood, func() {
		v, err := o.runTask(ctx, session.PatientID, store.PhaseWave1, session.ID, store.WaveMood, o.taskTimeout(store.WaveMood),
			func(c context.Context) (any, error) {
				res, err := o.gen.Generate(c, tasks.Mood{}, tasks.MoodInput{Segments: segments}, o.opts(session))
				if err != nil {
					return nil, err
				}
				return res.Value, nil
			})
		if err != nil {
			o.log.Warn("mood task failed permanently", "error", err, "session_id", session.ID)
			return
		}
		mr := v.(tasks.MoodResult)
		indicatorsJSON, _ := json.Marshal(mr.KeyIndicators)
		err = o.sessions.WriteMood(ctx, session.ID, store.MoodResult{
			Score: mr.Score, Confidence: mr.Confidence, Rationale: mr.Rationale,
			IndicatorsJSON: indicatorsJSON, EmotionalTone: mr.EmotionalTone,
		}, time.Now())
		if err != nil {
			o.log.Error("write mood", "error", err, "session_id", session.ID)
		}
	})

	run(store.WaveTopics, func() {
		v, err := o.runTask(ctx, session.PatientID, store.PhaseWave1, session.ID, store.WaveTopics, o.taskTimeout(store.WaveTopics),
			func(c context.Context) (any, error) {
				res, err := o.gen.Generate(c, tasks.Topics{}, tasks.TopicsInput{Segments: segments}, o.opts(session))
				if err != nil {
					return nil, err
				}
				return res.Value, nil
			})
		if err != nil {
			o.log.Warn("topics task failed permanently", "error", err, "session_id", session.ID)
			return
		}
		topicsResult = v.(tasks.TopicsResult)
		topicsJSON, _ := json.Marshal(topicsResult.Topics)
		actionItemsJSON, _ := json.Marshal(topicsResult.ActionItems)
		err = o.sessions.WriteTopics(ctx, session.ID, store.TopicsResult{
			TopicsJSON: topicsJSON, ActionItemsJSON: actionItemsJSON,
			Technique: topicsResult.Technique, Summary: topicsResult.Summary,
		}, time.Now())
		if err != nil {
			o.log.Error("write topics", "error", err, "session_id", session.ID)
			return
		}
		topicsOK = true
	})

	run(store.WaveBreakthrough, func() {
		v, err := o.runTask(ctx, session.PatientID, store.PhaseWave1, session.ID, store.WaveBreakthrough, o.taskTimeout(store.WaveBreakthrough),
			func(c context.Context) (any, error) {
				res, err := o.gen.Generate(c, tasks.Breakthrough{}, tasks.BreakthroughInput{Segments: segments}, o.opts(session))
				if err != nil {
					return nil, err
				}
				return res.Value, nil
			})
		if err != nil {
			o.log.Warn("breakthrough task failed permanently", "error", err, "session_id", session.ID)
			return
		}
		br := v.(tasks.BreakthroughResult)
		var dataJSON []byte
		if br.HasBreakthrough {
			dataJSON, _ = json.Marshal(br)
		}
		err = o.sessions.WriteBreakthrough(ctx, session.ID, store.BreakthroughResult{
			HasBreakthrough: br.HasBreakthrough, Label: br.Label, DataJSON: dataJSON,
		}, time.Now())
		if err != nil {
			o.log.Error("write breakthrough", "error", err, "session_id", session.ID)
		}
	})

	wg.Wait()

	if topicsOK {
		v, err := o.runTask(ctx, session.PatientID, store.PhaseWave1, session.ID, store.WaveActionSummary, o.taskTimeout(store.WaveActionSummary),
			func(c context.Context) (any, error) {
				res, err := o.gen.Generate(c, tasks.ActionSummary{}, tasks.ActionSummaryInput{ActionItems: topicsResult.ActionItems}, o.opts(session))
				if err != nil {
					return nil, err
				}
				return res.Value, nil
			})
		if err != nil {
			o.log.Warn("action_summary failed permanently, leaving summary null", "error", err, "session_id", session.ID)
		} else {
			asr := v.(tasks.ActionSummaryResult)
			if err := o.sessions.WriteActionItemsSummary(ctx, session.ID, asr.Summary); err != nil {
				o.log.Error("write action_items_summary", "error", err, "session_id", session.ID)
			}
		}
	}

	return topicsOK
}

// waitForEarlierWave1 blocks until every earlier-dated session of the same
// patient has reached wave1_completed_at, so Wave 2's compaction context
// never synthesizes from a partially analyzed history (spec §4.4/§4.5:
// sessions are processed in dependency order per patient).
func (o *Orchestrator) waitForEarlierWave1(ctx context.Context, session *store.Session) error {
	ticker := time.NewTicker(o.queueCfg.PollInterval)
	defer ticker.Stop()

	for {
		siblings, err := o.sessions.ListByPatient(ctx, session.PatientID)
		if err != nil {
			return fmt.Errorf("list siblings for %s: %w", session.PatientID, err)
		}
		ready := true
		for _, s := range siblings {
			if s.ID == session.ID || !s.SessionDate.Before(session.SessionDate) {
				continue
			}
			if s.Wave1CompletedAt == nil {
				ready = false
				break
			}
		}
		if ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runWave2 runs deep_analysis then prose sequentially (spec §4.5 W2: prose
// depends on deep_analysis's own output, not just its completion).
func (o *Orchestrator) runWave2(ctx context.Context, session *store.Session) error {
	// The claimed session predates this run's Wave-1 writes; reload it so
	// deep_analysis receives the topics and summary Wave 1 just stored.
	if fresh, err := o.sessions.Get(ctx, session.ID); err == nil {
		session = fresh
	}

	compactionCtx, err := o.buildCompactionContext(ctx, session)
	if err != nil {
		return fmt.Errorf("build compaction context: %w", err)
	}

	var topics []string
	if session.TopicsJSON != nil {
		_ = json.Unmarshal(session.TopicsJSON, &topics)
	}
	summary := ""
	if session.Summary != nil {
		summary = *session.Summary
	}

	v, err := o.runTask(ctx, session.PatientID, store.PhaseWave2, session.ID, store.WaveDeep, o.taskTimeout(store.WaveDeep),
		func(c context.Context) (any, error) {
			res, err := o.gen.Generate(c, tasks.DeepAnalysis{}, tasks.DeepAnalysisInput{
				Wave1Summary: summary, Wave1Topics: topics, Context: compactionCtx,
			}, o.opts(session))
			if err != nil {
				return nil, err
			}
			return res.Value, nil
		})
	if err != nil {
		return fmt.Errorf("deep_analysis: %w", err)
	}
	deep := v.(tasks.DeepAnalysisResult)
	deepJSON, _ := json.Marshal(deep)
	if err := o.sessions.WriteDeepAnalysis(ctx, session.ID, deepJSON, deep.Confidence, time.Now()); err != nil {
		o.log.Error("write deep_analysis", "error", err, "session_id", session.ID)
	}

	v, err = o.runTask(ctx, session.PatientID, store.PhaseWave2, session.ID, store.WaveProse, o.taskTimeout(store.WaveProse),
		func(c context.Context) (any, error) {
			res, err := o.gen.Generate(c, tasks.Prose{}, tasks.ProseInput{DeepAnalysis: deep}, o.opts(session))
			if err != nil {
				return nil, err
			}
			return res.Value, nil
		})
	if err != nil {
		return fmt.Errorf("prose: %w", err)
	}
	prose := v.(tasks.ProseResult)
	if err := o.sessions.WriteProse(ctx, session.ID, prose.ProseAnalysis, time.Now()); err != nil {
		o.log.Error("write prose", "error", err, "session_id", session.ID)
	}
	return nil
}

// buildCompactionContext assembles C4's Input from every earlier-dated,
// Wave-2-complete session of the same patient, most recent first.
func (o *Orchestrator) buildCompactionContext(ctx context.Context, session *store.Session) (compaction.Context, error) {
	siblings, err := o.sessions.ListByPatient(ctx, session.PatientID)
	if err != nil {
		return compaction.Context{}, err
	}

	var prior []compaction.PriorSession
	for i := len(siblings) - 1; i >= 0; i-- {
		s := siblings[i]
		if !s.SessionDate.Before(session.SessionDate) || s.ProseGeneratedAt == nil {
			continue
		}
		prior = append(prior, priorSessionFrom(s))
	}

	previousJourney := ""
	if latest, err := o.versions.GetJourneyLatest(ctx, session.PatientID); err == nil {
		var jr tasks.YourJourneyResult
		if json.Unmarshal(latest.DataJSON, &jr) == nil {
			previousJourney = jr.Summary
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		o.log.Warn("get journey latest", "error", err, "patient_id", session.PatientID)
	}

	return compaction.Build(o.compact.Strategy, compaction.Input{
		PriorSessions:   prior,
		PreviousJourney: previousJourney,
	}), nil
}

func priorSessionFrom(s *store.Session) compaction.PriorSession {
	summary := ""
	if s.Summary != nil {
		summary = *s.Summary
	}
	var deep tasks.DeepAnalysisResult
	if s.DeepAnalysisJSON != nil {
		_ = json.Unmarshal(s.DeepAnalysisJSON, &deep)
	}
	deepText := deep.Progress
	if s.ProseAnalysis != nil {
		deepText = *s.ProseAnalysis
	}
	return compaction.PriorSession{
		SessionDate:  s.SessionDate.Format(time.RFC3339),
		Summary:      summary,
		DeepAnalysis: deepText,
		Insights:     deep.Insights,
	}
}

func (o *Orchestrator) opts(session *store.Session) aigen.Opts {
	return aigen.Opts{SessionID: session.ID, PatientID: session.PatientID}
}

func decodeSegments(transcriptJSON []byte) ([]tasks.Segment, error) {
	var segments []tasks.Segment
	if err := json.Unmarshal(transcriptJSON, &segments); err != nil {
		return nil, err
	}
	return segments, nil
}
