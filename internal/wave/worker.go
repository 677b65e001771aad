package wave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sessionwave/orchestrator/internal/config"
	"github.com/sessionwave/orchestrator/internal/store"
)

// Worker polls SessionRepo.ClaimNextPending and runs claimed sessions
// through the Orchestrator, grounded in the teacher's pkg/queue.Worker.
type Worker struct {
	id           string
	sessions     *store.SessionRepo
	orchestrator *Orchestrator
	cfg          *config.QueueConfig
	registry     SessionRegistry
	log          *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu                sync.RWMutex
	status            WorkerStatus
	currentSessionID  string
	sessionsProcessed int
	lastActivity      time.Time
}

func NewWorker(id string, sessions *store.SessionRepo, orchestrator *Orchestrator, cfg *config.QueueConfig, registry SessionRegistry, log *slog.Logger) *Worker {
	return &Worker{
		id:           id,
		sessions:     sessions,
		orchestrator: orchestrator,
		cfg:          cfg,
		registry:     registry,
		log:          log,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:                w.id,
		Status:            string(w.status),
		CurrentSessionID:  w.currentSessionID,
		SessionsProcessed: w.sessionsProcessed,
		LastActivity:      w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := w.log.With("worker_id", w.id)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, store.ErrNoSessionsAvailable) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing session", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims the next pending session and runs it to a terminal
// state, applying the session-level timeout, cancel registration, and
// terminal status transition (spec §4.5, §4.9). Unlike the teacher's
// worker, it does not re-check capacity before claiming: PoolSize workers
// each hold at most one session, so total in-flight sessions is already
// bounded by PoolSize, which defaults to MaxConcurrentSessions.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	session, err := w.sessions.ClaimNextPending(ctx)
	if err != nil {
		return err
	}

	log := w.log.With("session_id", session.ID, "worker_id", w.id)
	log.Info("session claimed")

	w.setStatus(WorkerStatusWorking, session.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	sessionCtx, cancel := context.WithTimeout(ctx, w.cfg.SessionTimeout)
	defer cancel()

	w.registry.RegisterSession(session.PatientID, session.ID, cancel)
	defer w.registry.UnregisterSession(session.PatientID, session.ID)

	runErr := w.orchestrator.RunSession(sessionCtx, session)

	status := store.ProcessingCompleted
	switch {
	case errors.Is(sessionCtx.Err(), context.Canceled):
		status = store.ProcessingStopped
		if markErr := w.sessions.MarkStopped(context.Background(), session.ID, time.Now()); markErr != nil {
			log.Error("mark session stopped", "error", markErr)
		}
	case errors.Is(sessionCtx.Err(), context.DeadlineExceeded):
		status = store.ProcessingFailed
		log.Error("session timed out", "timeout", w.cfg.SessionTimeout)
	case runErr != nil:
		status = store.ProcessingFailed
		log.Error("session run returned error", "error", runErr)
	}

	bgCtx := context.Background()
	if err := w.sessions.SetProcessingStatus(bgCtx, session.ID, status); err != nil {
		log.Error("set processing status", "error", err)
		return fmt.Errorf("set processing status for %s: %w", session.ID, err)
	}
	// AnalysisStatus has no dedicated "failed" value (spec §3); a failed run
	// is reported the same as a stopped one, distinguishable via
	// ProcessingStatus and the processing log.
	analysisStatus := store.AnalysisComplete
	if status != store.ProcessingCompleted {
		analysisStatus = store.AnalysisStopped
	}
	if err := w.sessions.SetAnalysisStatus(bgCtx, session.ID, analysisStatus); err != nil {
		log.Error("set analysis status", "error", err)
	}

	w.mu.Lock()
	w.sessionsProcessed++
	w.mu.Unlock()

	log.Info("session processing complete", "status", status)
	return nil
}

// pollInterval returns the poll duration with jitter, mirroring the
// teacher's Worker.pollInterval.
func (w *Worker) pollInterval() time.Duration {
	base := w.cfg.PollInterval
	jitter := w.cfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus, sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentSessionID = sessionID
	w.lastActivity = time.Now()
}
