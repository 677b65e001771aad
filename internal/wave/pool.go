package wave

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sessionwave/orchestrator/internal/config"
	"github.com/sessionwave/orchestrator/internal/metrics"
	"github.com/sessionwave/orchestrator/internal/storedb"
	"github.com/sessionwave/orchestrator/internal/store"
)

// WorkerPool owns a fixed set of goroutine Workers that together implement
// the single-leader work queue (spec §5). Grounded in the teacher's
// pkg/queue.WorkerPool, minus its podID/multi-instance bookkeeping — this
// module runs one leader per deployment (spec §5: "no distributed
// consensus across machines").
type WorkerPool struct {
	sessions     *store.SessionRepo
	orchestrator *Orchestrator
	cfg          *config.QueueConfig
	log          *slog.Logger
	db           *storedb.Client

	workers  []*Worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	// activeSessions: session_id → cancel, for the worker that owns it.
	// activeByPatient: patient_id → set of session_ids, for /stop.
	mu              sync.RWMutex
	activeSessions  map[string]context.CancelFunc
	activeByPatient map[string]map[string]struct{}
}

func NewWorkerPool(sessions *store.SessionRepo, orchestrator *Orchestrator, cfg *config.QueueConfig, db *storedb.Client, log *slog.Logger) *WorkerPool {
	return &WorkerPool{
		sessions:        sessions,
		orchestrator:    orchestrator,
		cfg:             cfg,
		db:              db,
		log:             log,
		workers:         make([]*Worker, 0, cfg.PoolSize),
		stopCh:          make(chan struct{}),
		activeSessions:  make(map[string]context.CancelFunc),
		activeByPatient: make(map[string]map[string]struct{}),
	}
}

// Start spawns PoolSize worker goroutines. Safe to call once.
func (p *WorkerPool) Start(ctx context.Context) {
	if p.started {
		p.log.Warn("worker pool already started, ignoring duplicate Start")
		return
	}
	p.started = true

	p.log.Info("starting worker pool", "pool_size", p.cfg.PoolSize)
	for i := 0; i < p.cfg.PoolSize; i++ {
		w := NewWorker(fmt.Sprintf("worker-%d", i), p.sessions, p.orchestrator, p.cfg, p, p.log)
		p.workers = append(p.workers, w)
		w.Start(ctx)
	}
}

// Stop signals every worker to finish its current session and return, then
// waits for all of them. It applies no timeout of its own; in-flight
// sessions end early only when the context passed to Start is cancelled.
func (p *WorkerPool) Stop() {
	p.log.Info("stopping worker pool", "active_sessions", len(p.getActiveSessionIDs()))
	for _, w := range p.workers {
		w.Stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// RegisterSession records a session's cancel func, keyed by both session
// and patient so CancelPatient can stop every in-flight session of a
// patient at once — a capability the teacher's single-session-keyed map
// doesn't need, required here by the per-patient /stop endpoint (spec §4.9).
func (p *WorkerPool) RegisterSession(patientID, sessionID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeSessions[sessionID] = cancel
	if p.activeByPatient[patientID] == nil {
		p.activeByPatient[patientID] = make(map[string]struct{})
	}
	p.activeByPatient[patientID][sessionID] = struct{}{}
}

// UnregisterSession removes a session's cancel func once processing ends.
func (p *WorkerPool) UnregisterSession(patientID, sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeSessions, sessionID)
	if set, ok := p.activeByPatient[patientID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(p.activeByPatient, patientID)
		}
	}
}

// CancelPatient cancels every in-flight session belonging to a patient,
// the mechanism behind POST /patients/{id}/stop (spec §4.9).
func (p *WorkerPool) CancelPatient(patientID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for sessionID := range p.activeByPatient[patientID] {
		if cancel, ok := p.activeSessions[sessionID]; ok {
			cancel()
			n++
		}
	}
	return n
}

func (p *WorkerPool) getActiveSessionIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.activeSessions))
	for id := range p.activeSessions {
		ids = append(ids, id)
	}
	return ids
}

// Health reports the pool's PoolHealth payload (spec §4: supplemented
// /health surface), grounded in the teacher's WorkerPool.Health.
func (p *WorkerPool) Health(ctx context.Context) *PoolHealth {
	dbErr := p.db.Health(ctx)
	dbHealthy := dbErr == nil

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, w := range p.workers {
		stats := w.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	active := len(p.getActiveSessionIDs())
	isHealthy := len(p.workers) > 0 && active <= p.cfg.MaxConcurrentSessions && dbHealthy

	metrics.ActiveWorkers.Set(float64(activeWorkers))
	if pending, err := p.sessions.CountPending(ctx); err == nil {
		metrics.QueueDepth.Set(float64(pending))
	} else {
		p.log.Error("count pending sessions for queue depth metric", "error", err)
	}

	var dbErrMsg string
	if dbErr != nil {
		dbErrMsg = dbErr.Error()
	}

	return &PoolHealth{
		IsHealthy:      isHealthy,
		DBReachable:    dbHealthy,
		DBError:        dbErrMsg,
		ActiveWorkers:  activeWorkers,
		TotalWorkers:   len(p.workers),
		ActiveSessions: active,
		MaxConcurrent:  p.cfg.MaxConcurrentSessions,
		WorkerStats:    workerStats,
	}
}
