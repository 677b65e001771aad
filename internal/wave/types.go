// Package wave implements C5: the dependency-ordered wave scheduler. A
// WorkerPool of goroutine Workers claims pending sessions with
// FOR UPDATE SKIP LOCKED (spec §5), and an Orchestrator runs each
// session's Wave 1 / Wave 2 graph plus the per-patient Wave 3 debounce,
// grounded throughout in the teacher's pkg/queue/{pool,worker}.go.
package wave

import (
	"context"
	"errors"
	"time"
)

// ErrCancelled is returned by a task attempt aborted via /stop (spec §7:
// CancelledError).
var ErrCancelled = errors.New("wave: cancelled")

// PoolHealth mirrors the teacher's queue.PoolHealth JSON health payload
// (SPEC_FULL §4), adapted to this module's single-leader deployment (no
// pod_id / multi-instance fields — spec §5: "single-leader within a
// deployment").
type PoolHealth struct {
	IsHealthy      bool           `json:"is_healthy"`
	DBReachable    bool           `json:"db_reachable"`
	DBError        string         `json:"db_error,omitempty"`
	ActiveWorkers  int            `json:"active_workers"`
	TotalWorkers   int            `json:"total_workers"`
	ActiveSessions int            `json:"active_sessions"`
	MaxConcurrent  int            `json:"max_concurrent"`
	WorkerStats    []WorkerHealth `json:"worker_stats"`
}

// WorkerHealth mirrors the teacher's queue.WorkerHealth.
type WorkerHealth struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"`
	CurrentSessionID  string    `json:"current_session_id,omitempty"`
	SessionsProcessed int       `json:"sessions_processed"`
	LastActivity      time.Time `json:"last_activity"`
}

// WorkerStatus is a Worker's health-reporting state.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// SessionRegistry is the subset of WorkerPool a Worker needs for
// cancellable-session bookkeeping, mirroring the teacher's
// queue.SessionRegistry interface.
type SessionRegistry interface {
	RegisterSession(patientID, sessionID string, cancel context.CancelFunc)
	UnregisterSession(patientID, sessionID string)
}
