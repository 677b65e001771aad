package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sessionwave/orchestrator/internal/store"
)

func TestDerivePatientState_NotStarted(t *testing.T) {
	status, processing := derivePatientState(nil, StatusResponse{}, 0, 0)
	assert.Equal(t, "not_started", status)
	assert.Equal(t, "idle", processing)
}

func TestDerivePatientState_Running(t *testing.T) {
	sessions := []*store.Session{{ProcessingStatus: store.ProcessingRunning}}
	status, processing := derivePatientState(sessions, StatusResponse{}, 0, 0)
	assert.Equal(t, "running", status)
	assert.Equal(t, "running", processing)
}

func TestDerivePatientState_Stopped(t *testing.T) {
	sessions := []*store.Session{{ProcessingStatus: store.ProcessingStopped}}
	id := "sess-1"
	status, processing := derivePatientState(sessions, StatusResponse{StoppedAtSessionID: &id}, 1, 0)
	assert.Equal(t, "stopped", status)
	assert.Equal(t, "stopped", processing)
}

func TestDerivePatientState_CompleteRequiresJourney(t *testing.T) {
	sessions := []*store.Session{{ProcessingStatus: store.ProcessingCompleted}}

	status, _ := derivePatientState(sessions, StatusResponse{}, 1, 1)
	assert.Equal(t, "running", status, "no journey yet, can't be complete")

	now := time.Now()
	status, processing := derivePatientState(sessions, StatusResponse{RoadmapUpdatedAt: &now}, 1, 1)
	assert.Equal(t, "complete", status)
	assert.Equal(t, "idle", processing)
}
