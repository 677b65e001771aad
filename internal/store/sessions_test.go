package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionwave/orchestrator/internal/storedb/storedbtest"
	"github.com/sessionwave/orchestrator/internal/store"
)

func newSession(t *testing.T, patients *store.PatientRepo, sessions *store.SessionRepo, patientID string) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, patients.EnsureExists(ctx, patientID))

	id := uuid.NewString()
	require.NoError(t, sessions.Create(ctx, store.NewSessionInput{
		ID: id, PatientID: patientID, SessionDate: time.Now(),
		DurationMinutes: 50, TranscriptJSON: []byte(`[]`),
	}))
	return id
}

func TestSessionRepo_CreateAndGet(t *testing.T) {
	client := storedbtest.NewClient(t)
	sessions := store.NewSessionRepo(client.DB)
	patients := store.NewPatientRepo(client.DB)

	id := newSession(t, patients, sessions, "patient-1")

	got, err := sessions.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, store.ProcessingPending, got.ProcessingStatus)
	assert.Equal(t, store.AnalysisNotStarted, got.AnalysisStatus)
	assert.Nil(t, got.Wave1CompletedAt)
}

func TestSessionRepo_Get_NotFound(t *testing.T) {
	client := storedbtest.NewClient(t)
	sessions := store.NewSessionRepo(client.DB)

	_, err := sessions.Get(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionRepo_ClaimNextPending_SkipsRunning(t *testing.T) {
	client := storedbtest.NewClient(t)
	sessions := store.NewSessionRepo(client.DB)
	patients := store.NewPatientRepo(client.DB)
	ctx := context.Background()

	newSession(t, patients, sessions, "patient-1")

	claimed, err := sessions.ClaimNextPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.ProcessingRunning, claimed.ProcessingStatus)
	assert.Equal(t, store.AnalysisRunning, claimed.AnalysisStatus)

	_, err = sessions.ClaimNextPending(ctx)
	assert.ErrorIs(t, err, store.ErrNoSessionsAvailable, "only one pending session existed and it's now running")
}

func TestSessionRepo_WriteBreakthrough_FreezesAfterFirstWrite(t *testing.T) {
	client := storedbtest.NewClient(t)
	sessions := store.NewSessionRepo(client.DB)
	patients := store.NewPatientRepo(client.DB)
	ctx := context.Background()
	id := newSession(t, patients, sessions, "patient-1")

	now := time.Now()
	require.NoError(t, sessions.WriteBreakthrough(ctx, id, store.BreakthroughResult{
		HasBreakthrough: true, Label: "first", DataJSON: []byte(`{}`),
	}, now))

	// A second write must not override the frozen has_breakthrough value
	// (spec §9 open question: breakthrough is frozen at first Wave-1 completion).
	require.NoError(t, sessions.WriteBreakthrough(ctx, id, store.BreakthroughResult{
		HasBreakthrough: false, Label: "second", DataJSON: []byte(`{}`),
	}, now.Add(time.Minute)))

	got, err := sessions.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.HasBreakthrough)
	assert.True(t, *got.HasBreakthrough)
	assert.Equal(t, "first", *got.BreakthroughLabel)
}

func TestSessionRepo_StopAndResume(t *testing.T) {
	client := storedbtest.NewClient(t)
	sessions := store.NewSessionRepo(client.DB)
	patients := store.NewPatientRepo(client.DB)
	ctx := context.Background()
	id := newSession(t, patients, sessions, "patient-1")
	require.NoError(t, sessions.SetProcessingStatus(ctx, id, store.ProcessingStopped))
	require.NoError(t, sessions.MarkStopped(ctx, id, time.Now()))

	stopped, err := sessions.FindStoppedSession(ctx, "patient-1")
	require.NoError(t, err)
	assert.Equal(t, id, stopped.ID)

	ids, err := sessions.RequeueStoppedForPatient(ctx, "patient-1")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)

	_, err = sessions.FindStoppedSession(ctx, "patient-1")
	assert.ErrorIs(t, err, store.ErrNotFound, "stop marker must be cleared by resume")
}

func TestSessionRepo_WaveCompletionCounts(t *testing.T) {
	client := storedbtest.NewClient(t)
	sessions := store.NewSessionRepo(client.DB)
	patients := store.NewPatientRepo(client.DB)
	ctx := context.Background()
	id1 := newSession(t, patients, sessions, "patient-1")
	newSession(t, patients, sessions, "patient-1")

	require.NoError(t, sessions.CompleteWave1(ctx, id1, time.Now()))
	require.NoError(t, sessions.WriteProse(ctx, id1, "prose", time.Now()))

	wave1, err := sessions.CountWave1Complete(ctx, "patient-1")
	require.NoError(t, err)
	assert.Equal(t, 1, wave1)

	wave2, err := sessions.CountWave2Complete(ctx, "patient-1")
	require.NoError(t, err)
	assert.Equal(t, 1, wave2)
}
