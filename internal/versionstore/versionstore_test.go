package versionstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionwave/orchestrator/internal/storedb/storedbtest"
	"github.com/sessionwave/orchestrator/internal/store"
	"github.com/sessionwave/orchestrator/internal/versionstore"
)

func TestStore_WriteJourney_IncrementsVersionAndUpsertsLatest(t *testing.T) {
	client := storedbtest.NewClient(t)
	patients := store.NewPatientRepo(client.DB)
	vs := versionstore.New(client.DB)
	ctx := context.Background()
	require.NoError(t, patients.EnsureExists(ctx, "patient-1"))

	v1, err := vs.WriteJourney(ctx, versionstore.WriteInput{
		PatientID: "patient-1", DataJSON: []byte(`{"v":1}`),
		SessionsAnalyzed: 3, TotalSessions: 3, ModelUsed: "precision-model", DurationMs: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v1)

	v2, err := vs.WriteJourney(ctx, versionstore.WriteInput{
		PatientID: "patient-1", DataJSON: []byte(`{"v":2}`),
		SessionsAnalyzed: 4, TotalSessions: 4, ModelUsed: "precision-model", DurationMs: 120,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v2, "version must increment per write, independent of bridge versions")

	latest, err := vs.GetJourneyLatest(ctx, "patient-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(latest.DataJSON))
}

func TestStore_JourneyAndBridgeVersionsAreIndependent(t *testing.T) {
	client := storedbtest.NewClient(t)
	patients := store.NewPatientRepo(client.DB)
	vs := versionstore.New(client.DB)
	ctx := context.Background()
	require.NoError(t, patients.EnsureExists(ctx, "patient-1"))

	_, err := vs.WriteJourney(ctx, versionstore.WriteInput{
		PatientID: "patient-1", DataJSON: []byte(`{}`), ModelUsed: "m",
	})
	require.NoError(t, err)

	bv1, err := vs.WriteBridge(ctx, versionstore.WriteInput{
		PatientID: "patient-1", DataJSON: []byte(`{}`), ModelUsed: "m",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, bv1, "journey_versions and bridge_versions number independently")
}

func TestStore_GetJourneyLatest_NotFound(t *testing.T) {
	client := storedbtest.NewClient(t)
	vs := versionstore.New(client.DB)

	_, err := vs.GetJourneyLatest(context.Background(), "no-such-patient")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
