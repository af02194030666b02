package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
)

func sampleRun(id string) *domain.RunState {
	return &domain.RunState{
		RunID:       id,
		SessionID:   "sess-1",
		Problem:     "building a bridge",
		Status:      domain.RunStatusRunning,
		SubmittedAt: time.Now().UTC().Truncate(time.Second),
		Matrices: map[string]*domain.MatrixState{
			"C": {Name: "C", Status: domain.RunStatusRunning, CellsDone: 3, CellsTotal: 12},
		},
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, sampleRun("run-1")))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "building a bridge", got.Problem)
	assert.Equal(t, 3, got.Matrices["C"].CellsDone)
}

func TestGetReturnsIndependentCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	state := sampleRun("run-1")
	require.NoError(t, store.SaveRun(ctx, state))

	// Mutating the saved-from and loaded states must not leak into the store.
	state.Problem = "mutated after save"
	first, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	first.Matrices["C"].CellsDone = 99

	second, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "building a bridge", second.Problem)
	assert.Equal(t, 3, second.Matrices["C"].CellsDone)
}

func TestGetUnknownRun(t *testing.T) {
	store := NewStore()

	_, err := store.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSaveRequiresRunID(t *testing.T) {
	store := NewStore()

	require.Error(t, store.SaveRun(context.Background(), nil))
	require.Error(t, store.SaveRun(context.Background(), &domain.RunState{}))
}

func TestListAndDelete(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, sampleRun("run-1")))
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-2")))

	ids, err := store.ListRuns(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"run-1", "run-2"}, ids)

	require.NoError(t, store.DeleteRun(ctx, "run-1"))
	ids, err = store.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-2"}, ids)

	// Deleting an absent run is a no-op.
	assert.NoError(t, store.DeleteRun(ctx, "run-1"))
}
