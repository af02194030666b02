package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sgttomas/chirality-semantic-framework/internal/application/workers"
	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
	"github.com/sgttomas/chirality-semantic-framework/internal/ports"
	eventsmem "github.com/sgttomas/chirality-semantic-framework/pkg/adapters/events/memory"
	"github.com/sgttomas/chirality-semantic-framework/pkg/adapters/resolver/echo"
	runstoremem "github.com/sgttomas/chirality-semantic-framework/pkg/adapters/runstore/memory"
)

// blockingResolver parks every resolution until its context is cancelled.
type blockingResolver struct{}

func (blockingResolver) ResolvePair(ctx context.Context, _ string, _ domain.SemanticContext) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingResolver) ApplyLens(ctx context.Context, _ string, _ domain.SemanticContext) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// cellFailingResolver fails resolution for exactly one cell and echoes the
// rest.
type cellFailingResolver struct {
	echo     echo.Resolver
	matrix   string
	row, col int
}

func (r *cellFailingResolver) ResolvePair(ctx context.Context, pair string, sctx domain.SemanticContext) (string, error) {
	if sctx.Matrix == r.matrix && sctx.Row == r.row && sctx.Col == r.col {
		return "", &domain.TransportError{Operation: "resolve", Err: errors.New("connection reset")}
	}
	return r.echo.ResolvePair(ctx, pair, sctx)
}

func (r *cellFailingResolver) ApplyLens(ctx context.Context, content string, sctx domain.SemanticContext) (string, error) {
	return r.echo.ApplyLens(ctx, content, sctx)
}

type runnerFixture struct {
	runner *Runner
	store  *runstoremem.Store
	pool   *workers.Pool
}

func newRunnerFixture(t *testing.T, resolver ports.Resolver, tracer ports.TraceSink, opts RunnerOptions) *runnerFixture {
	t.Helper()

	logger := zap.NewNop()
	bus := eventsmem.NewBus()
	store := runstoremem.NewStore()

	pool := workers.NewPool(4, 64, nil, logger, time.Minute)
	require.NoError(t, pool.Start())

	orch := NewOrchestrator(resolver, tracer, nil, bus, nil, logger, "")
	if opts.RunTimeout == 0 {
		opts.RunTimeout = time.Minute
	}
	if opts.CellTimeout == 0 {
		opts.CellTimeout = 30 * time.Second
	}
	runner := NewRunner(orch, pool, store, bus, nil, logger, opts)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Shutdown(ctx)
		_ = pool.Shutdown(ctx)
		_ = bus.Close()
	})

	return &runnerFixture{runner: runner, store: store, pool: pool}
}

func (f *runnerFixture) waitTerminal(t *testing.T, runID string) *domain.RunState {
	t.Helper()
	var final *domain.RunState
	require.Eventually(t, func() bool {
		state, err := f.store.GetRun(context.Background(), runID)
		if err != nil || !state.Status.Terminal() {
			return false
		}
		final = state
		return true
	}, 30*time.Second, 20*time.Millisecond)
	return final
}

func TestRunner_FullValleyRun(t *testing.T) {
	f := newRunnerFixture(t, echo.New(), nil, RunnerOptions{})

	runID, err := f.runner.SubmitRun(context.Background(), "building a bridge")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	state := f.waitTerminal(t, runID)
	require.Equal(t, domain.RunStatusCompleted, state.Status, "run error: %s", state.Error)
	require.NotNil(t, state.StartedAt)
	require.NotNil(t, state.CompletedAt)

	for _, name := range []string{"C", "F", "D"} {
		ms := state.Matrices[name]
		require.NotNil(t, ms, "matrix %s missing", name)
		assert.Equal(t, domain.RunStatusCompleted, ms.Status)
		assert.Equal(t, 12, ms.CellsDone)
		require.NotNil(t, ms.Result, "matrix %s has no result", name)

		rows, cols := ms.Result.Shape()
		require.Equal(t, 3, rows)
		require.Equal(t, 4, cols)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				cell, ok := ms.Result.GetCell(i, j)
				require.True(t, ok)
				assert.NotEmpty(t, cell.Value, "%s[%d,%d] is empty", name, i, j)
			}
		}
	}

	// Stage plans differ per matrix kind.
	cCell, _ := state.Matrices["C"].Result.GetCell(0, 0)
	assert.Len(t, cCell.Provenance.Stages, 3)
	fCell, _ := state.Matrices["F"].Result.GetCell(0, 0)
	assert.Len(t, fCell.Provenance.Stages, 2)
	dCell, _ := state.Matrices["D"].Result.GetCell(0, 0)
	assert.Len(t, dCell.Provenance.Stages, 2)
	assert.Contains(t, dCell.Provenance.Stages[0].Outputs[0], "building a bridge")
}

func TestRunner_CellFailureDoesNotStopSiblingCells(t *testing.T) {
	tracer := &captureTracer{}
	resolver := &cellFailingResolver{matrix: "C", row: 0, col: 0}
	f := newRunnerFixture(t, resolver, tracer, RunnerOptions{})

	runID, err := f.runner.SubmitRun(context.Background(), "building a bridge")
	require.NoError(t, err)

	state := f.waitTerminal(t, runID)
	require.Equal(t, domain.RunStatusFailed, state.Status)
	require.Equal(t, domain.RunStatusFailed, state.Matrices["C"].Status)

	// The other eleven cells run to completion through their lensed stage.
	lensed := map[[2]int]bool{}
	for _, entry := range tracer.snapshot() {
		if entry.Coordinates.Matrix == "C" && entry.Kind == domain.StageLensed {
			lensed[[2]int{entry.Coordinates.Row, entry.Coordinates.Col}] = true
		}
	}
	assert.False(t, lensed[[2]int{0, 0}])
	assert.Len(t, lensed, 11)

	// Progress counts only completed cells.
	assert.Equal(t, 11, state.Matrices["C"].CellsDone)
}

func TestRunner_RunUnblocksWhenPoolDropsQueuedCells(t *testing.T) {
	f := newRunnerFixture(t, blockingResolver{}, nil, RunnerOptions{})

	runID, err := f.runner.SubmitRun(context.Background(), "building a bridge")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		state, err := f.store.GetRun(context.Background(), runID)
		return err == nil && state.Status == domain.RunStatusRunning
	}, 10*time.Second, 10*time.Millisecond)

	// All four workers are parked on the resolver; shutting the pool down
	// drops the queued cells, which then never report an outcome.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = f.pool.Shutdown(shutdownCtx)

	require.NoError(t, f.runner.CancelRun(context.Background(), runID))

	state := f.waitTerminal(t, runID)
	assert.Equal(t, domain.RunStatusCancelled, state.Status)
}

func TestRunner_RejectsEmptyProblem(t *testing.T) {
	f := newRunnerFixture(t, echo.New(), nil, RunnerOptions{})

	_, err := f.runner.SubmitRun(context.Background(), "")
	require.Error(t, err)
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestRunner_StrictSinksPromoteTraceFailures(t *testing.T) {
	tracer := &captureTracer{fail: true}
	f := newRunnerFixture(t, echo.New(), tracer, RunnerOptions{StrictSinks: true})

	runID, err := f.runner.SubmitRun(context.Background(), "building a bridge")
	require.NoError(t, err)

	state := f.waitTerminal(t, runID)
	assert.Equal(t, domain.RunStatusFailed, state.Status)
	assert.Contains(t, state.Error, "strict sink policy")
	assert.Equal(t, domain.RunStatusFailed, state.Matrices["C"].Status)
}

func TestRunner_BestEffortSinksByDefault(t *testing.T) {
	tracer := &captureTracer{fail: true}
	f := newRunnerFixture(t, echo.New(), tracer, RunnerOptions{})

	runID, err := f.runner.SubmitRun(context.Background(), "building a bridge")
	require.NoError(t, err)

	state := f.waitTerminal(t, runID)
	assert.Equal(t, domain.RunStatusCompleted, state.Status, "run error: %s", state.Error)
}

func TestRunner_CancelRun(t *testing.T) {
	f := newRunnerFixture(t, blockingResolver{}, nil, RunnerOptions{})

	runID, err := f.runner.SubmitRun(context.Background(), "building a bridge")
	require.NoError(t, err)

	// Wait until the run is actually executing before cancelling.
	require.Eventually(t, func() bool {
		state, err := f.store.GetRun(context.Background(), runID)
		return err == nil && state.Status == domain.RunStatusRunning
	}, 10*time.Second, 10*time.Millisecond)

	require.NoError(t, f.runner.CancelRun(context.Background(), runID))

	state := f.waitTerminal(t, runID)
	assert.Equal(t, domain.RunStatusCancelled, state.Status)
}

func TestRunner_CancelUnknownRun(t *testing.T) {
	f := newRunnerFixture(t, echo.New(), nil, RunnerOptions{})

	err := f.runner.CancelRun(context.Background(), "no-such-run")
	require.Error(t, err)
}

func TestRunner_ListRuns(t *testing.T) {
	f := newRunnerFixture(t, echo.New(), nil, RunnerOptions{})

	first, err := f.runner.SubmitRun(context.Background(), "first problem")
	require.NoError(t, err)
	second, err := f.runner.SubmitRun(context.Background(), "second problem")
	require.NoError(t, err)

	ids, err := f.runner.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Contains(t, ids, first)
	assert.Contains(t, ids, second)

	f.waitTerminal(t, first)
	f.waitTerminal(t, second)
}
