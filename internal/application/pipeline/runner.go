package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sgttomas/chirality-semantic-framework/internal/application/workers"
	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
	"github.com/sgttomas/chirality-semantic-framework/internal/matrices"
	"github.com/sgttomas/chirality-semantic-framework/internal/ports"
)

// Runner sequences valley runs: C = A · B at Requirements, F = J ⊙ C and
// D = synth(A, F, problem) at Objectives. Matrices are computed strictly in
// that order because each formula consumes the previous matrix's full
// output; cells within one matrix are computed concurrently on the pool.
type Runner struct {
	orch    *Orchestrator
	pool    *workers.Pool
	store   ports.RunStore
	bus     ports.EventBus
	metrics ports.MetricsCollector
	logger  *zap.Logger

	sessionID   string
	strictSinks bool
	runTimeout  time.Duration
	cellTimeout time.Duration

	// Track active runs
	runs       sync.Map // map[string]*runContext
	activeRuns int
	activeMu   sync.Mutex
}

// runContext holds cancellation state for a single run.
type runContext struct {
	runID      string
	cancelFunc context.CancelFunc
	mu         sync.Mutex
	cancelled  bool
}

// RunnerOptions configures run-level policy.
type RunnerOptions struct {
	SessionID string
	// StrictSinks promotes trace/export failures to run failures. Off by
	// default: sinks are best-effort observability.
	StrictSinks bool
	RunTimeout  time.Duration
	CellTimeout time.Duration
}

// NewRunner creates a runner on top of an orchestrator and worker pool.
func NewRunner(
	orch *Orchestrator,
	pool *workers.Pool,
	store ports.RunStore,
	bus ports.EventBus,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	opts RunnerOptions,
) *Runner {
	if opts.SessionID == "" {
		opts.SessionID = uuid.New().String()
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = time.Hour
	}
	if opts.CellTimeout <= 0 {
		opts.CellTimeout = 5 * time.Minute
	}
	return &Runner{
		orch:        orch,
		pool:        pool,
		store:       store,
		bus:         bus,
		metrics:     metrics,
		logger:      logger,
		sessionID:   opts.SessionID,
		strictSinks: opts.StrictSinks,
		runTimeout:  opts.RunTimeout,
		cellTimeout: opts.CellTimeout,
	}
}

// SubmitRun validates the canonical inputs and starts a valley run for the
// given problem statement. It returns immediately with the run id.
func (r *Runner) SubmitRun(ctx context.Context, problem string) (string, error) {
	for _, name := range []string{"A", "B", "J"} {
		m, _ := matrices.Canonical(name)
		if err := matrices.EnsureWellFormed(m); err != nil {
			r.logger.Error("canonical matrix validation failed",
				zap.String("matrix", name),
				zap.Error(err))
			return "", fmt.Errorf("validation failed: %w", err)
		}
	}
	if problem == "" {
		return "", &domain.ValidationError{Msg: "problem statement is required"}
	}

	runID := uuid.New().String()
	now := time.Now()

	state := &domain.RunState{
		RunID:       runID,
		SessionID:   r.sessionID,
		Problem:     problem,
		Status:      domain.RunStatusSubmitted,
		SubmittedAt: now,
		Matrices: map[string]*domain.MatrixState{
			"C": {Name: "C", Status: domain.RunStatusSubmitted, CellsTotal: 12},
			"F": {Name: "F", Status: domain.RunStatusSubmitted, CellsTotal: 12},
			"D": {Name: "D", Status: domain.RunStatusSubmitted, CellsTotal: 12},
		},
	}

	if err := r.store.SaveRun(ctx, state); err != nil {
		r.logger.Error("failed to save initial run state",
			zap.String("run_id", runID),
			zap.Error(err))
		return "", fmt.Errorf("failed to save run state: %w", err)
	}

	r.publishRun(ctx, runID, domain.EventTypeRunSubmitted, map[string]interface{}{
		"problem": problem,
	})

	runCtx, cancel := context.WithTimeout(context.Background(), r.runTimeout)
	r.runs.Store(runID, &runContext{runID: runID, cancelFunc: cancel})
	r.trackActive(+1)

	r.logger.Info("run submitted",
		zap.String("run_id", runID),
		zap.String("session_id", r.sessionID),
		zap.String("problem", problem))

	go r.execute(runCtx, runID, problem)

	return runID, nil
}

// GetRun retrieves the current state of a run.
func (r *Runner) GetRun(ctx context.Context, runID string) (*domain.RunState, error) {
	return r.store.GetRun(ctx, runID)
}

// ListRuns returns the ids of all known runs.
func (r *Runner) ListRuns(ctx context.Context) ([]string, error) {
	return r.store.ListRuns(ctx)
}

// CancelRun cancels a running valley run. Cancellation stops outstanding
// cell computations through their contexts; the trace sink is never
// interrupted mid-write because its lock is not held across blocking calls.
func (r *Runner) CancelRun(ctx context.Context, runID string) error {
	val, ok := r.runs.Load(runID)
	if !ok {
		return fmt.Errorf("run not found or already finished: %s", runID)
	}
	rc := val.(*runContext)

	rc.mu.Lock()
	if rc.cancelled {
		rc.mu.Unlock()
		return fmt.Errorf("run already cancelled: %s", runID)
	}
	rc.cancelled = true
	rc.mu.Unlock()

	rc.cancelFunc()
	r.logger.Info("run cancellation requested", zap.String("run_id", runID))
	return nil
}

// Shutdown cancels all active runs.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.logger.Info("shutting down runner")

	r.runs.Range(func(key, value interface{}) bool {
		rc := value.(*runContext)
		rc.mu.Lock()
		rc.cancelled = true
		rc.mu.Unlock()
		rc.cancelFunc()
		return true
	})

	r.logger.Info("runner shut down complete")
	return nil
}

// execute drives one run through the three stations.
func (r *Runner) execute(ctx context.Context, runID, problem string) {
	defer func() {
		if val, ok := r.runs.LoadAndDelete(runID); ok {
			val.(*runContext).cancelFunc()
		}
		r.trackActive(-1)
	}()

	r.setRunStatus(ctx, runID, domain.RunStatusRunning, "")

	a, b, j := matrices.A(), matrices.B(), matrices.J()

	c, err := r.computeMatrix(ctx, runID, matrixSpec{
		name:      "C",
		station:   matrices.StationRequirements,
		rowLabels: a.RowLabels,
		colLabels: b.ColLabels,
		compute: func(cellCtx context.Context, i, jj int) (CellResult, error) {
			return r.orch.ComputeCellC(cellCtx, runID, i, jj, a, b)
		},
	})
	if err != nil {
		r.finish(ctx, runID, err)
		return
	}

	f, err := r.computeMatrix(ctx, runID, matrixSpec{
		name:      "F",
		station:   matrices.StationObjectives,
		rowLabels: j.RowLabels,
		colLabels: j.ColLabels,
		compute: func(cellCtx context.Context, i, jj int) (CellResult, error) {
			return r.orch.ComputeCellF(cellCtx, runID, i, jj, j, c)
		},
	})
	if err != nil {
		r.finish(ctx, runID, err)
		return
	}

	_, err = r.computeMatrix(ctx, runID, matrixSpec{
		name:      "D",
		station:   matrices.StationObjectives,
		rowLabels: a.RowLabels,
		colLabels: a.ColLabels,
		compute: func(cellCtx context.Context, i, jj int) (CellResult, error) {
			return r.orch.SynthesizeCellD(cellCtx, runID, i, jj, a, f, problem)
		},
	})
	r.finish(ctx, runID, err)
}

// matrixSpec describes one matrix computation pass.
type matrixSpec struct {
	name      string
	station   string
	rowLabels []string
	colLabels []string
	compute   func(ctx context.Context, i, j int) (CellResult, error)
}

type cellOutcome struct {
	row, col int
	result   CellResult
	err      error
}

// computeMatrix fans all cells of one matrix out on the worker pool and
// collects them. Cell failures do not stop sibling cells; the matrix fails
// after the full pass if any cell failed.
func (r *Runner) computeMatrix(ctx context.Context, runID string, spec matrixSpec) (*domain.Matrix, error) {
	rows, cols := len(spec.rowLabels), len(spec.colLabels)
	total := rows * cols
	outcomes := make(chan cellOutcome, total)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			i, j := i, j
			task := func(context.Context) {
				cellCtx, cancel := context.WithTimeout(ctx, r.cellTimeout)
				defer cancel()
				res, err := spec.compute(cellCtx, i, j)
				outcomes <- cellOutcome{row: i, col: j, result: res, err: err}
			}
			if err := r.pool.Submit(ctx, task); err != nil {
				return nil, fmt.Errorf("failed to submit cell %s[%d,%d]: %w", spec.name, i, j, err)
			}
		}
	}

	cells := make([][]domain.Cell, rows)
	for i := range cells {
		cells[i] = make([]domain.Cell, cols)
	}

	var firstErr error
	collected, succeeded := 0, 0
	for collected < total {
		var out cellOutcome
		select {
		case out = <-outcomes:
		case <-ctx.Done():
			// Tasks dropped by a shutting-down pool never report back, so
			// the run context is the only way out of the collect loop.
			r.setMatrixStatus(context.WithoutCancel(ctx), runID, spec.name, domain.RunStatusFailed, ctx.Err().Error(), nil)
			return nil, fmt.Errorf("matrix %s: %w", spec.name, ctx.Err())
		}
		collected++

		if out.err == nil && r.strictSinks && len(out.result.SinkErrors) > 0 {
			out.err = fmt.Errorf("strict sink policy: %w", out.result.SinkErrors[0])
		}
		if out.err != nil {
			if firstErr == nil {
				firstErr = out.err
			}
			continue
		}
		cells[out.row][out.col] = out.result.Cell
		succeeded++
		r.updateMatrixProgress(ctx, runID, spec.name, succeeded)
	}

	if firstErr != nil {
		r.setMatrixStatus(ctx, runID, spec.name, domain.RunStatusFailed, firstErr.Error(), nil)
		return nil, fmt.Errorf("matrix %s: %w", spec.name, firstErr)
	}

	result := &domain.Matrix{
		Name:      spec.name,
		Station:   spec.station,
		RowLabels: spec.rowLabels,
		ColLabels: spec.colLabels,
		Cells:     cells,
	}
	r.setMatrixStatus(ctx, runID, spec.name, domain.RunStatusCompleted, "", result)

	r.publishRun(ctx, runID, domain.EventTypeMatrixCompleted, map[string]interface{}{
		"matrix":  spec.name,
		"station": spec.station,
	})
	r.logger.Info("matrix completed",
		zap.String("run_id", runID),
		zap.String("matrix", spec.name),
		zap.Int("cells", total))

	return result, nil
}

// finish records the terminal state of a run.
func (r *Runner) finish(ctx context.Context, runID string, cause error) {
	// State updates must outlive the (possibly expired) run context.
	storeCtx := context.WithoutCancel(ctx)

	switch {
	case cause == nil:
		r.setRunStatus(storeCtx, runID, domain.RunStatusCompleted, "")
		r.publishRun(storeCtx, runID, domain.EventTypeRunCompleted, nil)
		r.logger.Info("run completed", zap.String("run_id", runID))

	case r.wasCancelled(runID) || errors.Is(cause, context.Canceled):
		r.setRunStatus(storeCtx, runID, domain.RunStatusCancelled, cause.Error())
		r.publishRun(storeCtx, runID, domain.EventTypeRunCancelled, nil)
		r.logger.Info("run cancelled", zap.String("run_id", runID))

	default:
		msg := cause.Error()
		if errors.Is(cause, context.DeadlineExceeded) {
			msg = "run timeout: " + msg
		}
		r.setRunStatus(storeCtx, runID, domain.RunStatusFailed, msg)
		r.publishRun(storeCtx, runID, domain.EventTypeRunFailed, map[string]interface{}{
			"error": msg,
		})
		r.logger.Error("run failed", zap.String("run_id", runID), zap.Error(cause))
	}
}

func (r *Runner) wasCancelled(runID string) bool {
	val, ok := r.runs.Load(runID)
	if !ok {
		return false
	}
	rc := val.(*runContext)
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.cancelled
}

func (r *Runner) setRunStatus(ctx context.Context, runID string, status domain.RunStatus, errMsg string) {
	state, err := r.store.GetRun(ctx, runID)
	if err != nil {
		r.logger.Error("failed to load run state",
			zap.String("run_id", runID),
			zap.Error(err))
		return
	}
	now := time.Now()
	state.Status = status
	state.Error = errMsg
	if status == domain.RunStatusRunning && state.StartedAt == nil {
		state.StartedAt = &now
	}
	if status.Terminal() {
		state.CompletedAt = &now
	}
	if err := r.store.SaveRun(ctx, state); err != nil {
		r.logger.Error("failed to save run state",
			zap.String("run_id", runID),
			zap.Error(err))
	}
}

func (r *Runner) setMatrixStatus(ctx context.Context, runID, matrix string, status domain.RunStatus, errMsg string, result *domain.Matrix) {
	state, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return
	}
	ms, ok := state.Matrices[matrix]
	if !ok {
		return
	}
	ms.Status = status
	ms.Error = errMsg
	if result != nil {
		ms.Result = result
		ms.CellsDone = ms.CellsTotal
	}
	if err := r.store.SaveRun(ctx, state); err != nil {
		r.logger.Error("failed to save matrix state",
			zap.String("run_id", runID),
			zap.String("matrix", matrix),
			zap.Error(err))
	}
}

func (r *Runner) updateMatrixProgress(ctx context.Context, runID, matrix string, done int) {
	state, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return
	}
	ms, ok := state.Matrices[matrix]
	if !ok {
		return
	}
	ms.Status = domain.RunStatusRunning
	if done > ms.CellsDone {
		ms.CellsDone = done
	}
	_ = r.store.SaveRun(ctx, state)
}

func (r *Runner) publishRun(ctx context.Context, runID string, eventType domain.EventType, data map[string]interface{}) {
	if r.bus == nil {
		return
	}
	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}
	if err := r.bus.Publish(ctx, "run.events", event); err != nil {
		r.logger.Warn("failed to publish run event",
			zap.String("run_id", runID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

func (r *Runner) trackActive(delta int) {
	r.activeMu.Lock()
	r.activeRuns += delta
	count := r.activeRuns
	r.activeMu.Unlock()
	if r.metrics != nil {
		r.metrics.SetActiveRuns(count)
	}
}
