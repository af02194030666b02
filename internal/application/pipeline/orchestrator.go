package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
	"github.com/sgttomas/chirality-semantic-framework/internal/matrices"
	"github.com/sgttomas/chirality-semantic-framework/internal/ports"
)

// Orchestrator drives the fixed three-stage pipeline for single cells and
// assembles their provenance. The trace sink, graph exporter and event bus
// are best-effort observability sinks: their failures are collected into the
// CellResult, never propagated as cell failures.
type Orchestrator struct {
	resolver ports.Resolver
	tracer   ports.TraceSink
	exporter ports.GraphExporter
	bus      ports.EventBus
	metrics  ports.MetricsCollector
	logger   *zap.Logger

	valleySummary string
}

// NewOrchestrator creates an orchestrator. tracer, exporter, bus and metrics
// may each be nil; the pipeline then runs without that sink.
func NewOrchestrator(
	resolver ports.Resolver,
	tracer ports.TraceSink,
	exporter ports.GraphExporter,
	bus ports.EventBus,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	valleySummary string,
) *Orchestrator {
	if valleySummary == "" {
		valleySummary = matrices.ValleySummary
	}
	return &Orchestrator{
		resolver:      resolver,
		tracer:        tracer,
		exporter:      exporter,
		bus:           bus,
		metrics:       metrics,
		logger:        logger,
		valleySummary: valleySummary,
	}
}

// CellResult carries a completed cell plus any sink errors encountered while
// recording it. Sink errors are typed (TraceWriteError, ExportError) so the
// caller can decide policy; the cell itself is valid regardless.
type CellResult struct {
	Cell        domain.Cell
	Coordinates domain.Coordinates
	SinkErrors  []error
}

// cellRun tracks one cell's forward-only state machine and collected
// provenance while the stages execute.
type cellRun struct {
	runID    string
	kind     domain.CellKind
	coords   domain.Coordinates
	state    domain.CellState
	entries  []domain.StageEntry
	sinkErr  []error
	started  time.Time
	lastMark time.Time
}

var stateOrder = map[domain.CellState]int{
	domain.CellStatePending:    0,
	domain.CellStateStage1Done: 1,
	domain.CellStateStage2Done: 2,
	domain.CellStateComplete:   3,
}

// advance moves the state machine forward. Backward or repeated transitions
// indicate an orchestrator bug and are rejected.
func (cr *cellRun) advance(next domain.CellState) error {
	if stateOrder[next] <= stateOrder[cr.state] {
		return fmt.Errorf("illegal cell state transition %s -> %s", cr.state, next)
	}
	cr.state = next
	return nil
}

// ComputeCellC runs the full three-stage pipeline for C[i,j] = A[i,:] · B[:,j].
//
// Stage 1 (combinatorial) composes the k-products mechanically. Stage 2
// (semantic) resolves each product pair through the resolver. Stage 3
// (lensed) interprets the combined concepts through the cell's ontological
// coordinates.
func (o *Orchestrator) ComputeCellC(ctx context.Context, runID string, i, j int, a, b *domain.Matrix) (CellResult, error) {
	if err := matrices.EnsureDims(a, b, "*"); err != nil {
		return CellResult{}, err
	}
	coords, err := cellCoordinates("C", i, j, a.RowLabels, b.ColLabels)
	if err != nil {
		return CellResult{}, err
	}
	cr := o.newCellRun(runID, domain.CellKindDotProduct, coords)

	// Stage 1: mechanical k-products, no resolver call.
	_, aCols := a.Shape()
	products := make([]string, 0, aCols)
	for k := 0; k < aCols; k++ {
		aCell, ok := a.GetCell(i, k)
		if !ok {
			return CellResult{}, &domain.ValidationError{Msg: fmt.Sprintf("matrix %s has no cell [%d,%d]", a.Name, i, k)}
		}
		bCell, ok := b.GetCell(k, j)
		if !ok {
			return CellResult{}, &domain.ValidationError{Msg: fmt.Sprintf("matrix %s has no cell [%d,%d]", b.Name, k, j)}
		}
		products = append(products, fmt.Sprintf("%s * %s", aCell.Value, bCell.Value))
	}
	o.recordStage(ctx, cr, domain.StageCombinatorial, rowValues(a, i), products, nil)
	if err := cr.advance(domain.CellStateStage1Done); err != nil {
		return CellResult{}, o.fail(ctx, cr, domain.StageCombinatorial, err)
	}

	// Stage 2: resolve each pair into a concept.
	concepts := make([]string, 0, len(products))
	for _, pair := range products {
		sctx := o.semanticContext(matrices.StationRequirements, coords, "*", map[string]string{"pair": pair})
		concept, rerr := o.resolver.ResolvePair(ctx, pair, sctx)
		if rerr != nil {
			return CellResult{}, o.fail(ctx, cr, domain.StageSemantic, rerr)
		}
		concepts = append(concepts, concept)
	}
	o.recordStage(ctx, cr, domain.StageSemantic, products, concepts, nil)
	if err := cr.advance(domain.CellStateStage2Done); err != nil {
		return CellResult{}, o.fail(ctx, cr, domain.StageSemantic, err)
	}

	// Stage 3: ontological lensing over the combined concepts.
	combined := strings.Join(concepts, ", ")
	sctx := o.semanticContext(matrices.StationRequirements, coords, "interpret", map[string]string{"content": combined})
	meaning, rerr := o.resolver.ApplyLens(ctx, combined, sctx)
	if rerr != nil {
		return CellResult{}, o.fail(ctx, cr, domain.StageLensed, rerr)
	}
	o.recordStage(ctx, cr, domain.StageLensed, concepts, []string{meaning}, nil)
	if err := cr.advance(domain.CellStateComplete); err != nil {
		return CellResult{}, o.fail(ctx, cr, domain.StageLensed, err)
	}

	return o.complete(ctx, cr, meaning), nil
}

// ComputeCellF runs the reduced two-stage pipeline for the element-wise
// F[i,j] = J[i,j] ⊙ C[i,j]. Coordinates match, so the combinatorial stage is
// skipped: the element pair is resolved directly, then lensed.
func (o *Orchestrator) ComputeCellF(ctx context.Context, runID string, i, j int, jm, c *domain.Matrix) (CellResult, error) {
	if err := matrices.EnsureDims(jm, c, "⊙"); err != nil {
		return CellResult{}, err
	}
	coords, err := cellCoordinates("F", i, j, jm.RowLabels, jm.ColLabels)
	if err != nil {
		return CellResult{}, err
	}
	cr := o.newCellRun(runID, domain.CellKindElementWise, coords)

	jCell, ok := jm.GetCell(i, j)
	if !ok {
		return CellResult{}, &domain.ValidationError{Msg: fmt.Sprintf("matrix %s has no cell [%d,%d]", jm.Name, i, j)}
	}
	cCell, ok := c.GetCell(i, j)
	if !ok {
		return CellResult{}, &domain.ValidationError{Msg: fmt.Sprintf("matrix %s has no cell [%d,%d]", c.Name, i, j)}
	}

	// Stage 1: direct element-wise semantic resolution.
	pair := fmt.Sprintf("%s * %s", jCell.Value, cCell.Value)
	sctx := o.semanticContext(matrices.StationObjectives, coords, "*", map[string]string{"pair": pair})
	concept, rerr := o.resolver.ResolvePair(ctx, pair, sctx)
	if rerr != nil {
		return CellResult{}, o.fail(ctx, cr, domain.StageSemantic, rerr)
	}
	o.recordStage(ctx, cr, domain.StageSemantic, []string{pair}, []string{concept}, nil)
	if err := cr.advance(domain.CellStateStage1Done); err != nil {
		return CellResult{}, o.fail(ctx, cr, domain.StageSemantic, err)
	}

	// Stage 2: lens for the Objectives station.
	sctx = o.semanticContext(matrices.StationObjectives, coords, "interpret", map[string]string{"content": concept})
	meaning, rerr := o.resolver.ApplyLens(ctx, concept, sctx)
	if rerr != nil {
		return CellResult{}, o.fail(ctx, cr, domain.StageLensed, rerr)
	}
	o.recordStage(ctx, cr, domain.StageLensed, []string{concept}, []string{meaning}, nil)
	if err := cr.advance(domain.CellStateComplete); err != nil {
		return CellResult{}, o.fail(ctx, cr, domain.StageLensed, err)
	}

	return o.complete(ctx, cr, meaning), nil
}

// SynthesizeCellD runs the reduced two-stage pipeline for the synthesis
// D[i,j]: the canonical formula is applied mechanically, then lensed.
func (o *Orchestrator) SynthesizeCellD(ctx context.Context, runID string, i, j int, a, f *domain.Matrix, problem string) (CellResult, error) {
	if err := matrices.EnsureDims(a, f, "+"); err != nil {
		return CellResult{}, err
	}
	if strings.TrimSpace(problem) == "" {
		return CellResult{}, &domain.ValidationError{Msg: "problem statement is required for synthesis"}
	}
	coords, err := cellCoordinates("D", i, j, a.RowLabels, a.ColLabels)
	if err != nil {
		return CellResult{}, err
	}
	cr := o.newCellRun(runID, domain.CellKindSynthesis, coords)

	aCell, ok := a.GetCell(i, j)
	if !ok {
		return CellResult{}, &domain.ValidationError{Msg: fmt.Sprintf("matrix %s has no cell [%d,%d]", a.Name, i, j)}
	}
	fCell, ok := f.GetCell(i, j)
	if !ok {
		return CellResult{}, &domain.ValidationError{Msg: fmt.Sprintf("matrix %s has no cell [%d,%d]", f.Name, i, j)}
	}

	// Stage 1: canonical synthesis formula, no resolver call.
	statement := fmt.Sprintf("%s applied to frame the problem of %s and %s to resolve the problem",
		aCell.Value, problem, fCell.Value)
	o.recordStage(ctx, cr, domain.StageCombinatorial, []string{aCell.Value, fCell.Value, problem}, []string{statement}, nil)
	if err := cr.advance(domain.CellStateStage1Done); err != nil {
		return CellResult{}, o.fail(ctx, cr, domain.StageCombinatorial, err)
	}

	// Stage 2: lens for the Objectives station.
	sctx := o.semanticContext(matrices.StationObjectives, coords, "interpret", map[string]string{
		"content": statement,
		"problem": problem,
	})
	meaning, rerr := o.resolver.ApplyLens(ctx, statement, sctx)
	if rerr != nil {
		return CellResult{}, o.fail(ctx, cr, domain.StageLensed, rerr)
	}
	o.recordStage(ctx, cr, domain.StageLensed, []string{statement}, []string{meaning}, nil)
	if err := cr.advance(domain.CellStateComplete); err != nil {
		return CellResult{}, o.fail(ctx, cr, domain.StageLensed, err)
	}

	return o.complete(ctx, cr, meaning), nil
}

func (o *Orchestrator) newCellRun(runID string, kind domain.CellKind, coords domain.Coordinates) *cellRun {
	now := time.Now()
	return &cellRun{
		runID:    runID,
		kind:     kind,
		coords:   coords,
		state:    domain.CellStatePending,
		started:  now,
		lastMark: now,
	}
}

func (o *Orchestrator) semanticContext(station string, coords domain.Coordinates, op string, terms map[string]string) domain.SemanticContext {
	return domain.SemanticContext{
		Station:       station,
		ValleySummary: o.valleySummary,
		RowLabel:      coords.RowLabel,
		ColLabel:      coords.ColLabel,
		OperationType: op,
		Terms:         terms,
		Matrix:        coords.Matrix,
		Row:           coords.Row,
		Col:           coords.Col,
	}
}

// recordStage appends the entry to the cell's provenance and notifies the
// trace sink and event bus. Sink failures are logged and collected; they do
// not interrupt the pipeline.
func (o *Orchestrator) recordStage(ctx context.Context, cr *cellRun, kind domain.StageKind, inputs, outputs, warnings []string) {
	entry := domain.StageEntry{
		Kind:        kind,
		Timestamp:   time.Now(),
		Inputs:      inputs,
		Outputs:     outputs,
		Coordinates: cr.coords,
		Warnings:    warnings,
	}
	cr.entries = append(cr.entries, entry)

	if o.metrics != nil {
		o.metrics.RecordStageCompleted(string(kind), time.Since(cr.lastMark))
	}
	cr.lastMark = time.Now()
	if o.tracer != nil {
		if err := o.tracer.RecordStage(entry); err != nil {
			var twe *domain.TraceWriteError
			if !errors.As(err, &twe) {
				err = &domain.TraceWriteError{Err: err}
			}
			cr.sinkErr = append(cr.sinkErr, err)
			if o.metrics != nil {
				o.metrics.RecordSinkError("trace")
			}
			o.logger.Warn("trace write failed (continuing)",
				zap.String("run_id", cr.runID),
				zap.String("matrix", cr.coords.Matrix),
				zap.Int("row", cr.coords.Row),
				zap.Int("col", cr.coords.Col),
				zap.String("stage", string(kind)),
				zap.Error(err))
		}
	}
	o.publish(ctx, domain.EventTypeStageCompleted, cr, map[string]interface{}{
		"stage":   string(kind),
		"outputs": outputs,
	})
}

// complete assembles the final cell, exports it and publishes completion.
func (o *Orchestrator) complete(ctx context.Context, cr *cellRun, value string) CellResult {
	cell := domain.Cell{
		Row:        cr.coords.Row,
		Col:        cr.coords.Col,
		Value:      value,
		Provenance: domain.ProvenanceRecord{Stages: cr.entries},
	}

	if o.exporter != nil {
		if err := o.exporter.ExportCell(ctx, cell, cr.coords); err != nil {
			var ee *domain.ExportError
			var ce *domain.ConsistencyError
			if !errors.As(err, &ee) && !errors.As(err, &ce) {
				err = &domain.ExportError{Err: err}
			}
			cr.sinkErr = append(cr.sinkErr, err)
			if o.metrics != nil {
				o.metrics.RecordSinkError("export")
			}
			o.logger.Warn("graph export failed (continuing)",
				zap.String("run_id", cr.runID),
				zap.String("matrix", cr.coords.Matrix),
				zap.Int("row", cr.coords.Row),
				zap.Int("col", cr.coords.Col),
				zap.Error(err))
		}
	}

	if o.metrics != nil {
		o.metrics.RecordCellComputed(cr.coords.Matrix, "completed", time.Since(cr.started))
	}
	o.publish(ctx, domain.EventTypeCellCompleted, cr, map[string]interface{}{
		"value":  value,
		"stages": len(cr.entries),
	})
	o.logger.Debug("cell completed",
		zap.String("run_id", cr.runID),
		zap.String("matrix", cr.coords.Matrix),
		zap.Int("row", cr.coords.Row),
		zap.Int("col", cr.coords.Col),
		zap.Int("stages", len(cr.entries)))

	return CellResult{Cell: cell, Coordinates: cr.coords, SinkErrors: cr.sinkErr}
}

// fail marks the cell terminal and wraps the cause into a CellError carrying
// the partial provenance collected so far.
func (o *Orchestrator) fail(ctx context.Context, cr *cellRun, stage domain.StageKind, cause error) error {
	cr.state = domain.CellStateFailed

	if o.metrics != nil {
		o.metrics.RecordCellComputed(cr.coords.Matrix, "failed", time.Since(cr.started))
	}
	o.publish(ctx, domain.EventTypeCellFailed, cr, map[string]interface{}{
		"stage": string(stage),
		"error": cause.Error(),
	})
	o.logger.Error("cell failed",
		zap.String("run_id", cr.runID),
		zap.String("matrix", cr.coords.Matrix),
		zap.Int("row", cr.coords.Row),
		zap.Int("col", cr.coords.Col),
		zap.String("stage", string(stage)),
		zap.Error(cause))

	return &domain.CellError{
		Matrix:  cr.coords.Matrix,
		Row:     cr.coords.Row,
		Col:     cr.coords.Col,
		Stage:   stage,
		Partial: cr.entries,
		Err:     cause,
	}
}

func (o *Orchestrator) publish(ctx context.Context, eventType domain.EventType, cr *cellRun, data map[string]interface{}) {
	if o.bus == nil {
		return
	}
	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		RunID:     cr.runID,
		Matrix:    cr.coords.Matrix,
		Row:       cr.coords.Row,
		Col:       cr.coords.Col,
		Timestamp: time.Now(),
		Data:      data,
	}
	if err := o.bus.Publish(ctx, "cell.events", event); err != nil {
		o.logger.Warn("failed to publish cell event",
			zap.String("run_id", cr.runID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

func cellCoordinates(matrix string, i, j int, rowLabels, colLabels []string) (domain.Coordinates, error) {
	if i < 0 || i >= len(rowLabels) {
		return domain.Coordinates{}, &domain.ValidationError{
			Msg: fmt.Sprintf("row %d out of range for matrix %s (%d rows)", i, matrix, len(rowLabels)),
		}
	}
	if j < 0 || j >= len(colLabels) {
		return domain.Coordinates{}, &domain.ValidationError{
			Msg: fmt.Sprintf("col %d out of range for matrix %s (%d cols)", j, matrix, len(colLabels)),
		}
	}
	return domain.Coordinates{
		Matrix:   matrix,
		Row:      i,
		Col:      j,
		RowLabel: rowLabels[i],
		ColLabel: colLabels[j],
	}, nil
}

func rowValues(m *domain.Matrix, row int) []string {
	_, cols := m.Shape()
	values := make([]string, 0, cols)
	for k := 0; k < cols; k++ {
		if cell, ok := m.GetCell(row, k); ok {
			values = append(values, cell.Value)
		}
	}
	return values
}
