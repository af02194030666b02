package ports

import (
	"context"
	"time"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
)

// Resolver is the semantic-resolution boundary consumed by the pipeline.
// Implementations: live Anthropic client, deterministic echo resolver.
type Resolver interface {
	// ResolvePair resolves a word pair such as "Values * Necessary" into a
	// concept. Exactly one underlying call per invocation; retry policy, if
	// any, lives inside the implementation.
	ResolvePair(ctx context.Context, pair string, sctx domain.SemanticContext) (string, error)

	// ApplyLens interprets content through the ontological lens of the
	// context's row/column coordinates.
	ApplyLens(ctx context.Context, content string, sctx domain.SemanticContext) (string, error)
}

// TraceSink receives one StageEntry per completed pipeline stage. Safe for
// concurrent use by many cell computations.
type TraceSink interface {
	RecordStage(entry domain.StageEntry) error
	Close() error
}

// GraphExporter projects completed cells into a graph store. ExportCell is
// idempotent: re-exporting the same cell leaves the graph unchanged.
type GraphExporter interface {
	ExportCell(ctx context.Context, cell domain.Cell, coords domain.Coordinates) error
	Close(ctx context.Context) error
}

// EventHandler processes a single event.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus carries pipeline lifecycle events between components.
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// RunStore persists run state.
type RunStore interface {
	SaveRun(ctx context.Context, state *domain.RunState) error
	GetRun(ctx context.Context, runID string) (*domain.RunState, error)
	ListRuns(ctx context.Context) ([]string, error)
	DeleteRun(ctx context.Context, runID string) error
}

// MetricsCollector records operational metrics. Callers tolerate a nil
// collector so tests can run without one.
type MetricsCollector interface {
	RecordCellComputed(matrix, status string, duration time.Duration)
	RecordStageCompleted(kind string, duration time.Duration)
	RecordResolverCall(model, operation string, duration time.Duration)
	RecordTraceWrite()
	RecordTraceDedupeHit()
	RecordTraceRotation()
	RecordExport(status string)
	RecordSinkError(sink string)
	RecordWorkerPoolStatus(idle, busy, stopped int)
	SetActiveRuns(count int)
}
