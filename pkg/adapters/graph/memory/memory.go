// Package memory provides an in-memory graph exporter. It mirrors the Neo4j
// exporter's merge semantics so idempotence can be asserted without a
// database.
package memory

import (
	"context"
	"sync"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
	"github.com/sgttomas/chirality-semantic-framework/internal/matrices"
	"github.com/sgttomas/chirality-semantic-framework/pkg/adapters/graph"
)

// MatrixNode is a stored Matrix node.
type MatrixNode struct {
	Name    string
	Station string
}

// CellNode is a stored Cell node.
type CellNode struct {
	ID       string
	Matrix   string
	Row      int
	Col      int
	Value    string
	RowLabel string
	ColLabel string
}

// StageNode is a stored Stage node.
type StageNode struct {
	ID     string
	CellID string
	Label  string
	Props  map[string]any
}

// Exporter keeps the exported graph in maps keyed by node identity. Merging
// by key is the same idempotence contract the Neo4j exporter provides.
type Exporter struct {
	mu       sync.Mutex
	matrices map[string]*MatrixNode
	cells    map[string]*CellNode
	stages   map[string]*StageNode
	exports  int
}

// New creates an empty in-memory exporter.
func New() *Exporter {
	return &Exporter{
		matrices: make(map[string]*MatrixNode),
		cells:    make(map[string]*CellNode),
		stages:   make(map[string]*StageNode),
	}
}

// ExportCell merges the cell and its provenance into the graph.
func (e *Exporter) ExportCell(_ context.Context, cell domain.Cell, coords domain.Coordinates) error {
	if err := graph.ValidateCell(cell, coords); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.matrices[coords.Matrix] = &MatrixNode{
		Name:    coords.Matrix,
		Station: matrices.StationFor(coords.Matrix),
	}

	cellID := graph.CellID(coords)
	e.cells[cellID] = &CellNode{
		ID:       cellID,
		Matrix:   coords.Matrix,
		Row:      cell.Row,
		Col:      cell.Col,
		Value:    cell.Value,
		RowLabel: coords.RowLabel,
		ColLabel: coords.ColLabel,
	}

	for _, stage := range cell.Provenance.Stages {
		stageID := graph.StageID(coords, stage.Kind)
		e.stages[stageID] = &StageNode{
			ID:     stageID,
			CellID: cellID,
			Label:  graph.StageLabel(stage.Kind),
			Props:  graph.StagePayload(stage),
		}
	}

	e.exports++
	return nil
}

// Close is a no-op.
func (e *Exporter) Close(context.Context) error { return nil }

// Counts returns (matrices, cells, stages) node counts.
func (e *Exporter) Counts() (int, int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.matrices), len(e.cells), len(e.stages)
}

// Exports returns how many ExportCell calls succeeded.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}

// Cell returns the stored cell node by id.
func (e *Exporter) Cell(id string) (*CellNode, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.cells[id]
	return c, ok
}

// StagesFor returns the stage nodes attached to a cell.
func (e *Exporter) StagesFor(cellID string) []*StageNode {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*StageNode
	for _, s := range e.stages {
		if s.CellID == cellID {
			out = append(out, s)
		}
	}
	return out
}
