package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// StageKind identifies one step of the fixed interpretation pipeline.
type StageKind string

const (
	// StageCombinatorial is mechanical composition: k-products for
	// dot-product cells, the canonical formula for synthesis cells.
	StageCombinatorial StageKind = "combinatorial"
	// StageSemantic resolves word pairs into concepts through the resolver.
	StageSemantic StageKind = "semantic"
	// StageLensed interprets content through the row/column ontological lens.
	StageLensed StageKind = "lensed"
)

// CellKind determines which stage plan a cell runs through.
type CellKind string

const (
	CellKindDotProduct  CellKind = "dot_product"  // C = A · B
	CellKindElementWise CellKind = "element_wise" // F = J ⊙ C
	CellKindSynthesis   CellKind = "synthesis"    // D = synth(A, F, problem)
)

// StagePlan returns the canonical stage sequence for a cell kind.
func (k CellKind) StagePlan() []StageKind {
	switch k {
	case CellKindDotProduct:
		return []StageKind{StageCombinatorial, StageSemantic, StageLensed}
	case CellKindElementWise:
		return []StageKind{StageSemantic, StageLensed}
	case CellKindSynthesis:
		return []StageKind{StageCombinatorial, StageLensed}
	default:
		return nil
	}
}

// CellState tracks the forward-only per-cell state machine.
type CellState string

const (
	CellStatePending    CellState = "pending"
	CellStateStage1Done CellState = "stage1_done"
	CellStateStage2Done CellState = "stage2_done"
	CellStateComplete   CellState = "complete"
	CellStateFailed     CellState = "failed"
)

// Coordinates locates a cell inside its matrix together with the
// ontological labels of its row and column.
type Coordinates struct {
	Matrix   string `json:"matrix"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	RowLabel string `json:"row_label"`
	ColLabel string `json:"col_label"`
}

// StageEntry records one executed pipeline stage. Immutable once written.
type StageEntry struct {
	Kind        StageKind   `json:"stage_kind"`
	Timestamp   time.Time   `json:"timestamp"`
	Inputs      []string    `json:"inputs"`
	Outputs     []string    `json:"outputs"`
	Coordinates Coordinates `json:"coordinates"`
	Warnings    []string    `json:"warnings"`
}

// ContentHash returns a stable digest of the entry's content. The hash
// covers kind, coordinates, inputs and outputs; timestamps are not part of
// entry identity, so a re-emitted stage with a fresh clock still collapses
// to the same hash.
func (e StageEntry) ContentHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d|", e.Kind, e.Coordinates.Matrix, e.Coordinates.Row, e.Coordinates.Col)
	for _, s := range e.Inputs {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	for _, s := range e.Outputs {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ProvenanceRecord is the ordered list of stages executed for one cell.
// Stages appear in strict pipeline order; no stage is skipped or repeated.
type ProvenanceRecord struct {
	Stages []StageEntry `json:"stages"`
}

// Cell is the fundamental semantic unit: one coordinate's worth of computed
// output plus the complete record of how it was produced.
type Cell struct {
	Row        int              `json:"row"`
	Col        int              `json:"col"`
	Value      string           `json:"value"`
	Provenance ProvenanceRecord `json:"provenance"`
}

// Matrix is a 2D semantic matrix with fixed ontological axes.
type Matrix struct {
	Name      string   `json:"name"`
	Station   string   `json:"station"`
	RowLabels []string `json:"row_labels"`
	ColLabels []string `json:"col_labels"`
	Cells     [][]Cell `json:"cells"`
}

// Shape returns (rows, cols) as declared by the label axes.
func (m *Matrix) Shape() (int, int) {
	return len(m.RowLabels), len(m.ColLabels)
}

// GetCell returns the cell at (row, col), or false when out of bounds.
func (m *Matrix) GetCell(row, col int) (*Cell, bool) {
	if row < 0 || row >= len(m.Cells) {
		return nil, false
	}
	if col < 0 || col >= len(m.Cells[row]) {
		return nil, false
	}
	return &m.Cells[row][col], true
}

// SemanticContext carries valley position, ontological coordinates and
// operation terms for one resolver call. It is provenance material for the
// resolver's prompt assembly, not behaviorally load-bearing to the pipeline.
type SemanticContext struct {
	Station       string            `json:"station"`
	ValleySummary string            `json:"valley_summary"`
	RowLabel      string            `json:"row_label"`
	ColLabel      string            `json:"col_label"`
	OperationType string            `json:"operation_type"`
	Terms         map[string]string `json:"terms"`
	Matrix        string            `json:"matrix"`
	Row           int               `json:"row"`
	Col           int               `json:"col"`
}

// TraceRecord is the on-disk unit written by the trace sink, one per
// StageEntry, tagged with a monotonic sequence and the session identifier.
type TraceRecord struct {
	Sequence  uint64    `json:"sequence"`
	SessionID string    `json:"session_id"`
	Matrix    string    `json:"matrix"`
	Row       int       `json:"row"`
	Col       int       `json:"col"`
	StageKind StageKind `json:"stage_kind"`
	Timestamp time.Time `json:"timestamp"`
	Inputs    []string  `json:"inputs"`
	Outputs   []string  `json:"outputs"`
	RowLabel  string    `json:"row_label"`
	ColLabel  string    `json:"col_label"`
	Warnings  []string  `json:"warnings"`
}
