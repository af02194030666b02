package graph

import (
	"fmt"
	"strings"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
)

// CellID is the stable graph identity of a cell: "<matrix>-<row>-<col>".
func CellID(coords domain.Coordinates) string {
	return fmt.Sprintf("%s-%d-%d", coords.Matrix, coords.Row, coords.Col)
}

// StageID is the stable graph identity of a stage node. Keying stages by
// cell and kind is what makes re-export a no-op instead of piling up
// duplicate provenance nodes.
func StageID(coords domain.Coordinates, kind domain.StageKind) string {
	return fmt.Sprintf("%s-%s", CellID(coords), kind)
}

// StageLabel returns the graph sub-label for a stage kind.
func StageLabel(kind domain.StageKind) string {
	switch kind {
	case domain.StageCombinatorial:
		return "Combinatorial"
	case domain.StageSemantic:
		return "Semantic"
	case domain.StageLensed:
		return "Lensed"
	default:
		return "Stage"
	}
}

// StagePayload maps a StageEntry onto its node properties. Combinatorial
// stages carry their products, semantic stages their resolved concepts,
// lensed stages the final meaning.
func StagePayload(entry domain.StageEntry) map[string]any {
	props := map[string]any{
		"timestamp": entry.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
	}
	switch entry.Kind {
	case domain.StageCombinatorial:
		props["products"] = entry.Outputs
	case domain.StageSemantic:
		props["concepts"] = entry.Outputs
	case domain.StageLensed:
		props["meaning"] = strings.Join(entry.Outputs, "\n")
	}
	return props
}

// ValidateCell rejects exports whose provenance disagrees with the cell's
// claimed coordinates. A stage recorded against one cell must never attach
// to another.
func ValidateCell(cell domain.Cell, coords domain.Coordinates) error {
	if coords.Matrix == "" {
		return &domain.ConsistencyError{Msg: "cell export without matrix name"}
	}
	if cell.Row != coords.Row || cell.Col != coords.Col {
		return &domain.ConsistencyError{
			Msg: fmt.Sprintf("cell (%d,%d) exported under coordinates (%d,%d)",
				cell.Row, cell.Col, coords.Row, coords.Col),
		}
	}
	for _, stage := range cell.Provenance.Stages {
		sc := stage.Coordinates
		if sc.Matrix != coords.Matrix || sc.Row != coords.Row || sc.Col != coords.Col {
			return &domain.ConsistencyError{
				Msg: fmt.Sprintf("stage %s recorded for %s-%d-%d cannot attach to cell %s",
					stage.Kind, sc.Matrix, sc.Row, sc.Col, CellID(coords)),
			}
		}
	}
	return nil
}
