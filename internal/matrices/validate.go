package matrices

import (
	"fmt"
	"strings"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
)

// EnsureDims checks that two matrices are dimensionally compatible for the
// given operation ("*" for dot product, "⊙" / "+" for element-wise).
func EnsureDims(a, b *domain.Matrix, op string) error {
	aRows, aCols := a.Shape()
	bRows, bCols := b.Shape()

	switch op {
	case "*":
		if aCols != bRows {
			return &domain.ValidationError{
				Msg: fmt.Sprintf("matrix multiplication requires %s.cols == %s.rows, got (%d,%d) x (%d,%d)",
					a.Name, b.Name, aRows, aCols, bRows, bCols),
			}
		}
	case "⊙", "+":
		if aRows != bRows || aCols != bCols {
			return &domain.ValidationError{
				Msg: fmt.Sprintf("operation %s requires identical dimensions, got %s=(%d,%d) vs %s=(%d,%d)",
					op, a.Name, aRows, aCols, b.Name, bRows, bCols),
			}
		}
	default:
		return &domain.ValidationError{Msg: fmt.Sprintf("unknown operation: %s", op)}
	}
	return nil
}

// EnsureWellFormed checks that a matrix's cell grid matches its label axes
// and that every cell carries a non-empty value at its declared position.
func EnsureWellFormed(m *domain.Matrix) error {
	if m == nil {
		return &domain.ValidationError{Msg: "matrix is nil"}
	}
	if m.Name == "" {
		return &domain.ValidationError{Msg: "matrix name is required"}
	}
	rows, cols := m.Shape()
	if len(m.Cells) != rows {
		return &domain.ValidationError{
			Msg: fmt.Sprintf("matrix %s has %d cell rows, expected %d", m.Name, len(m.Cells), rows),
		}
	}
	for r := range m.Cells {
		if len(m.Cells[r]) != cols {
			return &domain.ValidationError{
				Msg: fmt.Sprintf("matrix %s row %d has %d cells, expected %d", m.Name, r, len(m.Cells[r]), cols),
			}
		}
		for c := range m.Cells[r] {
			cell := &m.Cells[r][c]
			if cell.Row != r || cell.Col != c {
				return &domain.ValidationError{
					Msg: fmt.Sprintf("matrix %s cell at [%d,%d] claims position [%d,%d]", m.Name, r, c, cell.Row, cell.Col),
				}
			}
			if strings.TrimSpace(cell.Value) == "" {
				return &domain.ValidationError{
					Msg: fmt.Sprintf("matrix %s cell [%d,%d] has an empty value", m.Name, r, c),
				}
			}
		}
	}
	return nil
}
