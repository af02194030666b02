package matrices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalShapes(t *testing.T) {
	tests := []struct {
		name    string
		rows    int
		cols    int
		station string
	}{
		{"A", 3, 4, StationProblemStatement},
		{"B", 4, 4, StationProblemStatement},
		{"J", 3, 4, StationObjectives},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Canonical(tt.name)
			require.True(t, ok)
			rows, cols := m.Shape()
			assert.Equal(t, tt.rows, rows)
			assert.Equal(t, tt.cols, cols)
			assert.Equal(t, tt.station, m.Station)
			assert.NoError(t, EnsureWellFormed(m))
		})
	}

	_, ok := Canonical("Z")
	assert.False(t, ok)
}

func TestJIsBWithoutWisdomRow(t *testing.T) {
	b, j := B(), J()

	assert.Equal(t, b.ColLabels, j.ColLabels)
	assert.Equal(t, b.RowLabels[:3], j.RowLabels)
	for i := 0; i < 3; i++ {
		for k := 0; k < 4; k++ {
			bCell, _ := b.GetCell(i, k)
			jCell, _ := j.GetCell(i, k)
			assert.Equal(t, bCell.Value, jCell.Value)
		}
	}
}

func TestStationFor(t *testing.T) {
	assert.Equal(t, StationProblemStatement, StationFor("A"))
	assert.Equal(t, StationProblemStatement, StationFor("B"))
	assert.Equal(t, StationRequirements, StationFor("C"))
	assert.Equal(t, StationObjectives, StationFor("J"))
	assert.Equal(t, StationObjectives, StationFor("F"))
	assert.Equal(t, StationObjectives, StationFor("D"))
	assert.Equal(t, "", StationFor("Z"))
}

func TestCanonicalMatricesAreIndependentCopies(t *testing.T) {
	first := A()
	first.Cells[0][0].Value = "mutated"

	second := A()
	cell, _ := second.GetCell(0, 0)
	assert.Equal(t, "Values", cell.Value)
}
