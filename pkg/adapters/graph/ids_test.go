package graph

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
)

func coords(matrix string, row, col int) domain.Coordinates {
	return domain.Coordinates{
		Matrix:   matrix,
		Row:      row,
		Col:      col,
		RowLabel: "Normative",
		ColLabel: "Determinacy",
	}
}

func TestStableIdentities(t *testing.T) {
	c := coords("C", 1, 2)
	assert.Equal(t, "C-1-2", CellID(c))
	assert.Equal(t, "C-1-2-semantic", StageID(c, domain.StageSemantic))
	assert.Equal(t, "C-1-2-combinatorial", StageID(c, domain.StageCombinatorial))
}

func TestStageLabels(t *testing.T) {
	assert.Equal(t, "Combinatorial", StageLabel(domain.StageCombinatorial))
	assert.Equal(t, "Semantic", StageLabel(domain.StageSemantic))
	assert.Equal(t, "Lensed", StageLabel(domain.StageLensed))
	assert.Equal(t, "Stage", StageLabel(domain.StageKind("bogus")))
}

func TestStagePayloadByKind(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	combinatorial := domain.StageEntry{
		Kind:      domain.StageCombinatorial,
		Timestamp: ts,
		Outputs:   []string{"Values * Necessary", "Actions * Contingent"},
	}
	props := StagePayload(combinatorial)
	assert.Equal(t, "2026-03-14T09:30:00Z", props["timestamp"])
	assert.Equal(t, combinatorial.Outputs, props["products"])

	semantic := domain.StageEntry{Kind: domain.StageSemantic, Timestamp: ts, Outputs: []string{"Necessary Values"}}
	props = StagePayload(semantic)
	assert.Equal(t, semantic.Outputs, props["concepts"])

	lensed := domain.StageEntry{Kind: domain.StageLensed, Timestamp: ts, Outputs: []string{"line one", "line two"}}
	props = StagePayload(lensed)
	assert.Equal(t, "line one\nline two", props["meaning"])
}

func TestValidateCell(t *testing.T) {
	c := coords("C", 1, 2)
	cell := domain.Cell{
		Row: 1, Col: 2, Value: "meaning",
		Provenance: domain.ProvenanceRecord{
			Stages: []domain.StageEntry{{Kind: domain.StageSemantic, Coordinates: c}},
		},
	}

	assert.NoError(t, ValidateCell(cell, c))

	var cerr *domain.ConsistencyError

	err := ValidateCell(cell, coords("", 1, 2))
	require.Error(t, err)
	assert.True(t, errors.As(err, &cerr))

	// Cell position disagreeing with the export coordinates.
	err = ValidateCell(cell, coords("C", 0, 2))
	require.Error(t, err)
	assert.True(t, errors.As(err, &cerr))

	// A stage recorded against another cell must not attach here.
	foreign := cell
	foreign.Provenance.Stages = []domain.StageEntry{{Kind: domain.StageSemantic, Coordinates: coords("F", 1, 2)}}
	err = ValidateCell(foreign, c)
	require.Error(t, err)
	assert.True(t, errors.As(err, &cerr))
}
