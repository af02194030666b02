package matrices

import "github.com/sgttomas/chirality-semantic-framework/internal/domain"

// Station names along the semantic valley.
const (
	StationProblemStatement = "Problem Statement"
	StationRequirements     = "Requirements"
	StationObjectives       = "Objectives"
)

// ValleySummary is the canonical wayfinding summary carried in every
// semantic context.
const ValleySummary = "Problem Statement -> [Requirements] -> Objectives -> Solution Objectives"

func newMatrix(name, station string, rowLabels, colLabels []string, content [][]string) *domain.Matrix {
	cells := make([][]domain.Cell, len(content))
	for row := range content {
		cells[row] = make([]domain.Cell, len(content[row]))
		for col := range content[row] {
			cells[row][col] = domain.Cell{Row: row, Col: col, Value: content[row][col]}
		}
	}
	return &domain.Matrix{
		Name:      name,
		Station:   station,
		RowLabels: rowLabels,
		ColLabels: colLabels,
		Cells:     cells,
	}
}

// A returns the canonical axioms matrix (3x4).
func A() *domain.Matrix {
	return newMatrix("A", StationProblemStatement,
		[]string{"Normative", "Operative", "Evaluative"},
		[]string{"Guiding", "Applying", "Judging", "Reflecting"},
		[][]string{
			{"Values", "Actions", "Benchmarks", "Feedback"},
			{"Principles", "Methods", "Standards", "Adaptation"},
			{"Objectives", "Coordination", "Evaluation", "Consolidation"},
		})
}

// B returns the canonical basis matrix (4x4).
func B() *domain.Matrix {
	return newMatrix("B", StationProblemStatement,
		[]string{"Data", "Information", "Knowledge", "Wisdom"},
		[]string{"Determinacy", "Sufficiency", "Completeness", "Consistency"},
		[][]string{
			{"Necessary", "Sufficient", "Complete", "Probability"},
			{"Contingent", "Insufficient", "Incomplete", "Possibility"},
			{"Fundamental", "Appropriate", "Holistic", "Feasibility"},
			{"Best Practices", "Limits of", "Justification for", "Practicality"},
		})
}

// J returns the canonical judgment matrix (3x4): B without the Wisdom row.
func J() *domain.Matrix {
	return newMatrix("J", StationObjectives,
		[]string{"Data", "Information", "Knowledge"},
		[]string{"Determinacy", "Sufficiency", "Completeness", "Consistency"},
		[][]string{
			{"Necessary", "Sufficient", "Complete", "Probability"},
			{"Contingent", "Insufficient", "Incomplete", "Possibility"},
			{"Fundamental", "Appropriate", "Holistic", "Feasibility"},
		})
}

// StationFor returns the valley station a matrix belongs to.
func StationFor(name string) string {
	switch name {
	case "A", "B":
		return StationProblemStatement
	case "C":
		return StationRequirements
	case "J", "F", "D":
		return StationObjectives
	default:
		return ""
	}
}

// Canonical returns the canonical matrix with the given name.
func Canonical(name string) (*domain.Matrix, bool) {
	switch name {
	case "A":
		return A(), true
	case "B":
		return B(), true
	case "J":
		return J(), true
	default:
		return nil, false
	}
}
