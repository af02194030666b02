// Package pipeline implements the CF14 semantic calculator core.
//
// The Orchestrator executes the fixed three-stage interpretation pipeline
// for one cell (combinatorial → semantic → lensed, with reduced two-stage
// variants for element-wise and synthesis cells) and assembles its
// provenance. The Runner sequences whole valley runs across the stations
// Requirements → Objectives → Solution, computing the cells of each matrix
// concurrently on the worker pool.
package pipeline
