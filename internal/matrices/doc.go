// Package matrices holds the fixed canonical matrices of the framework (A,
// B, J) and the dimensional validation rules. The matrices are constants:
// the framework is a calculator over fixed inputs, not a configurable
// workflow engine.
package matrices
