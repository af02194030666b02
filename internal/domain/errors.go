package domain

import "fmt"

// ValidationError reports malformed upstream matrix structure or
// coordinates. It aborts a cell before any stage runs.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Msg)
}

// TransportError reports an unreachable or timed-out resolver call.
// Terminal for the cell; retryable by the caller at the cell level.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResolutionError reports resolver output that violates the output
// contract. Raw carries the offending output for diagnosis.
type ResolutionError struct {
	Operation string
	Raw       string
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolution: %s: %v", e.Operation, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// TraceWriteError reports a failed trace append. Tracing is a best-effort
// sink: the owning cell computation never aborts on it.
type TraceWriteError struct {
	Err error
}

func (e *TraceWriteError) Error() string {
	return fmt.Sprintf("trace write: %v", e.Err)
}

func (e *TraceWriteError) Unwrap() error { return e.Err }

// ExportError reports a failed graph export. Same best-effort contract as
// TraceWriteError.
type ExportError struct {
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("graph export: %v", e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// ConsistencyError reports an attempt to attach a stage to more than one
// cell or a cell to more than one matrix in the exported graph.
type ConsistencyError struct {
	Msg string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("graph consistency: %s", e.Msg)
}

// CellError is the terminal error for a failed cell computation. It names
// the stage that failed and echoes the provenance collected so far.
type CellError struct {
	Matrix  string
	Row     int
	Col     int
	Stage   StageKind
	Partial []StageEntry
	Err     error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("cell %s[%d,%d] failed at stage %s: %v", e.Matrix, e.Row, e.Col, e.Stage, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }
