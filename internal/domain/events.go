package domain

import "time"

// EventType identifies pipeline lifecycle events published on the bus.
type EventType string

const (
	EventTypeRunSubmitted    EventType = "run.submitted"
	EventTypeRunCompleted    EventType = "run.completed"
	EventTypeRunFailed       EventType = "run.failed"
	EventTypeRunCancelled    EventType = "run.cancelled"
	EventTypeMatrixCompleted EventType = "matrix.completed"
	EventTypeStageCompleted  EventType = "stage.completed"
	EventTypeCellCompleted   EventType = "cell.completed"
	EventTypeCellFailed      EventType = "cell.failed"
)

// Event is one pipeline lifecycle notification.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id"`
	Matrix    string                 `json:"matrix,omitempty"`
	Row       int                    `json:"row"`
	Col       int                    `json:"col"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// RunStatus is the lifecycle status of a valley run.
type RunStatus string

const (
	RunStatusSubmitted RunStatus = "submitted"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// MatrixState tracks progress of one matrix inside a run.
type MatrixState struct {
	Name       string    `json:"name"`
	Status     RunStatus `json:"status"`
	CellsDone  int       `json:"cells_done"`
	CellsTotal int       `json:"cells_total"`
	Result     *Matrix   `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// RunState is the persisted state of one valley run
// (Requirements → Objectives → Solution).
type RunState struct {
	RunID       string                  `json:"run_id"`
	SessionID   string                  `json:"session_id"`
	Problem     string                  `json:"problem"`
	Status      RunStatus               `json:"status"`
	Matrices    map[string]*MatrixState `json:"matrices"`
	SubmittedAt time.Time               `json:"submitted_at"`
	StartedAt   *time.Time              `json:"started_at,omitempty"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
	Error       string                  `json:"error,omitempty"`
}
