package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
)

// Store implements RunStore with an in-process map. States are deep-copied
// through JSON on both save and load so callers never share mutable state
// with the store.
type Store struct {
	mu   sync.RWMutex
	runs map[string][]byte
}

// NewStore creates a new in-memory run store.
func NewStore() *Store {
	return &Store{runs: make(map[string][]byte)}
}

// SaveRun persists a snapshot of the run state.
func (s *Store) SaveRun(_ context.Context, state *domain.RunState) error {
	if state == nil || state.RunID == "" {
		return fmt.Errorf("run state requires a run id")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	s.mu.Lock()
	s.runs[state.RunID] = data
	s.mu.Unlock()
	return nil
}

// GetRun returns the stored run state.
func (s *Store) GetRun(_ context.Context, runID string) (*domain.RunState, error) {
	s.mu.RLock()
	data, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	var state domain.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	return &state, nil
}

// ListRuns returns all stored run ids.
func (s *Store) ListRuns(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	return ids, nil
}

// DeleteRun removes a run.
func (s *Store) DeleteRun(_ context.Context, runID string) error {
	s.mu.Lock()
	delete(s.runs, runID)
	s.mu.Unlock()
	return nil
}
