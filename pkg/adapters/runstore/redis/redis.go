package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
)

// Store implements RunStore using Redis. Each run is one JSON blob with a
// TTL so abandoned runs expire on their own.
type Store struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewStore creates a new Redis run store.
func NewStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// SaveRun persists the run state with the configured TTL.
func (s *Store) SaveRun(ctx context.Context, state *domain.RunState) error {
	if state == nil || state.RunID == "" {
		return fmt.Errorf("run state requires a run id")
	}
	key := getRunKey(state.RunID)

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save run state: %w", err)
	}

	s.logger.Debug("run state saved",
		zap.String("run_id", state.RunID),
		zap.String("status", string(state.Status)))
	return nil
}

// GetRun retrieves the run state.
func (s *Store) GetRun(ctx context.Context, runID string) (*domain.RunState, error) {
	key := getRunKey(runID)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to get run state: %w", err)
	}

	var state domain.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	return &state, nil
}

// ListRuns returns all stored run ids.
func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	pattern := runKeyPrefix + "*"

	var cursor uint64
	var keys []string
	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan run keys: %w", err)
		}
		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	runIDs := make([]string, 0, len(keys))
	for _, key := range keys {
		if len(key) > len(runKeyPrefix) {
			runIDs = append(runIDs, key[len(runKeyPrefix):])
		}
	}
	return runIDs, nil
}

// DeleteRun removes a run.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if err := s.client.Del(ctx, getRunKey(runID)).Err(); err != nil {
		return fmt.Errorf("failed to delete run state: %w", err)
	}
	s.logger.Debug("run state deleted", zap.String("run_id", runID))
	return nil
}

const runKeyPrefix = "chirality:run:"

func getRunKey(runID string) string {
	return runKeyPrefix + runID
}
