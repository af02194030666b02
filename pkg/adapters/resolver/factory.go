package resolver

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sgttomas/chirality-semantic-framework/internal/ports"
	"github.com/sgttomas/chirality-semantic-framework/pkg/adapters/resolver/anthropic"
	"github.com/sgttomas/chirality-semantic-framework/pkg/adapters/resolver/echo"
)

// Config holds resolver configuration
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	MaxTokens      int
	MaxRetries     int
	RequestTimeout time.Duration
	Metrics        ports.MetricsCollector
	Logger         *zap.Logger
}

// New creates a resolver based on provider
func New(cfg *Config) (ports.Resolver, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewClient(anthropic.Config{
			APIKey:         cfg.APIKey,
			Model:          cfg.Model,
			MaxTokens:      cfg.MaxTokens,
			MaxRetries:     cfg.MaxRetries,
			RequestTimeout: cfg.RequestTimeout,
			Metrics:        cfg.Metrics,
		}, cfg.Logger)
	case "echo":
		return echo.New(), nil
	default:
		return nil, fmt.Errorf("unsupported resolver provider: %s", cfg.Provider)
	}
}
