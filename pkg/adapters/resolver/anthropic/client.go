package anthropic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
	"github.com/sgttomas/chirality-semantic-framework/internal/ports"
)

const (
	opMultiply  = "multiply"
	opInterpret = "interpret"

	defaultModel     = "claude-3-5-sonnet-latest"
	defaultMaxTokens = 512
)

// Per-operation temperatures. Multiplication wants a creative intersection,
// lensing wants a tighter, explanatory reading.
var temperatures = map[string]float64{
	opMultiply:  0.7,
	opInterpret: 0.5,
}

// Config holds client configuration.
type Config struct {
	APIKey         string
	Model          string
	MaxTokens      int
	MaxRetries     int
	RequestTimeout time.Duration
	Metrics        ports.MetricsCollector
}

// Client resolves semantic operations against the Anthropic Messages API.
// It is the only type in the codebase that talks to the model provider.
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int
	metrics   ports.MetricsCollector
	logger    *zap.Logger
}

// NewClient creates a new Anthropic-backed resolver.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}

	return &Client{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		metrics:   cfg.Metrics,
		logger:    logger,
	}, nil
}

// ResolvePair resolves a word pair such as "Values * Necessary" into the
// concept at their semantic intersection.
func (c *Client) ResolvePair(ctx context.Context, pair string, sctx domain.SemanticContext) (string, error) {
	termA, termB, ok := splitPair(pair)
	if !ok {
		return "", &domain.ValidationError{Msg: fmt.Sprintf("malformed word pair %q", pair)}
	}

	prompt := assemblePrompt(sctx.ValleySummary, sctx.Station, sctx.RowLabel, sctx.ColLabel,
		opMultiply, map[string]string{"term_a": termA, "term_b": termB})

	res, err := c.call(ctx, opMultiply, prompt)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// ApplyLens interprets content through the ontological lens of the row and
// column coordinates.
func (c *Client) ApplyLens(ctx context.Context, content string, sctx domain.SemanticContext) (string, error) {
	prompt := assemblePrompt(sctx.ValleySummary, sctx.Station, sctx.RowLabel, sctx.ColLabel,
		opInterpret, map[string]string{"content": content})

	res, err := c.call(ctx, opInterpret, prompt)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// call performs one Messages API round trip and validates the output
// contract. Retries on transient failures are the SDK's responsibility.
func (c *Client) call(ctx context.Context, operation, userPrompt string) (*resolution, error) {
	start := time.Now()
	hash := promptHash(systemPrompt, userPrompt)

	c.logger.Debug("resolver call",
		zap.String("operation", operation),
		zap.String("model", c.model),
		zap.String("prompt_hash", hash),
		zap.Int("prompt_len", len(userPrompt)))

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(c.maxTokens),
		Temperature: anthropic.Float(temperatures[operation]),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		c.logger.Error("resolver call failed",
			zap.String("operation", operation),
			zap.String("prompt_hash", hash),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, &domain.TransportError{Operation: operation, Err: err}
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	raw := strings.TrimSpace(sb.String())

	res, err := parseResolution(raw)
	if err != nil {
		c.logger.Error("resolver output rejected",
			zap.String("operation", operation),
			zap.String("prompt_hash", hash),
			zap.Int("raw_len", len(raw)),
			zap.Error(err))
		return nil, &domain.ResolutionError{Operation: operation, Raw: raw, Err: err}
	}

	if c.metrics != nil {
		c.metrics.RecordResolverCall(c.model, operation, time.Since(start))
	}
	c.logger.Debug("resolver call completed",
		zap.String("operation", operation),
		zap.String("prompt_hash", hash),
		zap.Duration("duration", time.Since(start)),
		zap.Int("terms_used", len(res.TermsUsed)),
		zap.Int("warnings", len(res.Warnings)))

	return res, nil
}

// splitPair splits "A * B" into its terms.
func splitPair(pair string) (string, string, bool) {
	parts := strings.SplitN(pair, " * ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	a := strings.TrimSpace(parts[0])
	b := strings.TrimSpace(parts[1])
	if a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

// promptHash gives a deterministic digest of the full prompt for audit logs.
func promptHash(system, user string) string {
	h := sha256.New()
	h.Write([]byte(normalizeText(system)))
	h.Write([]byte("\n\n"))
	h.Write([]byte(normalizeText(user)))
	return hex.EncodeToString(h.Sum(nil))
}
