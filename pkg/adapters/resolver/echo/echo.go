// Package echo provides a deterministic, zero-LLM resolver. It is used by
// tests and offline runs to exercise the full pipeline without a model
// provider.
package echo

import (
	"context"
	"fmt"
	"strings"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
)

// Resolver resolves semantic operations by mechanical text rearrangement.
// Identical inputs always produce identical outputs, which also makes it the
// reference implementation for trace dedupe tests.
type Resolver struct{}

// New creates an echo resolver.
func New() *Resolver { return &Resolver{} }

// ResolvePair resolves "A * B" as "B A".
func (r *Resolver) ResolvePair(_ context.Context, pair string, _ domain.SemanticContext) (string, error) {
	parts := strings.SplitN(pair, " * ", 2)
	if len(parts) != 2 {
		return "", &domain.ValidationError{Msg: fmt.Sprintf("malformed word pair %q", pair)}
	}
	a := strings.TrimSpace(parts[0])
	b := strings.TrimSpace(parts[1])
	if a == "" || b == "" {
		return "", &domain.ValidationError{Msg: fmt.Sprintf("malformed word pair %q", pair)}
	}
	return b + " " + a, nil
}

// ApplyLens prefixes the content with its ontological coordinates.
func (r *Resolver) ApplyLens(_ context.Context, content string, sctx domain.SemanticContext) (string, error) {
	return fmt.Sprintf("By applying %s lens through %s coordinates: %s",
		sctx.RowLabel, sctx.ColLabel, content), nil
}
