package echo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
)

func TestResolvePairReversesTerms(t *testing.T) {
	r := New()

	got, err := r.ResolvePair(context.Background(), "Values * Necessary", domain.SemanticContext{})
	require.NoError(t, err)
	assert.Equal(t, "Necessary Values", got)

	// Deterministic across calls.
	again, err := r.ResolvePair(context.Background(), "Values * Necessary", domain.SemanticContext{})
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestResolvePairRejectsMalformedPairs(t *testing.T) {
	r := New()
	var verr *domain.ValidationError

	for _, pair := range []string{"no operator", "Values *", " * Necessary", " * "} {
		_, err := r.ResolvePair(context.Background(), pair, domain.SemanticContext{})
		require.Error(t, err, "pair %q", pair)
		assert.True(t, errors.As(err, &verr))
	}
}

func TestApplyLensUsesCoordinates(t *testing.T) {
	r := New()

	got, err := r.ApplyLens(context.Background(), "Necessary Values", domain.SemanticContext{
		RowLabel: "Normative",
		ColLabel: "Determinacy",
	})
	require.NoError(t, err)
	assert.Equal(t,
		"By applying Normative lens through Determinacy coordinates: Necessary Values",
		got)
}
