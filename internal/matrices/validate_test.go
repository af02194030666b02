package matrices

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
)

func TestEnsureDims(t *testing.T) {
	a, b, j := A(), B(), J()

	assert.NoError(t, EnsureDims(a, b, "*"))
	assert.NoError(t, EnsureDims(j, j, "⊙"))
	assert.NoError(t, EnsureDims(a, j, "+"))

	// 3x4 by 3x4 cannot be multiplied.
	err := EnsureDims(a, j, "*")
	require.Error(t, err)
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))

	// 3x4 and 4x4 are not element-wise compatible.
	err = EnsureDims(a, b, "⊙")
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))

	err = EnsureDims(a, b, "?")
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))
}

func TestEnsureWellFormed(t *testing.T) {
	var verr *domain.ValidationError

	assert.True(t, errors.As(EnsureWellFormed(nil), &verr))

	m := A()
	m.Name = ""
	assert.True(t, errors.As(EnsureWellFormed(m), &verr))

	m = A()
	m.Cells = m.Cells[:2]
	assert.True(t, errors.As(EnsureWellFormed(m), &verr))

	m = A()
	m.Cells[1] = m.Cells[1][:3]
	assert.True(t, errors.As(EnsureWellFormed(m), &verr))

	m = A()
	m.Cells[0][0].Col = 2
	assert.True(t, errors.As(EnsureWellFormed(m), &verr))

	m = A()
	m.Cells[2][3].Value = "  "
	assert.True(t, errors.As(EnsureWellFormed(m), &verr))
}
