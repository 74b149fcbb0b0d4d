package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("", KindHNSW)
	require.NoError(t, err)
	assert.Equal(t, KindHNSW, k)

	k, err = ParseKind("flat", KindHNSW)
	require.NoError(t, err)
	assert.Equal(t, KindFlat, k)

	_, err = ParseKind("spann", KindHNSW)
	assert.Error(t, err)
}

func TestErrDimensionMismatch(t *testing.T) {
	err := &ErrDimensionMismatch{Expected: 3, Actual: 2}
	assert.Equal(t, "dimension mismatch: expected 3, got 2", err.Error())
}
