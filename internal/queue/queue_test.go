package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinQueue(t *testing.T) {
	q := NewMin(4)
	for i, d := range []float32{3, 1, 2, 0.5} {
		q.PushCandidate(Candidate{ID: uint32(i), Distance: d})
	}

	top, ok := q.Top()
	require.True(t, ok)
	assert.Equal(t, uint32(3), top.ID)

	got := q.Sorted()
	require.Len(t, got, 4)
	assert.Equal(t, []uint32{3, 1, 2, 0}, []uint32{got[0].ID, got[1].ID, got[2].ID, got[3].ID})
	assert.Equal(t, 0, q.Len())
}

func TestMaxQueue(t *testing.T) {
	q := NewMax(4)
	for i, d := range []float32{3, 1, 2} {
		q.PushCandidate(Candidate{ID: uint32(i), Distance: d})
	}

	c, ok := q.PopCandidate()
	require.True(t, ok)
	assert.Equal(t, float32(3), c.Distance)

	q.PushCandidate(Candidate{ID: 9, Distance: 0})
	got := q.Sorted()
	require.Len(t, got, 3)
	assert.Equal(t, uint32(9), got[0].ID, "Sorted is closest first for max queues too")
	assert.Equal(t, uint32(2), got[2].ID)
}

func TestEmptyQueue(t *testing.T) {
	q := NewMin(0)
	_, ok := q.PopCandidate()
	assert.False(t, ok)
	_, ok = q.Top()
	assert.False(t, ok)
	assert.Empty(t, q.Sorted())
}
