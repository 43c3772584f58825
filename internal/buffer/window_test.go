package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowPushWithinCapacity(t *testing.T) {
	w := New[string](3)
	require.Equal(t, 0, w.Len())

	w.Push("one")
	w.Push("two")
	w.Push("three")

	require.Equal(t, 3, w.Len())
	assert.True(t, w.Full())
	assert.Equal(t, []string{"one", "two", "three"}, w.Values())
}

func TestWindowEvictsOldestFirst(t *testing.T) {
	w := New[int](3)
	for i := 1; i <= 5; i++ {
		w.Push(i)
	}

	require.Equal(t, 3, w.Len())
	assert.Equal(t, []int{3, 4, 5}, w.Values())

	last, ok := w.Last()
	require.True(t, ok)
	assert.Equal(t, 5, last)

	first, ok := w.At(0)
	require.True(t, ok)
	assert.Equal(t, 3, first)
}

func TestWindowOutOfRange(t *testing.T) {
	w := New[int](2)
	_, ok := w.Last()
	assert.False(t, ok)

	w.Push(7)
	_, ok = w.At(1)
	assert.False(t, ok)
	_, ok = w.At(-1)
	assert.False(t, ok)
}

func TestWindowValuesIsCopy(t *testing.T) {
	w := New[int](2)
	w.Push(1)
	vals := w.Values()
	vals[0] = 99

	got, _ := w.At(0)
	assert.Equal(t, 1, got)
}

func TestWindowNeverExceedsCapacity(t *testing.T) {
	w := New[int](30)
	for i := 0; i < 1000; i++ {
		w.Push(i)
		require.LessOrEqual(t, w.Len(), 30)
	}
	vals := w.Values()
	for i := 1; i < len(vals); i++ {
		require.Equal(t, vals[i-1]+1, vals[i])
	}
	assert.Equal(t, 970, vals[0])
}
