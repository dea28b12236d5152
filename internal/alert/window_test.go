package alert

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowCapacityAndOrder(t *testing.T) {
	w := NewWindow(3, 10)
	assert.Equal(t, []float64{0, 0, 0}, w.Values())

	for i, v := range []float64{1, 2, 3, 4, 5} {
		w.Push(v)
		require.Equal(t, 3, w.Len(), "push %d", i)
		require.Len(t, w.Values(), 3)
	}

	assert.Equal(t, []float64{3, 4, 5}, w.Values())
}

func TestWindowSustainedBreach(t *testing.T) {
	w := NewWindow(3, 10)

	assert.False(t, w.Push(11))
	assert.False(t, w.Push(11))
	assert.True(t, w.Push(11))
	assert.True(t, w.Push(12))

	// equal to the ceiling is not a breach
	assert.False(t, w.Push(10))
	assert.False(t, w.Push(11))
	assert.False(t, w.Push(11))
	assert.True(t, w.Push(11))
}

func TestWindowNaNIsNotABreach(t *testing.T) {
	w := NewWindow(3, 10)

	assert.False(t, w.Push(11))
	assert.False(t, w.Push(11))
	assert.False(t, w.Push(math.NaN()))
	assert.False(t, w.Push(11))
	assert.False(t, w.Push(11))
	assert.True(t, w.Push(11))
}

func TestWindowNoPrematureAlert(t *testing.T) {
	const n = 10
	w := NewWindow(n, 10)

	for i := 0; i < n-1; i++ {
		require.False(t, w.Push(100), "push %d", i)
	}
	assert.True(t, w.Push(100))
}

func TestWindowSentinelBelowNonPositiveCeiling(t *testing.T) {
	w := NewWindow(2, -5)
	for _, v := range w.Values() {
		assert.Less(t, v, -5.0)
	}

	assert.False(t, w.Push(-4))
	assert.True(t, w.Push(-4))
}

func TestWindowMinimumSize(t *testing.T) {
	w := NewWindow(0, 10)
	assert.Equal(t, 1, w.Len())
	assert.True(t, w.Push(11))
	assert.False(t, w.Push(9))
}
