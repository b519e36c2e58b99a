package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeededIsDeterministic(t *testing.T) {
	a := NewSeeded(12345)
	b := NewSeeded(12345)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Float64(), b.Float64(), "draw %d diverged", i)
	}
}

func TestIntBetweenStaysInRange(t *testing.T) {
	src := NewSeeded(7)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		n := IntBetween(src, 2, 4)
		require.GreaterOrEqual(t, n, 2)
		require.LessOrEqual(t, n, 4)
		seen[n] = true
	}
	assert.Len(t, seen, 3)
}

func TestIntBetweenDegenerateRange(t *testing.T) {
	assert.Equal(t, 5, IntBetween(Func(func() float64 { return 0.99 }), 5, 5))
	assert.Equal(t, 5, IntBetween(Func(func() float64 { return 0.99 }), 5, 3))
}

func TestBetweenAndChance(t *testing.T) {
	fixed := Func(func() float64 { return 0.5 })
	assert.InDelta(t, 0.225, Between(fixed, 0.15, 0.30), 1e-12)
	assert.True(t, Chance(fixed, 0.51))
	assert.False(t, Chance(fixed, 0.5))
}
