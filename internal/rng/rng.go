package rng

import (
	"math/rand"
	"time"
)

// Source yields uniform values in [0, 1).
type Source interface {
	Float64() float64
}

// Func adapts a plain function to Source.
type Func func() float64

// Float64 implements Source.
func (f Func) Float64() float64 { return f() }

// NewSeeded returns a deterministic source. Identical seeds replay identical sequences.
func NewSeeded(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// NewAmbient returns a time-seeded source for production runs.
func NewAmbient() Source {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Between draws uniformly from [min, max).
func Between(src Source, min, max float64) float64 {
	return min + src.Float64()*(max-min)
}

// IntBetween draws uniformly from the closed range [min, max].
func IntBetween(src Source, min, max int) int {
	if max <= min {
		return min
	}
	n := min + int(src.Float64()*float64(max-min+1))
	if n > max {
		n = max
	}
	return n
}

// Chance reports whether a draw falls below p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}
