package phenomenon

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenomsim/internal/market"
	"phenomsim/internal/rng"
)

func TestTransitionTable(t *testing.T) {
	table := TransitionTable{
		Inactive: {"A"},
		"A":      {"B"},
		"B":      {"A", Inactive},
	}
	assert.True(t, table.Allows(Inactive, "A"))
	assert.False(t, table.Allows("A", Inactive))
	assert.True(t, table.Knows("B"))
	assert.False(t, table.Knows("C"))
	assert.Equal(t, []Phase{"A", "B"}, table.Reachable())
}

func TestEmitRecomputesDeltaFromRoundedPrice(t *testing.T) {
	inst := market.NewInstrument("AAA", 33.33, 0.02)
	em := NewEmitter("deadcat", "DCB", func() int { return 9 }, zerolog.Nop())

	out := em.Emit(inst, 0.0333, "BOUNCE_START", "")
	assert.Equal(t, 34.44, out.Event.ExpectedPrice)
	assert.InDelta(t, (34.44-33.33)/33.33, out.Event.ExpectedDelta, 1e-12)
	assert.Contains(t, out.Log, "[DCB] D9: AAA BOUNCE_START [$34.44 Δ+3.3%]")

	last := inst.LastEmitted()
	require.NotNil(t, last)
	assert.Equal(t, out.Event, *last)
}

func TestEmitAddsToSiblingEffect(t *testing.T) {
	inst := market.NewInstrument("AAA", 100, 0.02)
	insider := NewEmitter("insider", "INS", nil, zerolog.Nop())
	crash := NewEmitter("deadcat", "DCB", nil, zerolog.Nop())

	insider.Emit(inst, 0.01, "DISCLOSURE", "")
	out := crash.Emit(inst, -0.10, "CRASH_TRIGGERED", "")

	assert.InDelta(t, -0.09, inst.PendingEffect(), 1e-12)
	assert.Equal(t, 91.0, out.Event.ExpectedPrice)
	assert.InDelta(t, -0.09, out.Event.Effect, 1e-12)
}

func TestDepsDefaults(t *testing.T) {
	d := Deps{Random: rng.Func(func() float64 { return 0.99 })}.WithDefaults()
	require.NotNil(t, d.News)
	assert.Empty(t, d.Instruments())
	assert.True(t, d.Enabled("anything"))
	assert.Equal(t, 3, d.Choose(4))
	assert.Equal(t, 0, d.Choose(0))

	meme := market.NewInstrument("MEME", 10, 0.02)
	meme.IsMeme = true
	assert.Equal(t, 1.5, d.MemeMultiplier(meme))
	assert.Equal(t, 1.0, d.MemeMultiplier(market.NewInstrument("SAFE", 10, 0.02)))
}
