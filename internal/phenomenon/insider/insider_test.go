package insider

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenomsim/internal/market"
	"phenomsim/internal/news"
	"phenomsim/internal/phenomenon"
	"phenomsim/internal/phenomenon/deadcat"
	"phenomsim/internal/rng"
)

func newEngine(insts []*market.Instrument, feed *news.Feed, src rng.Source) *Engine {
	return New(DefaultConfig(), phenomenon.Deps{
		Instruments: func() []*market.Instrument { return insts },
		News:        feed,
		Random:      src,
	})
}

func TestEngineDescribesItself(t *testing.T) {
	var p phenomenon.Phenomenon = newEngine(nil, news.NewFeed(), rng.NewSeeded(1))
	assert.Equal(t, Kind, p.Kind())
	assert.True(t, p.Transitions().Allows(phenomenon.Inactive, Accumulation))
	assert.True(t, p.Transitions().Allows(Accumulation, phenomenon.Inactive))
}

func TestTriggerSetsFlagsAndEmits(t *testing.T) {
	inst := market.NewInstrument("AAA", 100, 0.02)
	feed := news.NewFeed()
	e := newEngine([]*market.Instrument{inst}, feed, rng.NewSeeded(1))

	require.True(t, e.Trigger(inst, 0.9))
	assert.False(t, e.Trigger(inst, 0.9))
	assert.Equal(t, Accumulation, e.PhaseOf("AAA"))
	assert.True(t, inst.Insider.Buying)
	assert.True(t, inst.Insider.ClusterBuy)
	assert.Greater(t, inst.PendingEffect(), 0.0)

	items := feed.Items()
	require.Len(t, items, 1)
	assert.Equal(t, news.Neutral, items[0].Sentiment)
	assert.Contains(t, items[0].Headline, "cluster purchase")
	assert.NotNil(t, e.TutorialHint(items[0]))
}

func TestWindowClosesAndClearsFlags(t *testing.T) {
	inst := market.NewInstrument("AAA", 100, 0.02)
	feed := news.NewFeed()
	e := newEngine([]*market.Instrument{inst}, feed, rng.NewSeeded(2))

	require.True(t, e.Trigger(inst, 0.1))
	assert.False(t, inst.Insider.ClusterBuy)
	for i := 0; i < DefaultConfig().MaxDays+1; i++ {
		feed.Reset(i + 1)
		e.ProcessTick()
	}
	assert.Equal(t, phenomenon.Inactive, e.PhaseOf("AAA"))
	assert.False(t, inst.Insider.Buying)
}

func TestEffectsComposeWithDeadCatBounce(t *testing.T) {
	inst := market.NewInstrument("AAA", 100, 0.02)
	feed := news.NewFeed()
	src := rng.NewSeeded(4)
	insts := []*market.Instrument{inst}
	logger := zerolog.Nop()
	deps := phenomenon.Deps{
		Instruments: func() []*market.Instrument { return insts },
		News:        feed,
		Random:      src,
		Logger:      &logger,
	}
	ins := New(DefaultConfig(), deps)
	dcb := deadcat.New(deadcat.DefaultConfig(), deps)
	updater := market.NewUpdater(market.UpdaterOptions{}, src, logger)

	require.True(t, ins.Trigger(inst, 0.9))
	own := inst.PendingEffect()
	require.True(t, dcb.Trigger(inst, 0.25))

	total := inst.PendingEffect()
	crash := total - own
	assert.Less(t, crash, 0.0)

	last := inst.LastEmitted()
	require.NotNil(t, last)
	assert.InDelta(t, total, last.Effect, 1e-12)

	updates := updater.Apply(insts)
	require.Len(t, updates, 1)
	assert.True(t, updates[0].Pure)
	assert.Equal(t, last.ExpectedPrice, inst.Price)
	assert.Equal(t, market.Project(&market.Instrument{Price: 100, BasePrice: 100}, own+crash), inst.Price)
}

func TestForceClearDropsOnlyOwnEffect(t *testing.T) {
	inst := market.NewInstrument("AAA", 100, 0.02)
	feed := news.NewFeed()
	e := newEngine([]*market.Instrument{inst}, feed, rng.NewSeeded(3))
	inst.AddEffect("other", -0.02)

	require.True(t, e.Trigger(inst, 0.9))
	require.True(t, e.ForceClear(inst))
	assert.InDelta(t, -0.02, inst.PendingEffect(), 1e-12)
	assert.False(t, inst.Insider.Buying)
	require.NotNil(t, inst.LastEmitted())
	assert.Equal(t, 98.0, inst.LastEmitted().ExpectedPrice)
}

func TestExportRestore(t *testing.T) {
	inst := market.NewInstrument("AAA", 100, 0.02)
	feed := news.NewFeed()
	e := newEngine([]*market.Instrument{inst}, feed, rng.NewSeeded(3))
	require.True(t, e.Trigger(inst, 0.9))

	saved := e.Export()
	fresh := market.NewInstrument("AAA", 100, 0.02)
	other := newEngine([]*market.Instrument{fresh}, news.NewFeed(), rng.NewSeeded(3))
	require.NoError(t, other.Restore(saved))
	assert.Equal(t, saved, other.Export())
	assert.True(t, fresh.Insider.ClusterBuy)

	assert.ErrorIs(t, other.Restore([]phenomenon.SavedRecord{{Kind: Kind, Symbol: "A", Phase: "CRASH"}}), phenomenon.ErrUnknownPhase)
}
