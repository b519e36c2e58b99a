package coupling

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenomsim/internal/market"
	"phenomsim/internal/news"
	"phenomsim/internal/phenomenon"
	"phenomsim/internal/rng"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		headline string
		category string
		matched  bool
	}{
		{headline: `AAA rally FAILS at 50% - "Dead Cat Bounce" confirmed`, category: "bearish_moderate", matched: true},
		{headline: "BREAKOUT: AAA surges past resistance on HEAVY volume", category: "bullish_strong", matched: true},
		{headline: "BREAKING: AAA fraud allegations surface - auditor resignation", category: "bearish_strong", matched: true},
		{headline: "AAA recovery continues - up 24% from lows", category: "bullish_moderate", matched: true},
		{headline: "AAA director discloses share purchase in Form 4 filing", matched: false},
		{headline: "AAA files suit against former partner", matched: false},
		{headline: "AAA put/call ratio collapses as traders pile in", matched: false},
		{headline: "AAA short interest soars ahead of earnings", category: "bearish_moderate", matched: true},
		{headline: "AAA gives back gains after T+1", category: "bearish_moderate", matched: true},
		{headline: "AAA post-split reversal hits holders", category: "bearish_moderate", matched: true},
	}
	for _, tt := range tests {
		t.Run(tt.headline, func(t *testing.T) {
			c, ok := Classify(tt.headline)
			require.Equal(t, tt.matched, ok)
			if ok {
				assert.Equal(t, tt.category, c.Category.Name)
			}
		})
	}
}

// stub is a scripted phenomenon whose phases are set by the test.
type stub struct {
	phases map[string]phenomenon.Phase
}

var stubTable = phenomenon.TransitionTable{
	phenomenon.Inactive: {"RISING"},
	"RISING":            {"FALLING"},
	"FALLING":           {phenomenon.Inactive},
}

func (s *stub) Kind() phenomenon.Kind                    { return "stub" }
func (s *stub) Transitions() phenomenon.TransitionTable  { return stubTable }
func (s *stub) Trigger(*market.Instrument, float64) bool { return false }
func (s *stub) CheckEvents()                             {}
func (s *stub) ProcessTick()                             {}
func (s *stub) ForceClear(*market.Instrument) bool       { return false }
func (s *stub) ActivePatterns() []phenomenon.Snapshot    { return nil }
func (s *stub) TutorialHint(news.Item) *phenomenon.Hint  { return nil }
func (s *stub) Export() []phenomenon.SavedRecord         { return nil }
func (s *stub) Restore([]phenomenon.SavedRecord) error   { return nil }
func (s *stub) PhaseOf(symbol string) phenomenon.Phase {
	if p, ok := s.phases[symbol]; ok {
		return p
	}
	return phenomenon.Inactive
}

type fixture struct {
	stub      *stub
	validator *Validator
	updater   *market.Updater
	emitter   *phenomenon.Emitter
	inst      *market.Instrument
}

func newFixture() *fixture {
	s := &stub{phases: map[string]phenomenon.Phase{}}
	return &fixture{
		stub:      s,
		validator: NewValidator([]phenomenon.Phenomenon{s}, Options{}, zerolog.Nop()),
		updater:   market.NewUpdater(market.UpdaterOptions{}, rng.NewSeeded(1), zerolog.Nop()),
		emitter:   phenomenon.NewEmitter("stub", "STB", nil, zerolog.Nop()),
		inst:      market.NewInstrument("AAA", 100, 0.02),
	}
}

func (f *fixture) run(day int, step func(), items ...news.Item) {
	insts := []*market.Instrument{f.inst}
	f.validator.BeginTick(day, insts)
	step()
	f.validator.AfterPhenomena(insts, items)
	f.validator.AfterUpdate(f.updater.Apply(insts))
}

func stubItem(headline string, sentiment news.Sentiment) news.Item {
	return news.Item{Symbol: "AAA", Source: "stub", Headline: headline, Sentiment: sentiment}
}

func TestValidatorCleanTick(t *testing.T) {
	f := newFixture()
	f.run(1, func() {
		f.stub.phases["AAA"] = "RISING"
		f.emitter.Emit(f.inst, 0.05, "UP", "")
	}, stubItem("AAA climbs on strong demand", news.Positive))

	report := f.validator.Report()
	assert.Empty(t, report.Diagnostics)
	assert.Equal(t, 1, report.ParityChecks)
	assert.Equal(t, 1, report.Classified)
	assert.Equal(t, 105.0, f.inst.Price)
	assert.Equal(t, 1, report.Coverage["stub"]["RISING"])
}

func TestValidatorFlagsOrphanAndInvalidTransition(t *testing.T) {
	f := newFixture()
	f.run(1, func() { f.stub.phases["AAA"] = "FALLING" })

	counts := f.validator.Report().CountByKind()
	assert.Equal(t, 1, counts[KindInvalidTransition])
	assert.Equal(t, 1, counts[KindOrphanPhase])
}

func TestValidatorFlagsDirectionMismatch(t *testing.T) {
	f := newFixture()
	f.run(1, func() { f.emitter.Emit(f.inst, 0.08, "UP", "") },
		stubItem("AAA PLUNGES after guidance cut", news.Negative))

	counts := f.validator.Report().CountByKind()
	assert.Equal(t, 1, counts[KindDirection])
	assert.Equal(t, 1, counts[KindSentiment])
	assert.Equal(t, 1, f.validator.Report().Categories["bearish_strong"].Wrong)
}

func TestValidatorExcusesHistoricalItems(t *testing.T) {
	f := newFixture()
	item := stubItem("AAA PLUNGES after guidance cut", news.Negative)
	item.Historical = true
	f.run(1, func() { f.emitter.Emit(f.inst, 0.08, "UP", "") }, item)

	assert.Empty(t, f.validator.Report().Defects())
}

func TestValidatorFlagsMissingEventAndDuplicate(t *testing.T) {
	f := newFixture()
	item := stubItem("AAA climbs on strong demand", news.Positive)
	f.run(1, func() { f.inst.AddEffect("stub", 0.02) }, item, item)

	counts := f.validator.Report().CountByKind()
	assert.Equal(t, 1, counts[KindDuplicateHeadline])
	assert.Equal(t, 1, counts[KindMissingEvent])
}

func TestValidatorFlagsParityMismatch(t *testing.T) {
	f := newFixture()
	f.run(1, func() {
		f.emitter.Emit(f.inst, 0.05, "UP", "")
		f.inst.AddEffect("other", 0.05)
	})
	assert.Equal(t, 1, f.validator.Report().CountByKind()[KindParity])
}

func TestFinishReportsMissingPhases(t *testing.T) {
	f := newFixture()
	f.run(1, func() {
		f.stub.phases["AAA"] = "RISING"
		f.emitter.Emit(f.inst, 0.01, "UP", "")
	}, stubItem("AAA opens trading window", news.Positive))

	report := f.validator.Finish()
	require.False(t, report.Passed())
	defects := report.Defects()
	require.Len(t, defects, 1)
	assert.Equal(t, KindMissingPhase, defects[0].Kind)
	assert.Equal(t, phenomenon.Phase("FALLING"), defects[0].To)
	assert.Len(t, f.validator.Finish().Defects(), 1)
	assert.Equal(t, []phenomenon.Phase{"RISING"}, report.CoveredPhases("stub"))
}
