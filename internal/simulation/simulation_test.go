package simulation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenomsim/internal/alerting"
	"phenomsim/internal/config"
	"phenomsim/internal/coupling"
	"phenomsim/internal/market"
	"phenomsim/internal/observability"
	"phenomsim/internal/phenomenon"
	"phenomsim/internal/phenomenon/deadcat"
	"phenomsim/internal/phenomenon/insider"
	"phenomsim/internal/scheduler"
	"phenomsim/internal/storage"
	"phenomsim/internal/storage/memory"
)

func quietConfig() *config.Config {
	cfg := config.Default()
	cfg.DeadCat.DailyChance = 0
	cfg.Insider.DailyChance = 0
	return cfg
}

func newSim(t *testing.T, cfg *config.Config, opts Options) *Simulator {
	t.Helper()
	sim, err := New(cfg, opts, zerolog.Nop())
	require.NoError(t, err)
	return sim
}

func closes(t *testing.T, sim *Simulator, days int) [][]float64 {
	t.Helper()
	var out [][]float64
	require.NoError(t, sim.RunDays(context.Background(), days, func(res DayResult) {
		row := make([]float64, 0, len(res.Updates))
		for _, u := range res.Updates {
			row = append(row, u.Price)
		}
		out = append(out, row)
	}))
	return out
}

func TestSeededReplayIsCoupled(t *testing.T) {
	cfg := config.Default()
	sim := newSim(t, cfg, Options{Mode: ModeValidate, Validate: true})

	require.NoError(t, sim.RunDays(context.Background(), cfg.Simulation.Days, nil))
	report := sim.Finish(context.Background())

	for _, d := range report.Defects() {
		t.Errorf("defect: %s", d)
	}
	assert.Equal(t, cfg.Simulation.Days, report.Ticks)
	assert.Greater(t, report.NewsItems, 0)
	assert.Greater(t, report.Classified, 0)
	assert.Greater(t, report.ParityChecks, 0)
	assert.ElementsMatch(t, deadcat.Transitions.Reachable(), report.CoveredPhases(deadcat.Kind))
	assert.ElementsMatch(t, insider.Transitions.Reachable(), report.CoveredPhases(insider.Kind))
}

func TestSameSeedSamePath(t *testing.T) {
	cfg := config.Default()
	a := closes(t, newSim(t, cfg, Options{}), 200)
	b := closes(t, newSim(t, cfg, Options{}), 200)
	assert.Equal(t, a, b)

	other := config.Default()
	other.Simulation.Seed = 99
	c := closes(t, newSim(t, other, Options{}), 200)
	assert.NotEqual(t, a, c)
}

func TestScheduledTriggerAppliesSameDay(t *testing.T) {
	sim := newSim(t, quietConfig(), Options{Validate: true})
	symbol := sim.Instruments()[0].Symbol
	before := sim.Instruments()[0].Price

	require.NoError(t, sim.ScheduleTrigger(deadcat.Kind, symbol, 0.25))
	res, err := sim.AdvanceDay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, deadcat.Crash, res.Phases[symbol][deadcat.Kind])
	require.NotEmpty(t, res.News)
	assert.Equal(t, symbol, res.News[0].Symbol)
	assert.Less(t, res.Updates[0].Price, before)
	assert.True(t, res.Updates[0].Pure)
	for _, d := range res.Diagnostics {
		assert.Equal(t, coupling.SeverityWarning, d.Severity, d.String())
	}

	assert.Error(t, sim.ScheduleTrigger(deadcat.Kind, "NOPE", 0.2))
	assert.Error(t, sim.ScheduleTrigger("unknown", symbol, 0.2))
}

func TestDisabledKindIsClearedAtTickStart(t *testing.T) {
	sim := newSim(t, quietConfig(), Options{})
	inst := sim.Instruments()[1]

	require.NoError(t, sim.ScheduleTrigger(insider.Kind, inst.Symbol, 0.9))
	require.NoError(t, sim.ScheduleTrigger(deadcat.Kind, inst.Symbol, 0.2))
	_, err := sim.AdvanceDay(context.Background())
	require.NoError(t, err)
	require.Len(t, sim.ActivePatterns(), 2)
	assert.True(t, inst.Insider.ClusterBuy)

	sim.SetEnabled(insider.Kind, false)
	res, err := sim.AdvanceDay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, phenomenon.Inactive, res.Phases[inst.Symbol][insider.Kind])
	assert.Equal(t, market.InsiderActivity{}, inst.Insider)
	patterns := sim.ActivePatterns()
	require.Len(t, patterns, 1)
	assert.Equal(t, deadcat.Kind, patterns[0].Kind)

	require.NoError(t, sim.ScheduleTrigger(insider.Kind, inst.Symbol, 0.9))
	_, err = sim.AdvanceDay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, phenomenon.Inactive, sim.insider.PhaseOf(inst.Symbol))

	sim.SetEnabled(insider.Kind, true)
	require.NoError(t, sim.ScheduleTrigger(insider.Kind, inst.Symbol, 0.9))
	_, err = sim.AdvanceDay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, insider.Accumulation, sim.insider.PhaseOf(inst.Symbol))
}

func TestPersistsAndResumes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	cfg := quietConfig()
	runID := uuid.New()

	sim := newSim(t, cfg, Options{Repository: store, RunID: runID})
	symbol := sim.Instruments()[0].Symbol
	require.NoError(t, sim.ScheduleTrigger(deadcat.Kind, symbol, 0.25))
	require.NoError(t, sim.RunDays(ctx, 6, nil))

	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, run.Instruments, len(cfg.Simulation.Instruments))

	ticks, err := store.ListTicks(ctx, runID, symbol)
	require.NoError(t, err)
	require.Len(t, ticks, 6)
	assert.Equal(t, string(deadcat.Crash), ticks[0].Phases[string(deadcat.Kind)])

	recent, err := store.ListRecentNews(ctx, runID, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, recent)

	saved, err := store.LoadState(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 6, saved.Day)

	resumed := newSim(t, cfg, Options{Repository: store})
	require.NoError(t, resumed.Resume(ctx, uuid.Nil))
	assert.Equal(t, runID, resumed.RunID())
	assert.Equal(t, 6, resumed.Day())
	assert.Equal(t, sim.ActivePatterns(), resumed.ActivePatterns())
	assert.Equal(t, sim.Instruments()[0].Price, resumed.Instruments()[0].Price)

	res, err := resumed.AdvanceDay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Day)
}

func TestResumeErrors(t *testing.T) {
	ctx := context.Background()
	sim := newSim(t, quietConfig(), Options{})
	assert.ErrorIs(t, sim.Resume(ctx, uuid.Nil), storage.ErrNotConfigured)

	withStore := newSim(t, quietConfig(), Options{Repository: memory.NewStore()})
	assert.ErrorIs(t, withStore.Resume(ctx, uuid.Nil), storage.ErrNotFound)
	assert.ErrorIs(t, withStore.Resume(ctx, uuid.New()), storage.ErrNotFound)

	err := sim.Restore(storage.StateSnapshot{Records: []phenomenon.SavedRecord{{Kind: "volcano", Symbol: "X"}}})
	assert.ErrorIs(t, err, phenomenon.ErrKindMismatch)
}

func TestFailedRestoreLeavesStateUntouched(t *testing.T) {
	sim := newSim(t, quietConfig(), Options{})
	first := sim.Instruments()[0]
	second := sim.Instruments()[1]

	require.NoError(t, sim.ScheduleTrigger(deadcat.Kind, second.Symbol, 0.25))
	_, err := sim.AdvanceDay(context.Background())
	require.NoError(t, err)

	patterns := sim.ActivePatterns()
	require.Len(t, patterns, 1)
	price := first.Price
	day := sim.Day()

	err = sim.Restore(storage.StateSnapshot{
		Day: 40,
		Records: []phenomenon.SavedRecord{
			{Kind: insider.Kind, Symbol: first.Symbol, Phase: insider.Accumulation, DaysRemaining: 5},
			{Kind: deadcat.Kind, Symbol: first.Symbol, Phase: "SQUEEZE", DaysRemaining: 3},
		},
		Instruments: []storage.InstrumentState{{Symbol: first.Symbol, Price: 1, BasePrice: 1}},
	})
	require.ErrorIs(t, err, phenomenon.ErrUnknownPhase)

	assert.Equal(t, price, first.Price)
	assert.False(t, first.Insider.Buying)
	assert.Equal(t, day, sim.Day())
	assert.Equal(t, patterns, sim.ActivePatterns())
}

func TestTutorialHintDispatch(t *testing.T) {
	sim := newSim(t, quietConfig(), Options{})
	symbol := sim.Instruments()[0].Symbol
	require.NoError(t, sim.ScheduleTrigger(deadcat.Kind, symbol, 0.25))
	require.NoError(t, sim.ScheduleTrigger(insider.Kind, symbol, 0.9))
	res, err := sim.AdvanceDay(context.Background())
	require.NoError(t, err)

	kinds := make(map[string]bool)
	for _, it := range res.News {
		hint := sim.TutorialHint(it)
		require.NotNil(t, hint, it.Headline)
		kinds[it.Source] = true
	}
	assert.True(t, kinds[string(deadcat.Kind)])
	assert.True(t, kinds[string(insider.Kind)])
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n alerting.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

func TestFinishAlertsOnMissingCoverage(t *testing.T) {
	ctx := context.Background()
	cfg := quietConfig()
	cfg.Alerting.Enabled = true
	notifier := &recordingNotifier{}
	store := memory.NewStore()
	metrics := observability.NewMetrics("")

	sim := newSim(t, cfg, Options{Validate: true, Notifier: notifier, Repository: store, Metrics: metrics})
	require.NoError(t, sim.RunDays(ctx, 3, nil))
	report := sim.Finish(ctx)

	assert.False(t, report.Passed())
	assert.Equal(t, 6, report.CountByKind()[coupling.KindMissingPhase])
	require.Len(t, notifier.notes, 1)
	assert.Equal(t, 6, notifier.notes[0].Defects)
	assert.Equal(t, sim.RunID().String(), notifier.notes[0].RunID)

	stored, err := store.ListDiagnostics(ctx, sim.RunID())
	require.NoError(t, err)
	assert.Len(t, stored, 6)

	assert.Equal(t, report, sim.Finish(ctx))
	assert.Len(t, notifier.notes, 2)
}

func TestRunHonoursDayLimitAndLock(t *testing.T) {
	cfg := quietConfig()
	cfg.Simulation.Days = 2
	store := memory.NewStore()
	sched := scheduler.New(scheduler.Options{Interval: 2 * time.Millisecond, MaxTicks: 10}, zerolog.Nop())

	sim := newSim(t, cfg, Options{Mode: ModeLive, Repository: store, Scheduler: sched})
	require.NoError(t, sim.Run(context.Background()))
	assert.Equal(t, 2, sim.Day())

	unlock, ok, err := store.TryAdvisoryLock(context.Background(), cfg.Scheduler.AdvisoryLockKey)
	require.NoError(t, err)
	require.True(t, ok)
	defer unlock()

	blocked := newSim(t, cfg, Options{Repository: store})
	require.NoError(t, blocked.ProcessBucket(context.Background(), time.Now()))
	assert.Equal(t, 0, blocked.Day())

	noSched := newSim(t, cfg, Options{})
	assert.Error(t, noSched.Run(context.Background()))
}

func TestMetricsFollowTicks(t *testing.T) {
	metrics := observability.NewMetrics("")
	sim := newSim(t, quietConfig(), Options{Metrics: metrics})
	symbol := sim.Instruments()[0].Symbol
	require.NoError(t, sim.ScheduleTrigger(deadcat.Kind, symbol, 0.25))
	require.NoError(t, sim.RunDays(context.Background(), 2, nil))

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["phenomsim_simulation_days_total"])
	assert.True(t, names["phenomsim_phenomenon_transitions_total"])
	assert.True(t, names["phenomsim_news_published_total"])
	assert.True(t, names["phenomsim_phenomenon_active_patterns"])
}
