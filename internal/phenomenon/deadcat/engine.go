// Package deadcat implements the dead cat bounce: a crash, a relief bounce
// whose true nature is decided once at its end, and either a trap (decline,
// weaker retries, capitulation) or a genuine reversal (consolidation, breakout,
// recovery).
package deadcat

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"phenomsim/internal/market"
	"phenomsim/internal/news"
	"phenomsim/internal/phenomenon"
	"phenomsim/internal/rng"
)

// Engine owns every dead cat bounce record.
type Engine struct {
	cfg       Config
	deps      phenomenon.Deps
	evaluator SignalEvaluator
	emitter   *phenomenon.Emitter
	news      newsGenerator
	records   map[string]*record
	logger    zerolog.Logger
}

var _ phenomenon.Phenomenon = (*Engine)(nil)

// New constructs an engine. Missing collaborators fall back to the defaults
// documented on phenomenon.Deps.
func New(cfg Config, deps phenomenon.Deps) *Engine {
	deps = deps.WithDefaults()
	logger := deps.Logger.With().Str("component", "deadcat").Logger()
	return &Engine{
		cfg:       cfg,
		deps:      deps,
		evaluator: NewSignalEvaluator(cfg.Probability),
		emitter:   phenomenon.NewEmitter(Kind, "DCB", deps.News.Day, logger),
		news:      newsGenerator{choose: deps.Choose},
		records:   make(map[string]*record),
		logger:    logger,
	}
}

// Kind implements phenomenon.Phenomenon.
func (e *Engine) Kind() phenomenon.Kind { return Kind }

// Transitions implements phenomenon.Phenomenon.
func (e *Engine) Transitions() phenomenon.TransitionTable { return Transitions }

// Evaluator exposes the outcome model for diagnostics.
func (e *Engine) Evaluator() SignalEvaluator { return e.evaluator }

// PhaseOf returns the current phase, or INACTIVE when no record exists.
func (e *Engine) PhaseOf(symbol string) phenomenon.Phase {
	if rec, ok := e.records[symbol]; ok {
		return rec.Phase
	}
	return Inactive
}

// Trigger starts a crash on inst using the catalyst closest to severity.
func (e *Engine) Trigger(inst *market.Instrument, severity float64) bool {
	return e.trigger(inst, severity, closestCatalyst(severity))
}

// CheckEvents rolls the daily crash chance for every instrument without a record.
func (e *Engine) CheckEvents() {
	if !e.deps.Enabled(Kind) {
		return
	}
	for _, inst := range e.deps.Instruments() {
		if _, active := e.records[inst.Symbol]; active {
			continue
		}
		if !rng.Chance(e.deps.Random, e.cfg.DailyChance) {
			continue
		}
		c := Catalysts[e.deps.Choose(len(Catalysts))]
		e.trigger(inst, c.Severity, c)
	}
}

func (e *Engine) trigger(inst *market.Instrument, severity float64, c Catalyst) bool {
	if inst == nil || !e.deps.Enabled(Kind) {
		return false
	}
	if _, exists := e.records[inst.Symbol]; exists {
		return false
	}

	severity = clamp(severity, 0, 1)
	magnitude := clamp(severity+rng.Between(e.deps.Random, -0.05, 0.05),
		e.cfg.CrashMagnitude.Min, e.cfg.CrashMagnitude.Max)
	impact := rng.Between(e.deps.Random, e.cfg.CrashImpact.Min, e.cfg.CrashImpact.Max)
	days := rng.IntBetween(e.deps.Random, e.cfg.CrashDays.Min, e.cfg.CrashDays.Max)

	first := magnitude * impact
	rec := &record{
		Phase:            Crash,
		DaysRemaining:    days,
		Severity:         severity,
		Magnitude:        magnitude,
		VolumeMultiplier: e.cfg.Volume.Crash,
		skip:             true,
		RunningLow:       inst.Price,
		RunningHigh:      inst.Price,
		Refs: References{
			Trigger:    inst.Price,
			PhaseStart: inst.Price,
			LocalLow:   inst.Price,
			LocalHigh:  inst.Price,
			Target:     inst.Price * (1 - magnitude),
		},
	}
	if days > 1 {
		rec.CrashDailyDelta = math.Pow((1-magnitude)/(1-first), 1/float64(days-1)) - 1
	}
	e.records[inst.Symbol] = rec
	inst.VolumeMultiplier = rec.VolumeMultiplier

	out := e.emitter.Emit(inst, -first, "CRASH_TRIGGERED",
		fmt.Sprintf("(severity %.2f, magnitude %.1f%% over %dd)", severity, magnitude*100, days))
	e.publish(e.news.crash(inst, rec, c, out.Event.ExpectedDelta))
	e.deps.OnTransition(Kind, inst.Symbol, Inactive, Crash)
	return true
}

// ProcessTick steps every active record once, in instrument order. A record
// created earlier in the same tick is not stepped.
func (e *Engine) ProcessTick() {
	if !e.deps.Enabled(Kind) {
		return
	}
	for _, inst := range e.deps.Instruments() {
		rec, ok := e.records[inst.Symbol]
		if !ok {
			continue
		}
		if rec.skip {
			rec.skip = false
			continue
		}
		e.safeStep(inst)
	}
}

func (e *Engine) safeStep(inst *market.Instrument) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Str("symbol", inst.Symbol).Interface("panic", r).
				Msg("phase handler failed, clearing record")
			e.ForceClear(inst)
		}
	}()
	e.Step(inst)
}

// Step advances one record by one day. It returns false when inst has no record.
func (e *Engine) Step(inst *market.Instrument) bool {
	if inst == nil {
		return false
	}
	rec, ok := e.records[inst.Symbol]
	if !ok {
		return false
	}
	rec.skip = false
	if rec.DaysRemaining < 1 {
		rec.DaysRemaining = 1
	}
	rec.DaysRemaining--
	rec.PhaseDays++

	switch rec.Phase {
	case Crash:
		e.stepCrash(inst, rec)
	case Bounce:
		e.stepBounce(inst, rec)
	case Decline:
		e.stepDecline(inst, rec)
	case Consolidation:
		e.stepConsolidation(inst, rec)
	case Recovery:
		e.stepRecovery(inst, rec)
	default:
		e.logger.Error().Str("symbol", inst.Symbol).Str("phase", string(rec.Phase)).
			Msg("record in unknown phase, clearing")
		e.ForceClear(inst)
		return false
	}
	return true
}

// ForceClear removes the record and any effect it queued this tick.
func (e *Engine) ForceClear(inst *market.Instrument) bool {
	if inst == nil {
		return false
	}
	rec, ok := e.records[inst.Symbol]
	if !ok {
		return false
	}
	delete(e.records, inst.Symbol)
	inst.DropEffects(string(Kind))
	inst.VolumeMultiplier = 1.0
	e.logger.Debug().Str("symbol", inst.Symbol).Str("phase", string(rec.Phase)).Msg("record cleared")
	return true
}

// enter moves rec to the next phase. Illegal moves are refused and logged.
func (e *Engine) enter(inst *market.Instrument, rec *record, to phenomenon.Phase, days int) bool {
	from := rec.Phase
	if !Transitions.Allows(from, to) {
		e.logger.Error().Str("symbol", inst.Symbol).Str("from", string(from)).Str("to", string(to)).
			Msg("refused illegal transition")
		return false
	}
	rec.Phase = to
	rec.DaysRemaining = days
	rec.PhaseDays = 0
	if to == Inactive {
		delete(e.records, inst.Symbol)
		inst.VolumeMultiplier = 1.0
	}
	e.logger.Debug().Str("symbol", inst.Symbol).Str("from", string(from)).Str("to", string(to)).
		Int("days", days).Msg("phase transition")
	e.deps.OnTransition(Kind, inst.Symbol, from, to)
	return true
}

func (e *Engine) publish(item news.Item) {
	if !e.deps.News.Publish(item) {
		e.logger.Debug().Str("symbol", item.Symbol).Str("headline", item.Headline).
			Msg("duplicate headline dropped")
	}
}

func (e *Engine) meme(inst *market.Instrument) float64 {
	m := e.deps.MemeMultiplier(inst)
	if math.IsNaN(m) || m <= 0 {
		return 1
	}
	return clamp(m, 0.5, 3)
}

// ActivePatterns returns a snapshot of every record, ordered by symbol.
func (e *Engine) ActivePatterns() []phenomenon.Snapshot {
	symbols := e.symbols()
	out := make([]phenomenon.Snapshot, 0, len(symbols))
	for _, sym := range symbols {
		rec := e.records[sym]
		out = append(out, phenomenon.Snapshot{
			Kind:              Kind,
			Symbol:            sym,
			Phase:             rec.Phase,
			DaysRemaining:     rec.DaysRemaining,
			Outcome:           string(rec.Outcome),
			RetryCount:        rec.RetryCount,
			Retracement:       rec.Signals.Retracement,
			TargetRetracement: rec.TargetRetracement,
			VolumeTrend:       string(rec.Signals.VolumeTrend),
			VolumeMultiplier:  rec.VolumeMultiplier,
			ConsecutiveUpDays: rec.Signals.ConsecutiveUpDays,
		})
	}
	return out
}

func (e *Engine) symbols() []string {
	out := make([]string, 0, len(e.records))
	for sym := range e.records {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
