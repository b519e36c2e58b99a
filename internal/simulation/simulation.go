// Package simulation drives the simulated market one day at a time: crash and
// insider checks, phenomenon ticks, price updates, coupling validation and
// persistence.
package simulation

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"phenomsim/internal/alerting"
	"phenomsim/internal/config"
	"phenomsim/internal/coupling"
	"phenomsim/internal/market"
	"phenomsim/internal/news"
	"phenomsim/internal/observability"
	"phenomsim/internal/phenomenon"
	"phenomsim/internal/phenomenon/deadcat"
	"phenomsim/internal/phenomenon/insider"
	"phenomsim/internal/rng"
	"phenomsim/internal/scheduler"
	"phenomsim/internal/storage"
)

// Mode names how a run was started.
type Mode string

// Run modes.
const (
	ModeSimulate Mode = "simulate"
	ModeValidate Mode = "validate"
	ModeLive     Mode = "run"
)

// Options carries the optional collaborators of a Simulator.
type Options struct {
	Mode Mode
	// Validate attaches a coupling validator to every tick.
	Validate bool
	// RunID fixes the run identifier. Default: a fresh random id.
	RunID uuid.UUID
	// Random replaces the seeded source built from the config.
	Random     rng.Source
	Repository storage.Repository
	Metrics    *observability.Metrics
	Scheduler  *scheduler.Scheduler
	Notifier   alerting.Notifier
}

type queuedTrigger struct {
	kind     phenomenon.Kind
	symbol   string
	severity float64
}

// Simulator owns one market and the phenomena acting on it.
type Simulator struct {
	cfg         *config.Config
	mode        Mode
	runID       uuid.UUID
	instruments []*market.Instrument
	feed        *news.Feed
	random      rng.Source

	deadcat   *deadcat.Engine
	insider   *insider.Engine
	phenomena []phenomenon.Phenomenon
	updater   *market.Updater
	validator *coupling.Validator

	repo      storage.Repository
	locker    storage.AdvisoryLocker
	lockKey   int64
	metrics   *observability.Metrics
	scheduler *scheduler.Scheduler
	notifier  alerting.Notifier
	channels  []string
	alertsOn  bool

	disabled map[phenomenon.Kind]bool
	queued   []queuedTrigger
	day      int
	reported int
	started  bool
	logger   zerolog.Logger
}

// New builds a simulator from configuration.
func New(cfg *config.Config, opts Options, logger zerolog.Logger) (*Simulator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	random := opts.Random
	if random == nil {
		random = rng.NewSeeded(cfg.Simulation.Seed)
	}
	runID := opts.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeSimulate
	}

	var locker storage.AdvisoryLocker
	if l, ok := opts.Repository.(storage.AdvisoryLocker); ok {
		locker = l
	}

	s := &Simulator{
		cfg:         cfg,
		mode:        mode,
		runID:       runID,
		instruments: buildInstruments(cfg.Simulation.Instruments),
		feed:        news.NewFeed(),
		random:      random,
		repo:        opts.Repository,
		locker:      locker,
		lockKey:     cfg.Scheduler.AdvisoryLockKey,
		metrics:     opts.Metrics,
		scheduler:   opts.Scheduler,
		notifier:    opts.Notifier,
		channels:    cfg.Alerting.Channels,
		alertsOn:    cfg.Alerting.Enabled,
		disabled:    make(map[phenomenon.Kind]bool),
		logger:      logger.With().Str("component", "simulation").Str("run_id", runID.String()).Logger(),
	}
	for _, k := range cfg.Simulation.DisabledKinds {
		s.disabled[phenomenon.Kind(k)] = true
	}

	deps := phenomenon.Deps{
		Instruments:  func() []*market.Instrument { return s.instruments },
		News:         s.feed,
		Enabled:      func(k phenomenon.Kind) bool { return !s.disabled[k] },
		Random:       random,
		Logger:       &logger,
		OnTransition: s.onTransition,
	}
	s.insider = insider.New(cfg.Insider, deps)
	s.deadcat = deadcat.New(cfg.DeadCat, deps)
	// Insider flags must be in place before a bounce resolves on the same tick.
	s.phenomena = []phenomenon.Phenomenon{s.insider, s.deadcat}

	s.updater = market.NewUpdater(market.UpdaterOptions{
		ActiveNoiseDamping:     cfg.Simulation.ActiveNoiseDamping,
		ConvergenceSpeed:       cfg.Simulation.ConvergenceSpeed,
		ActiveConvergenceSpeed: cfg.Simulation.ActiveConvergenceSpeed,
		IsActive:               s.isActive,
	}, random, logger)

	if opts.Validate {
		s.validator = coupling.NewValidator(s.phenomena, coupling.Options{
			PriceTolerance:     cfg.Validation.PriceTolerance,
			PctTolerance:       cfg.Validation.PctTolerance,
			SentimentTolerance: cfg.Validation.SentimentTolerance,
		}, logger)
	}

	return s, nil
}

func buildInstruments(seeds []config.InstrumentConfig) []*market.Instrument {
	out := make([]*market.Instrument, 0, len(seeds))
	for _, seed := range seeds {
		inst := market.NewInstrument(seed.Symbol, seed.Price, seed.Volatility)
		if seed.Name != "" {
			inst.Name = seed.Name
		}
		inst.IsMeme = seed.Meme
		inst.Trend = seed.Trend
		out = append(out, inst)
	}
	return out
}

func (s *Simulator) isActive(inst *market.Instrument) bool {
	for _, p := range s.phenomena {
		if p.PhaseOf(inst.Symbol) != phenomenon.Inactive {
			return true
		}
	}
	return false
}

func (s *Simulator) onTransition(kind phenomenon.Kind, symbol string, from, to phenomenon.Phase) {
	s.logger.Debug().Str("kind", string(kind)).Str("symbol", symbol).
		Str("from", string(from)).Str("to", string(to)).Int("day", s.day).Msg("phase transition")
	if s.metrics != nil {
		s.metrics.RecordTransition(string(kind), string(from), string(to))
	}
}

// RunID identifies this run in storage.
func (s *Simulator) RunID() uuid.UUID { return s.runID }

// Day is the last completed simulated day.
func (s *Simulator) Day() int { return s.day }

// Instruments returns the live instruments in configuration order.
func (s *Simulator) Instruments() []*market.Instrument { return s.instruments }

// Phenomena returns every registered phenomenon in tick order.
func (s *Simulator) Phenomena() []phenomenon.Phenomenon { return s.phenomena }

// Instrument looks up one instrument by symbol.
func (s *Simulator) Instrument(symbol string) (*market.Instrument, bool) {
	for _, inst := range s.instruments {
		if inst.Symbol == symbol {
			return inst, true
		}
	}
	return nil, false
}

// SetEnabled switches a phenomenon kind on or off. A disabled kind's records
// are cleared at the start of the next tick.
func (s *Simulator) SetEnabled(kind phenomenon.Kind, enabled bool) {
	if enabled {
		delete(s.disabled, kind)
		return
	}
	s.disabled[kind] = true
}

// ScheduleTrigger queues a phenomenon start on symbol for the next day, ahead
// of that day's random checks. The trigger still fails if the instrument
// already carries a record of that kind.
func (s *Simulator) ScheduleTrigger(kind phenomenon.Kind, symbol string, severity float64) error {
	if _, ok := s.Instrument(symbol); !ok {
		return fmt.Errorf("schedule trigger: unknown symbol %q", symbol)
	}
	if s.phenomenon(kind) == nil {
		return fmt.Errorf("schedule trigger: unknown kind %q", kind)
	}
	s.queued = append(s.queued, queuedTrigger{kind: kind, symbol: symbol, severity: severity})
	return nil
}

func (s *Simulator) phenomenon(kind phenomenon.Kind) phenomenon.Phenomenon {
	for _, p := range s.phenomena {
		if p.Kind() == kind {
			return p
		}
	}
	return nil
}

// ActivePatterns lists every active record across phenomena, ordered by kind then symbol.
func (s *Simulator) ActivePatterns() []phenomenon.Snapshot {
	var out []phenomenon.Snapshot
	for _, p := range s.phenomena {
		out = append(out, p.ActivePatterns()...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// TutorialHint returns the first hint any phenomenon offers for it.
func (s *Simulator) TutorialHint(it news.Item) *phenomenon.Hint {
	for _, p := range s.phenomena {
		if h := p.TutorialHint(it); h != nil {
			return h
		}
	}
	return nil
}

// Report returns the validator's findings so far. ok is false when the run is
// not validating.
func (s *Simulator) Report() (coupling.Report, bool) {
	if s.validator == nil {
		return coupling.Report{}, false
	}
	return s.validator.Report(), true
}
