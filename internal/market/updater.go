package market

import (
	"math"

	"github.com/rs/zerolog"

	"phenomsim/internal/rng"
)

// UpdaterOptions tune the normal-day stochastic model.
type UpdaterOptions struct {
	// ActiveNoiseDamping scales noise while a phenomenon is attached but silent.
	ActiveNoiseDamping float64
	// ConvergenceSpeed pulls price toward fair value on quiet days.
	ConvergenceSpeed float64
	// ActiveConvergenceSpeed replaces ConvergenceSpeed while a phenomenon is attached.
	ActiveConvergenceSpeed float64
	// IsActive reports whether any phenomenon holds a record on the instrument.
	IsActive func(*Instrument) bool
}

// PriceUpdate records what the updater did to one instrument this tick.
type PriceUpdate struct {
	Symbol   string
	Previous float64
	Price    float64
	Effect   float64
	// Pure is true when the pending effect fully determined the move.
	Pure     bool
	Expected *EmittedEvent
}

// Updater is the single aggregation point for per-tick phenomenon effects.
type Updater struct {
	opts   UpdaterOptions
	random rng.Source
	logger zerolog.Logger
}

// NewUpdater constructs an updater. A nil source falls back to an ambient one.
func NewUpdater(opts UpdaterOptions, random rng.Source, logger zerolog.Logger) *Updater {
	if opts.ActiveNoiseDamping <= 0 {
		opts.ActiveNoiseDamping = 0.3
	}
	if opts.ConvergenceSpeed <= 0 {
		opts.ConvergenceSpeed = 0.15
	}
	if opts.ActiveConvergenceSpeed <= 0 {
		opts.ActiveConvergenceSpeed = 0.05
	}
	if opts.IsActive == nil {
		opts.IsActive = func(*Instrument) bool { return false }
	}
	if random == nil {
		random = rng.NewAmbient()
	}
	return &Updater{opts: opts, random: random, logger: logger.With().Str("component", "market_updater").Logger()}
}

// Apply closes the tick for every instrument. When the summed pending effect is
// nonzero the move is exactly price*(1+Σeffects); otherwise the normal model runs.
func (u *Updater) Apply(instruments []*Instrument) []PriceUpdate {
	updates := make([]PriceUpdate, 0, len(instruments))
	for _, inst := range instruments {
		updates = append(updates, u.apply(inst))
	}
	return updates
}

func (u *Updater) apply(inst *Instrument) PriceUpdate {
	effect, _, expected := inst.consume()

	inst.SentimentOffset = math.Max(-0.8, math.Min(3.0, inst.SentimentOffset))
	if math.Abs(inst.SentimentOffset) > 0.01 {
		inst.SentimentOffset *= 0.98
	}

	previous := inst.Price
	var next float64
	pure := effect != 0
	if pure {
		next = Project(inst, effect)
	} else {
		next = settle(inst, inst.Price*(1+u.drift(inst)))
	}

	inst.PreviousPrice = previous
	inst.Price = next

	if expected != nil && pure && expected.ExpectedPrice != next {
		u.logger.Warn().Str("symbol", inst.Symbol).
			Float64("expected", expected.ExpectedPrice).
			Float64("applied", next).
			Msg("emitted price diverged from applied price")
	}

	return PriceUpdate{
		Symbol:   inst.Symbol,
		Previous: previous,
		Price:    next,
		Effect:   effect,
		Pure:     pure,
		Expected: expected,
	}
}

func (u *Updater) drift(inst *Instrument) float64 {
	active := u.opts.IsActive(inst)

	fair := inst.BasePrice
	if fair <= 0 {
		fair = inst.Price
	}
	target := fair * (1 + inst.SentimentOffset)

	noiseScale := 1.0
	convergence := u.opts.ConvergenceSpeed
	trendScale := 1.0
	if active {
		noiseScale = u.opts.ActiveNoiseDamping
		convergence = u.opts.ActiveConvergenceSpeed
		trendScale = 0.3
	}

	volatility := inst.Volatility * (1 + inst.VolatilityBoost)
	noise := (u.random.Float64() - 0.5) * 2 * volatility * noiseScale

	correction := 0.0
	if target > 0 {
		correction = -((inst.Price - target) / target) * convergence
	}
	return inst.Trend*0.05*trendScale + correction + noise
}
