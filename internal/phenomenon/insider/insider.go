// Package insider models disclosed insider purchases. While a record is active
// the instrument carries insider buying flags that other phenomena read as an
// external signal.
package insider

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"phenomsim/internal/market"
	"phenomsim/internal/news"
	"phenomsim/internal/phenomenon"
	"phenomsim/internal/rng"
)

// Kind identifies the insider buying phenomenon.
const Kind phenomenon.Kind = "insider_buying"

// Accumulation is the only active phase.
const Accumulation phenomenon.Phase = "ACCUMULATION"

// News kinds.
const (
	NewsFiling = "insider_filing"
	NewsWindow = "insider_window_closed"
)

// Transitions is the phase graph.
var Transitions = phenomenon.TransitionTable{
	phenomenon.Inactive: {Accumulation},
	Accumulation:        {phenomenon.Inactive},
}

// Config is the insider model.
type Config struct {
	DailyChance      float64 `mapstructure:"daily_chance"`
	ClusterThreshold float64 `mapstructure:"cluster_threshold"`
	MinDays          int     `mapstructure:"min_days"`
	MaxDays          int     `mapstructure:"max_days"`
	DisclosureMin    float64 `mapstructure:"disclosure_min"`
	DisclosureMax    float64 `mapstructure:"disclosure_max"`
}

// DefaultConfig returns the reference model.
func DefaultConfig() Config {
	return Config{
		DailyChance:      0.01,
		ClusterThreshold: 0.6,
		MinDays:          5,
		MaxDays:          15,
		DisclosureMin:    0.005,
		DisclosureMax:    0.015,
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.DailyChance < 0 || c.DailyChance > 1 {
		return fmt.Errorf("daily_chance must be in [0, 1], got %v", c.DailyChance)
	}
	if c.MinDays < 1 || c.MaxDays < c.MinDays {
		return fmt.Errorf("days must satisfy 1 <= min <= max, got %d..%d", c.MinDays, c.MaxDays)
	}
	if c.DisclosureMin < 0 || c.DisclosureMax < c.DisclosureMin {
		return fmt.Errorf("disclosure must satisfy 0 <= min <= max, got %v..%v", c.DisclosureMin, c.DisclosureMax)
	}
	return nil
}

type record struct {
	Phase         phenomenon.Phase `json:"phase"`
	DaysRemaining int              `json:"days_remaining"`
	Cluster       bool             `json:"cluster"`
	Strength      float64          `json:"strength"`
	skip          bool
}

// Engine owns every insider record.
type Engine struct {
	cfg     Config
	deps    phenomenon.Deps
	emitter *phenomenon.Emitter
	records map[string]*record
	logger  zerolog.Logger
}

var _ phenomenon.Phenomenon = (*Engine)(nil)

// New constructs an engine.
func New(cfg Config, deps phenomenon.Deps) *Engine {
	deps = deps.WithDefaults()
	logger := deps.Logger.With().Str("component", "insider").Logger()
	return &Engine{
		cfg:     cfg,
		deps:    deps,
		emitter: phenomenon.NewEmitter(Kind, "INS", deps.News.Day, logger),
		records: make(map[string]*record),
		logger:  logger,
	}
}

// Kind implements phenomenon.Phenomenon.
func (e *Engine) Kind() phenomenon.Kind { return Kind }

// Transitions implements phenomenon.Phenomenon.
func (e *Engine) Transitions() phenomenon.TransitionTable { return Transitions }

// PhaseOf returns the current phase.
func (e *Engine) PhaseOf(symbol string) phenomenon.Phase {
	if rec, ok := e.records[symbol]; ok {
		return rec.Phase
	}
	return phenomenon.Inactive
}

// Trigger opens a buying window. Strength at or above the cluster threshold
// marks a cluster buy.
func (e *Engine) Trigger(inst *market.Instrument, strength float64) bool {
	if inst == nil || !e.deps.Enabled(Kind) {
		return false
	}
	if _, exists := e.records[inst.Symbol]; exists {
		return false
	}
	rec := &record{
		Phase:         Accumulation,
		DaysRemaining: rng.IntBetween(e.deps.Random, e.cfg.MinDays, e.cfg.MaxDays),
		Cluster:       strength >= e.cfg.ClusterThreshold,
		Strength:      strength,
		skip:          true,
	}
	e.records[inst.Symbol] = rec
	inst.Insider = market.InsiderActivity{Buying: true, ClusterBuy: rec.Cluster}

	change := rng.Between(e.deps.Random, e.cfg.DisclosureMin, e.cfg.DisclosureMax)
	e.emitter.Emit(inst, change, "DISCLOSURE", fmt.Sprintf("(cluster %t)", rec.Cluster))

	headline := fmt.Sprintf("%s director discloses share purchase in Form 4 filing", inst.Symbol)
	if rec.Cluster {
		headline = fmt.Sprintf("%s insiders disclose cluster purchase in Form 4 filings", inst.Symbol)
	}
	e.publish(news.Item{
		Symbol:      inst.Symbol,
		Source:      string(Kind),
		Kind:        NewsFiling,
		Phase:       string(Accumulation),
		Headline:    headline,
		Description: "Company insiders are buying shares with their own money.",
		Sentiment:   news.Neutral,
		Meta:        news.Metadata{PatternNote: "insider buying"},
	})
	e.deps.OnTransition(Kind, inst.Symbol, phenomenon.Inactive, Accumulation)
	return true
}

// CheckEvents rolls the daily disclosure chance.
func (e *Engine) CheckEvents() {
	if !e.deps.Enabled(Kind) {
		return
	}
	for _, inst := range e.deps.Instruments() {
		if _, active := e.records[inst.Symbol]; active {
			continue
		}
		if rng.Chance(e.deps.Random, e.cfg.DailyChance) {
			e.Trigger(inst, e.deps.Random.Float64())
		}
	}
}

// ProcessTick counts down every buying window.
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
		if rec.DaysRemaining < 1 {
			rec.DaysRemaining = 1
		}
		rec.DaysRemaining--
		if rec.DaysRemaining > 0 {
			continue
		}
		e.close(inst)
	}
}

func (e *Engine) close(inst *market.Instrument) {
	delete(e.records, inst.Symbol)
	inst.Insider = market.InsiderActivity{}
	e.publish(news.Item{
		Symbol:     inst.Symbol,
		Source:     string(Kind),
		Kind:       NewsWindow,
		Phase:      string(phenomenon.Inactive),
		Headline:   fmt.Sprintf("%s insider filing window closes", inst.Symbol),
		Sentiment:  news.Neutral,
		Historical: true,
	})
	e.deps.OnTransition(Kind, inst.Symbol, Accumulation, phenomenon.Inactive)
}

// ForceClear drops the record, its flags and its pending effect.
func (e *Engine) ForceClear(inst *market.Instrument) bool {
	if inst == nil {
		return false
	}
	if _, ok := e.records[inst.Symbol]; !ok {
		return false
	}
	delete(e.records, inst.Symbol)
	inst.Insider = market.InsiderActivity{}
	inst.DropEffects(string(Kind))
	return true
}

func (e *Engine) publish(item news.Item) {
	if !e.deps.News.Publish(item) {
		e.logger.Debug().Str("symbol", item.Symbol).Msg("duplicate headline dropped")
	}
}

// ActivePatterns returns every open window ordered by symbol.
func (e *Engine) ActivePatterns() []phenomenon.Snapshot {
	out := make([]phenomenon.Snapshot, 0, len(e.records))
	for _, sym := range e.symbols() {
		rec := e.records[sym]
		snap := phenomenon.Snapshot{Kind: Kind, Symbol: sym, Phase: rec.Phase, DaysRemaining: rec.DaysRemaining}
		if rec.Cluster {
			snap.Outcome = "CLUSTER"
		}
		out = append(out, snap)
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

// TutorialHint explains insider filings.
func (e *Engine) TutorialHint(it news.Item) *phenomenon.Hint {
	if it.Source != string(Kind) || it.Kind != NewsFiling {
		return nil
	}
	return &phenomenon.Hint{
		Type:        "INSIDER BUYING - CONFIRMING SIGNAL",
		Description: "Insiders bought shares on the open market.",
		Implication: "Raises the odds that a concurrent bounce is a genuine reversal.",
		Action:      "Treat as one signal among several, not a buy trigger on its own.",
		Timing:      "Effect lasts while the filing window is open",
		Catalyst:    "Cluster buys by several insiders carry the most weight",
	}
}

// Export serializes every record.
func (e *Engine) Export() []phenomenon.SavedRecord {
	out := make([]phenomenon.SavedRecord, 0, len(e.records))
	for _, sym := range e.symbols() {
		rec := e.records[sym]
		state, err := json.Marshal(rec)
		if err != nil {
			e.logger.Error().Err(err).Str("symbol", sym).Msg("failed to encode record")
			continue
		}
		out = append(out, phenomenon.SavedRecord{
			Kind: Kind, Symbol: sym, Phase: rec.Phase, DaysRemaining: rec.DaysRemaining, State: state,
		})
	}
	return out
}

// Restore replaces every record and re-applies the instrument flags.
func (e *Engine) Restore(saved []phenomenon.SavedRecord) error {
	records := make(map[string]*record, len(saved))
	for _, s := range saved {
		if s.Kind != Kind {
			return fmt.Errorf("restore %s: %w: %q", s.Symbol, phenomenon.ErrKindMismatch, s.Kind)
		}
		if s.Phase != Accumulation {
			return fmt.Errorf("restore %s: %w: %q", s.Symbol, phenomenon.ErrUnknownPhase, s.Phase)
		}
		rec := &record{}
		if len(s.State) > 0 {
			if err := json.Unmarshal(s.State, rec); err != nil {
				return fmt.Errorf("restore %s: decode state: %w", s.Symbol, err)
			}
		}
		rec.Phase = s.Phase
		rec.DaysRemaining = s.DaysRemaining
		records[s.Symbol] = rec
	}
	e.records = records
	e.Reapply()
	return nil
}

// Reapply sets instrument flags from the records.
func (e *Engine) Reapply() {
	for _, inst := range e.deps.Instruments() {
		if rec, ok := e.records[inst.Symbol]; ok {
			inst.Insider = market.InsiderActivity{Buying: true, ClusterBuy: rec.Cluster}
		}
	}
}
