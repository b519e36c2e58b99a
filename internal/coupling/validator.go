package coupling

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"phenomsim/internal/market"
	"phenomsim/internal/news"
	"phenomsim/internal/phenomenon"
)

// Options tune validator tolerances.
type Options struct {
	// PriceTolerance is the largest accepted gap between emitted and applied price.
	PriceTolerance float64
	// PctTolerance is the largest accepted gap between emitted and realized delta.
	PctTolerance float64
	// SentimentTolerance is the opposite move tolerated under a tagged sentiment.
	SentimentTolerance float64
}

func (o Options) withDefaults() Options {
	if o.PriceTolerance <= 0 {
		o.PriceTolerance = 0.005
	}
	if o.PctTolerance <= 0 {
		o.PctTolerance = 0.0015
	}
	if o.SentimentTolerance <= 0 {
		o.SentimentTolerance = 0.03
	}
	return o
}

type phaseKey struct {
	kind   phenomenon.Kind
	symbol string
}

type pendingTick struct {
	expected *market.EmittedEvent
	sources  map[string]bool
}

// Validator observes a running simulation tick by tick. The driver calls
// BeginTick before any phenomenon runs, AfterPhenomena once every phenomenon
// has ticked, and AfterUpdate with the updater's result.
type Validator struct {
	phenomena []phenomenon.Phenomenon
	kinds     map[string]bool
	opts      Options
	logger    zerolog.Logger

	day      int
	before   map[phaseKey]phenomenon.Phase
	pending  map[string]pendingTick
	items    []news.Item
	seen     map[string]struct{}
	report   Report
	finished bool
}

// NewValidator builds a validator over the given phenomena.
func NewValidator(phenomena []phenomenon.Phenomenon, opts Options, logger zerolog.Logger) *Validator {
	kinds := make(map[string]bool, len(phenomena))
	coverage := make(map[phenomenon.Kind]map[phenomenon.Phase]int, len(phenomena))
	for _, p := range phenomena {
		kinds[string(p.Kind())] = true
		coverage[p.Kind()] = make(map[phenomenon.Phase]int)
	}
	return &Validator{
		phenomena: phenomena,
		kinds:     kinds,
		opts:      opts.withDefaults(),
		logger:    logger.With().Str("component", "coupling").Logger(),
		seen:      make(map[string]struct{}),
		report: Report{
			Categories: make(map[string]*CategoryStats),
			Coverage:   coverage,
		},
	}
}

// BeginTick records every phase before the day's processing.
func (v *Validator) BeginTick(day int, instruments []*market.Instrument) {
	v.day = day
	v.report.Ticks++
	if day > v.report.Days {
		v.report.Days = day
	}
	v.before = make(map[phaseKey]phenomenon.Phase, len(instruments)*len(v.phenomena))
	for _, p := range v.phenomena {
		for _, inst := range instruments {
			v.before[phaseKey{p.Kind(), inst.Symbol}] = p.PhaseOf(inst.Symbol)
		}
	}
	v.pending = nil
	v.items = nil
}

// AfterPhenomena checks transitions, headlines and emitted events before prices move.
func (v *Validator) AfterPhenomena(instruments []*market.Instrument, items []news.Item) {
	newsFor := make(map[phaseKey]int)
	for _, it := range items {
		newsFor[phaseKey{phenomenon.Kind(it.Source), it.Symbol}]++
	}

	for _, p := range v.phenomena {
		table := p.Transitions()
		for _, inst := range instruments {
			key := phaseKey{p.Kind(), inst.Symbol}
			from, to := v.before[key], p.PhaseOf(inst.Symbol)
			if from == "" {
				from = phenomenon.Inactive
			}
			if from == to {
				continue
			}
			if to != phenomenon.Inactive {
				v.report.Coverage[p.Kind()][to]++
			}
			if !table.Allows(from, to) {
				v.add(Diagnostic{
					Symbol: inst.Symbol, Kind: KindInvalidTransition, Severity: SeverityError,
					Source: p.Kind(), From: from, To: to,
					Message: fmt.Sprintf("%s: %s -> %s is not in the transition table", p.Kind(), from, to),
				})
			}
			if newsFor[key] == 0 {
				v.add(Diagnostic{
					Symbol: inst.Symbol, Kind: KindOrphanPhase, Severity: SeverityError,
					Source: p.Kind(), From: from, To: to,
					Message: fmt.Sprintf("%s: %s -> %s produced no news", p.Kind(), from, to),
				})
			}
		}
	}

	v.pending = make(map[string]pendingTick, len(instruments))
	for _, inst := range instruments {
		pt := pendingTick{expected: inst.LastEmitted(), sources: make(map[string]bool)}
		for _, e := range inst.Effects() {
			pt.sources[e.Source] = true
		}
		v.pending[inst.Symbol] = pt
	}

	for _, it := range items {
		v.report.NewsItems++
		dup := fmt.Sprintf("%d\x00%s\x00%s", v.day, it.Symbol, it.Headline)
		if _, ok := v.seen[dup]; ok {
			v.add(Diagnostic{
				Symbol: it.Symbol, Kind: KindDuplicateHeadline, Severity: SeverityError,
				Source: phenomenon.Kind(it.Source), Headline: it.Headline,
				Message: "headline published twice on the same day",
			})
		}
		v.seen[dup] = struct{}{}

		if it.Sentiment != news.Neutral && v.kinds[it.Source] && !v.pending[it.Symbol].sources[it.Source] {
			v.add(Diagnostic{
				Symbol: it.Symbol, Kind: KindMissingEvent, Severity: SeverityError,
				Source: phenomenon.Kind(it.Source), Headline: it.Headline,
				Message: "directional news without an emitted price event",
			})
		}
	}
	v.items = items
}

// AfterUpdate checks parity and headline direction against the applied prices.
func (v *Validator) AfterUpdate(updates []market.PriceUpdate) {
	bySymbol := make(map[string]market.PriceUpdate, len(updates))
	for _, u := range updates {
		bySymbol[u.Symbol] = u
		if !u.Pure {
			continue
		}
		v.report.ParityChecks++
		pt := v.pending[u.Symbol]
		if pt.expected == nil {
			v.add(Diagnostic{
				Symbol: u.Symbol, Kind: KindMissingEvent, Severity: SeverityError,
				Actual:  u.Price,
				Message: fmt.Sprintf("effect %+.4f applied without an emitted event", u.Effect),
			})
			continue
		}
		if math.Abs(pt.expected.ExpectedPrice-u.Price) > v.opts.PriceTolerance {
			v.add(Diagnostic{
				Symbol: u.Symbol, Kind: KindParity, Severity: SeverityError,
				Source: phenomenon.Kind(pt.expected.Source), Expected: pt.expected.ExpectedPrice, Actual: u.Price,
				Message: fmt.Sprintf("log says %s, price shows %s",
					market.FormatPrice(pt.expected.ExpectedPrice), market.FormatPrice(u.Price)),
			})
			continue
		}
		realized := market.Delta(u.Previous, u.Price)
		if math.Abs(pt.expected.ExpectedDelta-realized) > v.opts.PctTolerance {
			v.add(Diagnostic{
				Symbol: u.Symbol, Kind: KindParity, Severity: SeverityError,
				Source: phenomenon.Kind(pt.expected.Source), Expected: pt.expected.ExpectedDelta, Actual: realized,
				Message: fmt.Sprintf("log says %s, price shows %s",
					market.FormatPct(pt.expected.ExpectedDelta), market.FormatPct(realized)),
			})
		}
	}

	for _, it := range v.items {
		u, ok := bySymbol[it.Symbol]
		if !ok {
			continue
		}
		v.checkItem(it, market.Delta(u.Previous, u.Price))
	}
}

func (v *Validator) checkItem(it news.Item, realized float64) {
	if s := it.Sentiment.Sign(); s != 0 && !it.Historical {
		if float64(s)*realized < 0 && math.Abs(realized) > v.opts.SentimentTolerance {
			v.add(Diagnostic{
				Symbol: it.Symbol, Kind: KindSentiment, Severity: SeverityError,
				Source: phenomenon.Kind(it.Source), Headline: it.Headline, Actual: realized,
				Message: fmt.Sprintf("%s item but price moved %s", it.Sentiment, market.FormatPct(realized)),
			})
		}
	}

	c, ok := Classify(it.Headline)
	if !ok {
		return
	}
	v.report.Classified++
	stats := v.report.Categories[c.Category.Name]
	if stats == nil {
		stats = &CategoryStats{}
		v.report.Categories[c.Category.Name] = stats
	}
	stats.Total++

	direction := 1
	if realized < 0 {
		direction = -1
	}
	magnitude := math.Abs(realized)
	correct := direction == c.Category.Direction || magnitude <= c.Category.MaxWrong
	if !correct && !it.Historical {
		stats.Wrong++
		v.add(Diagnostic{
			Symbol: it.Symbol, Kind: KindDirection, Severity: SeverityError,
			Source: phenomenon.Kind(it.Source), Headline: it.Headline,
			Expected: float64(c.Category.Direction), Actual: realized,
			Message: fmt.Sprintf("%q (%s) but price moved %s", c.Keyword, c.Category.Name, market.FormatPct(realized)),
		})
		return
	}
	stats.Correct++
	if correct && (magnitude < c.Category.MinMagnitude*0.5 || magnitude > c.Category.MaxMagnitude*2) {
		v.add(Diagnostic{
			Symbol: it.Symbol, Kind: KindMagnitude, Severity: SeverityWarning,
			Source: phenomenon.Kind(it.Source), Headline: it.Headline, Actual: realized,
			Message: fmt.Sprintf("%q implies %.1f%%-%.1f%%, moved %s", c.Keyword,
				c.Category.MinMagnitude*100, c.Category.MaxMagnitude*100, market.FormatPct(realized)),
		})
	}
}

// Finish adds coverage findings and returns the report.
func (v *Validator) Finish() Report {
	if v.finished {
		return v.report
	}
	v.finished = true
	for _, p := range v.phenomena {
		for _, phase := range p.Transitions().Reachable() {
			if v.report.Coverage[p.Kind()][phase] > 0 {
				continue
			}
			v.add(Diagnostic{
				Kind: KindMissingPhase, Severity: SeverityError, Source: p.Kind(), To: phase,
				Message: fmt.Sprintf("%s phase %s never occurred", p.Kind(), phase),
			})
		}
	}
	return v.report
}

// Report returns the findings gathered so far without coverage checks.
func (v *Validator) Report() Report {
	return v.report
}

func (v *Validator) add(d Diagnostic) {
	if d.Day == 0 {
		d.Day = v.day
	}
	v.report.Diagnostics = append(v.report.Diagnostics, d)
	ev := v.logger.Warn()
	if d.Severity == SeverityWarning {
		ev = v.logger.Debug()
	}
	ev.Str("kind", string(d.Kind)).Str("symbol", d.Symbol).Int("day", d.Day).Msg(d.Message)
}
