package market

// InsiderActivity carries externally observed insider signals for an instrument.
type InsiderActivity struct {
	Buying     bool `json:"buying"`
	ClusterBuy bool `json:"cluster_buy"`
}

// Effect is one phenomenon's fractional price contribution for the current tick.
type Effect struct {
	Source string
	Delta  float64
}

// EmittedEvent is the parity record left by the most recent emission on an instrument.
// ExpectedPrice and ExpectedDelta reflect the aggregate of every effect pending this tick.
type EmittedEvent struct {
	Source        string
	Label         string
	Effect        float64
	ExpectedPrice float64
	ExpectedDelta float64
}

// Instrument is a simulated tradable symbol.
type Instrument struct {
	Symbol           string
	Name             string
	Price            float64
	BasePrice        float64
	PreviousPrice    float64
	Volatility       float64
	VolatilityBoost  float64
	Stability        float64
	IsMeme           bool
	Trend            float64
	SentimentOffset  float64
	VolumeMultiplier float64
	Insider          InsiderActivity

	effects     []Effect
	lastEmitted *EmittedEvent
}

// NewInstrument builds an instrument at its base price.
func NewInstrument(symbol string, price, volatility float64) *Instrument {
	return &Instrument{
		Symbol:           symbol,
		Name:             symbol + " Corp",
		Price:            price,
		BasePrice:        price,
		PreviousPrice:    price,
		Volatility:       volatility,
		Stability:        0.5,
		VolumeMultiplier: 1.0,
	}
}

// AddEffect accumulates a contribution for this tick and returns the new total.
// Contributions from different sources compose by addition.
func (i *Instrument) AddEffect(source string, delta float64) float64 {
	i.effects = append(i.effects, Effect{Source: source, Delta: delta})
	return i.PendingEffect()
}

// PendingEffect sums every contribution pending this tick in insertion order.
func (i *Instrument) PendingEffect() float64 {
	total := 0.0
	for _, e := range i.effects {
		total += e.Delta
	}
	return total
}

// Effects returns a copy of the pending contributions.
func (i *Instrument) Effects() []Effect {
	out := make([]Effect, len(i.effects))
	copy(out, i.effects)
	return out
}

// HasPendingEffect reports whether any contribution is queued, even a net-zero one.
func (i *Instrument) HasPendingEffect() bool {
	return len(i.effects) > 0
}

// DropEffects discards every pending contribution from source and refreshes the parity record.
func (i *Instrument) DropEffects(source string) {
	kept := i.effects[:0]
	for _, e := range i.effects {
		if e.Source != source {
			kept = append(kept, e)
		}
	}
	i.effects = kept

	if len(i.effects) == 0 {
		i.lastEmitted = nil
		return
	}
	total := i.PendingEffect()
	last := i.effects[len(i.effects)-1]
	expected := Project(i, total)
	i.lastEmitted = &EmittedEvent{
		Source:        last.Source,
		Label:         "RECOMPUTED",
		Effect:        total,
		ExpectedPrice: expected,
		ExpectedDelta: Delta(i.Price, expected),
	}
}

// SetLastEmitted stores the parity record for downstream checks.
func (i *Instrument) SetLastEmitted(ev EmittedEvent) {
	i.lastEmitted = &ev
}

// LastEmitted returns the parity record for this tick, or nil when nothing was emitted.
func (i *Instrument) LastEmitted() *EmittedEvent {
	if i.lastEmitted == nil {
		return nil
	}
	ev := *i.lastEmitted
	return &ev
}

func (i *Instrument) consume() (float64, bool, *EmittedEvent) {
	total := i.PendingEffect()
	had := len(i.effects) > 0
	ev := i.LastEmitted()
	i.effects = i.effects[:0]
	i.lastEmitted = nil
	return total, had, ev
}
