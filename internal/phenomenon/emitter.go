package phenomenon

import (
	"fmt"

	"github.com/rs/zerolog"

	"phenomsim/internal/market"
)

// Emission is the loggable record returned for every price event.
type Emission struct {
	Event  market.EmittedEvent
	Change float64
	Log    string
}

// Emitter translates a fractional change into a rounded expected price, a delta
// recomputed from that rounded price, and a parity record on the instrument.
type Emitter struct {
	kind   Kind
	tag    string
	day    func() int
	logger zerolog.Logger
}

// NewEmitter builds an emitter whose log lines are prefixed with tag.
func NewEmitter(kind Kind, tag string, day func() int, logger zerolog.Logger) *Emitter {
	if day == nil {
		day = func() int { return 0 }
	}
	return &Emitter{kind: kind, tag: tag, day: day, logger: logger}
}

// Emit queues change on the instrument, adding to any contribution a sibling
// phenomenon left this tick, and records the aggregate expectation.
func (e *Emitter) Emit(inst *market.Instrument, change float64, label, extra string) Emission {
	total := inst.AddEffect(string(e.kind), change)
	expected := market.Project(inst, total)
	delta := market.Delta(inst.Price, expected)

	ev := market.EmittedEvent{
		Source:        string(e.kind),
		Label:         label,
		Effect:        total,
		ExpectedPrice: expected,
		ExpectedDelta: delta,
	}
	inst.SetLastEmitted(ev)

	line := fmt.Sprintf("[%s] D%d: %s %s [%s Δ%s]", e.tag, e.day(), inst.Symbol, label,
		market.FormatPrice(expected), market.FormatPct(delta))
	if extra != "" {
		line += " " + extra
	}
	e.logger.Debug().Str("symbol", inst.Symbol).Str("label", label).
		Float64("change", change).Float64("expected_price", expected).
		Msg(line)

	return Emission{Event: ev, Change: change, Log: line}
}
