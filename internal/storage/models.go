package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"phenomsim/internal/coupling"
	"phenomsim/internal/market"
	"phenomsim/internal/news"
	"phenomsim/internal/phenomenon"
)

// RunRecord identifies one simulation run.
type RunRecord struct {
	ID          uuid.UUID
	Mode        string
	Seed        int64
	Instruments []string
	StartedAt   time.Time
}

// TickRecord is one instrument's closing price on one simulated day.
type TickRecord struct {
	RunID         uuid.UUID
	Day           int
	Symbol        string
	PreviousPrice decimal.Decimal
	Price         decimal.Decimal
	Effect        float64
	Pure          bool
	// Phases maps each phenomenon kind to the instrument's phase after the tick.
	Phases    map[string]string
	CreatedAt time.Time
}

// NewsRecord is a persisted news item.
type NewsRecord struct {
	RunID uuid.UUID
	Item  news.Item
}

// DiagnosticRecord is a persisted coupling finding.
type DiagnosticRecord struct {
	RunID      uuid.UUID
	Diagnostic coupling.Diagnostic
}

// InstrumentState is the subset of an instrument needed to resume a run.
type InstrumentState struct {
	Symbol           string                 `json:"symbol"`
	Price            float64                `json:"price"`
	BasePrice        float64                `json:"base_price"`
	PreviousPrice    float64                `json:"previous_price"`
	Volatility       float64                `json:"volatility"`
	IsMeme           bool                   `json:"is_meme"`
	SentimentOffset  float64                `json:"sentiment_offset"`
	VolumeMultiplier float64                `json:"volume_multiplier"`
	Insider          market.InsiderActivity `json:"insider"`
}

// StateSnapshot is the resumable state of a run at the end of a day.
type StateSnapshot struct {
	RunID       uuid.UUID                `json:"run_id"`
	Day         int                      `json:"day"`
	Records     []phenomenon.SavedRecord `json:"records"`
	Instruments []InstrumentState        `json:"instruments"`
	SavedAt     time.Time                `json:"saved_at"`
}

// CaptureInstrument copies the resumable fields of inst.
func CaptureInstrument(inst *market.Instrument) InstrumentState {
	return InstrumentState{
		Symbol:           inst.Symbol,
		Price:            inst.Price,
		BasePrice:        inst.BasePrice,
		PreviousPrice:    inst.PreviousPrice,
		Volatility:       inst.Volatility,
		IsMeme:           inst.IsMeme,
		SentimentOffset:  inst.SentimentOffset,
		VolumeMultiplier: inst.VolumeMultiplier,
		Insider:          inst.Insider,
	}
}

// Apply writes the captured fields back onto inst.
func (s InstrumentState) Apply(inst *market.Instrument) {
	inst.Price = s.Price
	inst.BasePrice = s.BasePrice
	inst.PreviousPrice = s.PreviousPrice
	inst.Volatility = s.Volatility
	inst.IsMeme = s.IsMeme
	inst.SentimentOffset = s.SentimentOffset
	inst.VolumeMultiplier = s.VolumeMultiplier
	inst.Insider = s.Insider
}
