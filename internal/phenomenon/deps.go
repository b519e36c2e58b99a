package phenomenon

import (
	"github.com/rs/zerolog"

	"phenomsim/internal/market"
	"phenomsim/internal/news"
	"phenomsim/internal/rng"
)

// Deps is the injection surface supplied at construction. Every field is
// optional; WithDefaults documents and fills the fallback for each.
type Deps struct {
	// Instruments returns the live instrument collection. Default: none.
	Instruments func() []*market.Instrument
	// News is the day's outbound news list. Default: a private feed.
	News *news.Feed
	// MemeMultiplier scales move sizes. Default: DefaultMemeMultiplier.
	MemeMultiplier func(*market.Instrument) float64
	// Choose picks an index in [0, n). Default: uniform via Random.
	Choose func(n int) int
	// Enabled gates a phenomenon kind. Default: always enabled.
	Enabled func(Kind) bool
	// Random is the single source of randomness. Default: rng.NewAmbient.
	Random rng.Source
	// Logger receives emission and transition logs. Default: zerolog.Nop.
	Logger *zerolog.Logger
	// OnTransition observes every phase change. Default: no-op.
	OnTransition func(kind Kind, symbol string, from, to Phase)
}

// DefaultMemeMultiplier amplifies meme or highly volatile instruments by 1.5x.
func DefaultMemeMultiplier(inst *market.Instrument) float64 {
	if inst.IsMeme || inst.Volatility > 0.05 {
		return 1.5
	}
	return 1.0
}

// WithDefaults returns a copy of d with every missing collaborator filled.
func (d Deps) WithDefaults() Deps {
	if d.Instruments == nil {
		d.Instruments = func() []*market.Instrument { return nil }
	}
	if d.News == nil {
		d.News = news.NewFeed()
	}
	if d.MemeMultiplier == nil {
		d.MemeMultiplier = DefaultMemeMultiplier
	}
	if d.Random == nil {
		d.Random = rng.NewAmbient()
	}
	if d.Choose == nil {
		src := d.Random
		d.Choose = func(n int) int {
			if n <= 0 {
				return 0
			}
			return rng.IntBetween(src, 0, n-1)
		}
	}
	if d.Enabled == nil {
		d.Enabled = func(Kind) bool { return true }
	}
	if d.OnTransition == nil {
		d.OnTransition = func(Kind, string, Phase, Phase) {}
	}
	if d.Logger == nil {
		nop := zerolog.Nop()
		d.Logger = &nop
	}
	return d
}
