package deadcat

import (
	"fmt"

	"phenomsim/internal/market"
	"phenomsim/internal/news"
)

// News kinds produced by the engine. Tutorial hints key off these.
const (
	NewsCrash             = "crash"
	NewsBounce            = "dead_cat_bounce"
	NewsReversalForming   = "reversal_forming"
	NewsReversalConfirmed = "reversal_confirmed"
	NewsCrashResolution   = "crash_resolution"
	NewsRecovery          = "recovery"
	NewsRecoveryComplete  = "recovery_complete"
)

// Bounce sub-phases carried in news metadata.
const (
	BounceStarting      = "starting"
	BounceProgress      = "progress"
	BounceWarning       = "warning"
	BounceFailed        = "failed"
	BounceRepeatAttempt = "repeat_attempt"
	BounceDecline       = "decline"
)

var bounceStartTemplates = []string{
	"%s bounces from lows as bargain hunters emerge",
	"%s stages technical rebound from oversold levels",
	"Relief rally: %s bounces amid short covering",
	"%s finds buyers after steep selloff - oversold bounce",
}

type newsGenerator struct {
	choose func(int) int
}

func (g newsGenerator) pick(templates []string) string {
	i := g.choose(len(templates))
	if i < 0 || i >= len(templates) {
		i = 0
	}
	return templates[i]
}

func item(inst *market.Instrument, rec *record, kind, headline string, sentiment news.Sentiment) news.Item {
	it := news.Item{
		Symbol:    inst.Symbol,
		Source:    string(Kind),
		Kind:      kind,
		Headline:  headline,
		Sentiment: sentiment,
	}
	if rec != nil {
		it.Phase = string(rec.Phase)
		it.Meta.BounceNumber = rec.bounceNumber()
	}
	return it
}

func volumeIndicator(t VolumeTrend) string {
	switch t {
	case VolumeIncreasing:
		return "rising"
	case VolumeDeclining:
		return "declining"
	default:
		return "steady"
	}
}

func (g newsGenerator) crash(inst *market.Instrument, rec *record, c Catalyst, delta float64) news.Item {
	it := item(inst, rec, NewsCrash, fmt.Sprintf("BREAKING: %s %s", inst.Symbol, c.Headline), news.Negative)
	it.Description = fmt.Sprintf("%s %s on %.1fx normal volume.", inst.Symbol, market.FormatPct(delta), rec.VolumeMultiplier)
	it.Meta.Severity = rec.Severity
	it.Meta.VolumeIndicator = "panic"
	it.Meta.EducationalNote = "A bounce usually follows a crash. Most bounces fail."
	return it
}

func (g newsGenerator) crashProgress(inst *market.Instrument, rec *record, delta float64) news.Item {
	it := item(inst, rec, NewsCrash, fmt.Sprintf("%s extends losses as selling pressure persists", inst.Symbol), news.Negative)
	it.Description = fmt.Sprintf("Shares move %s as holders head for the exits.", market.FormatPct(delta))
	it.Meta.Severity = rec.Severity
	it.Meta.VolumeIndicator = "heavy"
	return it
}

func (g newsGenerator) bounceStart(inst *market.Instrument, rec *record, delta float64) news.Item {
	it := item(inst, rec, NewsBounce, fmt.Sprintf(g.pick(bounceStartTemplates), inst.Symbol), news.Positive)
	it.Description = fmt.Sprintf("Shares up %s off the crash low of %s.", market.FormatPct(delta), market.FormatPrice(rec.Refs.CrashLow))
	it.Meta.BouncePhase = BounceStarting
	it.Meta.VolumeIndicator = volumeIndicator(rec.Signals.VolumeTrend)
	it.Meta.PatternNote = "Watch volume and the 50% and 61.8% retracement levels."
	return it
}

func (g newsGenerator) bounceWarning(inst *market.Instrument, rec *record) news.Item {
	it := item(inst, rec, NewsBounce, fmt.Sprintf("%s rally struggles - volume concerns mount", inst.Symbol), news.Neutral)
	it.Description = "Buying interest thins as the rebound stalls below key retracement levels."
	it.Meta.BouncePhase = BounceWarning
	it.Meta.VolumeIndicator = volumeIndicator(rec.Signals.VolumeTrend)
	it.Meta.RetracementLevel = fibLabel(rec.Signals.Retracement)
	return it
}

func (g newsGenerator) bounceHealthy(inst *market.Instrument, rec *record, delta float64) news.Item {
	it := item(inst, rec, NewsBounce, fmt.Sprintf("%s recovery gains momentum - volume supports move", inst.Symbol), news.Positive)
	it.Description = fmt.Sprintf("Shares %s today with %.1f%% of the crash retraced.", market.FormatPct(delta), rec.Signals.Retracement*100)
	it.Meta.BouncePhase = BounceProgress
	it.Meta.VolumeIndicator = volumeIndicator(rec.Signals.VolumeTrend)
	it.Meta.RetracementLevel = fibLabel(rec.Signals.Retracement)
	return it
}

func (g newsGenerator) bounceFailed(inst *market.Instrument, rec *record, fib string, delta float64) news.Item {
	it := item(inst, rec, NewsBounce, fmt.Sprintf("%s rally FAILS at %s - \"Dead Cat Bounce\" confirmed", inst.Symbol, fib), news.Negative)
	it.Description = fmt.Sprintf("Sellers return, shares %s. The bounce could not hold.", market.FormatPct(delta))
	it.Meta.BouncePhase = BounceFailed
	it.Meta.RetracementLevel = fib
	it.Meta.FibonacciNote = "Rejected at " + fib + " retracement"
	it.Meta.EducationalNote = "Without a 61.8% break on rising volume, most bounces are traps."
	return it
}

func (g newsGenerator) declineProgress(inst *market.Instrument, rec *record, delta float64) news.Item {
	it := item(inst, rec, NewsBounce, fmt.Sprintf("%s slides as bounce hopes evaporate", inst.Symbol), news.Negative)
	it.Description = fmt.Sprintf("Shares %s, heading back toward crash lows.", market.FormatPct(delta))
	it.Meta.BouncePhase = BounceDecline
	return it
}

func (g newsGenerator) repeatBounce(inst *market.Instrument, rec *record, delta float64) news.Item {
	n := rec.bounceNumber()
	it := item(inst, rec, NewsBounce, fmt.Sprintf("%s BOUNCES again - attempt #%d underway", inst.Symbol, n), news.Positive)
	it.Description = fmt.Sprintf("Shares %s on thin volume.", market.FormatPct(delta))
	it.Meta.BouncePhase = BounceRepeatAttempt
	it.Meta.VolumeIndicator = "thin"
	it.Meta.EducationalNote = "Each failed bounce lowers the odds of the next one."
	return it
}

func (g newsGenerator) capitulation(inst *market.Instrument, failed int, delta float64) news.Item {
	plural := ""
	if failed != 1 {
		plural = "s"
	}
	it := item(inst, nil, NewsCrashResolution,
		fmt.Sprintf("%s CAPITULATION: Selling exhausted after %d failed bounce%s", inst.Symbol, failed, plural), news.Negative)
	it.Phase = string(Inactive)
	it.Historical = true
	it.Description = fmt.Sprintf("A final flush of %s as the last holders give up.", market.FormatPct(delta))
	it.Meta.BounceNumber = failed
	it.Meta.PatternNote = "Capitulation often marks the end of the pattern."
	return it
}

func (g newsGenerator) baseForming(inst *market.Instrument, rec *record, fib string, delta float64) news.Item {
	it := item(inst, rec, NewsReversalForming, fmt.Sprintf("%s HOLDS above %s - base forming", inst.Symbol, fib), news.Positive)
	it.Description = fmt.Sprintf("Shares %s as buyers defend the retracement level.", market.FormatPct(delta))
	it.Meta.RetracementLevel = fib
	it.Meta.FibonacciNote = "Support at " + fib + " retracement"
	return it
}

func (g newsGenerator) higherLow(inst *market.Instrument, rec *record, delta float64) news.Item {
	it := item(inst, rec, NewsReversalForming, fmt.Sprintf("%s forms \"higher low\" - bullish pattern developing", inst.Symbol), news.Positive)
	it.Description = fmt.Sprintf("Shares %s, each dip shallower than the last.", market.FormatPct(delta))
	it.Meta.PatternNote = "higher low"
	return it
}

func (g newsGenerator) breakout(inst *market.Instrument, rec *record, delta float64) news.Item {
	it := item(inst, rec, NewsReversalConfirmed, fmt.Sprintf("BREAKOUT: %s surges past resistance on HEAVY volume", inst.Symbol), news.Positive)
	it.Description = fmt.Sprintf("Shares %s on %.1fx volume. Recovery target %s.", market.FormatPct(delta), rec.VolumeMultiplier, market.FormatPrice(rec.Refs.Target))
	it.Meta.VolumeIndicator = "heavy"
	return it
}

func (g newsGenerator) recoveryProgress(inst *market.Instrument, rec *record, price, delta float64) news.Item {
	up := market.Delta(rec.Refs.CrashLow, price)
	it := item(inst, rec, NewsRecovery, fmt.Sprintf("%s recovery continues - up %.0f%% from lows", inst.Symbol, up*100), news.Positive)
	it.Description = fmt.Sprintf("Shares %s today at %s.", market.FormatPct(delta), market.FormatPrice(price))
	return it
}

func (g newsGenerator) recoveryComplete(inst *market.Instrument, crashLow, price, delta float64) news.Item {
	up := market.Delta(crashLow, price)
	it := item(inst, nil, NewsRecoveryComplete, fmt.Sprintf("%s recovery mature - up %.0f%% from crash lows", inst.Symbol, up*100), news.Positive)
	it.Phase = string(Inactive)
	it.Historical = true
	it.Description = fmt.Sprintf("A final push of %s closes out the recovery.", market.FormatPct(delta))
	return it
}
