package deadcat

import (
	"fmt"
	"math"

	"phenomsim/internal/market"
	"phenomsim/internal/rng"
)

func (e *Engine) stepCrash(inst *market.Instrument, rec *record) {
	if rec.DaysRemaining > 0 {
		rec.RunningLow = math.Min(rec.RunningLow, inst.Price)
		out := e.emitter.Emit(inst, rec.CrashDailyDelta, "CRASH_CONTINUES", "")
		if rng.Chance(e.deps.Random, e.cfg.News.CrashProgress) {
			e.publish(e.news.crashProgress(inst, rec, out.Event.ExpectedDelta))
		}
		return
	}
	e.enterBounce(inst, rec, false)
}

// enterBounce starts a bounce from the current price. Retried bounces carry
// weaker volume and a lower target than the one before.
func (e *Engine) enterBounce(inst *market.Instrument, rec *record, retry bool) {
	r := e.deps.Random
	low := inst.Price
	if !retry {
		rec.Refs.CrashLow = low
	}

	var start float64
	if retry {
		rec.Signals.VolumeTrend = VolumeDeclining
		rec.VolumeMultiplier = math.Max(0.2, e.cfg.Volume.TrapBounce*(1-0.15*float64(rec.RetryCount)))
		rec.TargetRetracement = math.Max(e.cfg.RetracementFloor, rec.TargetRetracement-e.cfg.RetracementDecay)
		start = rng.Between(r, e.cfg.RetryBounceStart.Min, e.cfg.RetryBounceStart.Max)
	} else {
		reversalOdds := 0.25
		if rng.Chance(r, e.cfg.Volume.RisingChance) {
			rec.Signals.VolumeTrend = VolumeIncreasing
			rec.VolumeMultiplier = e.cfg.Volume.ReversalBounce
			reversalOdds = 0.7
		} else {
			rec.Signals.VolumeTrend = VolumeDeclining
			rec.VolumeMultiplier = e.cfg.Volume.TrapBounce
		}
		band := e.cfg.TrapRetracement
		if rng.Chance(r, reversalOdds) {
			band = e.cfg.ReversalRetracement
		}
		rec.TargetRetracement = rng.Between(r, band.Min, band.Max)
		start = rng.Between(r, e.cfg.BounceStart.Min, e.cfg.BounceStart.Max)
	}
	days := rng.IntBetween(r, e.cfg.BounceDays.Min, e.cfg.BounceDays.Max)

	rec.Refs.LocalLow = low
	rec.Refs.PhaseStart = low
	rec.Refs.LocalHigh = low
	rec.Refs.Target = low + (rec.Refs.Trigger-low)*rec.TargetRetracement
	rec.LastPullbackLow = 0
	rec.RunningLow = low
	rec.RunningHigh = low
	rec.Signals.HigherLow = false
	rec.Signals.ConsecutiveUpDays = 1
	rec.Signals.Retracement = 0
	inst.VolumeMultiplier = rec.VolumeMultiplier

	if !e.enter(inst, rec, Bounce, days) {
		return
	}
	label := "BOUNCE_START"
	if retry {
		label = fmt.Sprintf("BOUNCE_%d_START", rec.bounceNumber())
	}
	out := e.emitter.Emit(inst, start, label,
		fmt.Sprintf("(target %.1f%% retracement, volume %s)", rec.TargetRetracement*100, rec.Signals.VolumeTrend))
	if retry {
		e.publish(e.news.repeatBounce(inst, rec, out.Event.ExpectedDelta))
	} else {
		e.publish(e.news.bounceStart(inst, rec, out.Event.ExpectedDelta))
	}
}

func (e *Engine) stepBounce(inst *market.Instrument, rec *record) {
	r := e.deps.Random
	price := inst.Price
	rec.RunningHigh = math.Max(rec.RunningHigh, price)
	rec.Signals.Retracement = rec.retracement(price)

	switch rec.Signals.VolumeTrend {
	case VolumeDeclining:
		rec.VolumeMultiplier = math.Max(0.3, rec.VolumeMultiplier*0.93)
	case VolumeIncreasing:
		rec.VolumeMultiplier = math.Min(2.0, rec.VolumeMultiplier*1.04)
	}
	inst.VolumeMultiplier = rec.VolumeMultiplier

	if rec.DaysRemaining > 0 {
		var change float64
		pullback := rng.Chance(r, e.cfg.PullbackChance)
		if pullback {
			change = -rng.Between(r, e.cfg.Pullback.Min, e.cfg.Pullback.Max)
			rec.Signals.ConsecutiveUpDays = 0
			low := price * (1 + change)
			if rec.LastPullbackLow > 0 && low > rec.LastPullbackLow {
				rec.Signals.HigherLow = true
			}
			rec.LastPullbackLow = low
		} else {
			remaining := (rec.Refs.Target - price) / price
			change = remaining / float64(rec.DaysRemaining+1) * rng.Between(r, 0.6, 1.4)
			if change < 0.001 {
				change = rng.Between(r, 0.001, 0.004)
			}
			rec.Signals.ConsecutiveUpDays++
		}
		out := e.emitter.Emit(inst, change, "BOUNCE_DAY",
			fmt.Sprintf("(retracement %.1f%%)", rec.Signals.Retracement*100))
		if rng.Chance(r, e.cfg.News.BounceProgress) {
			switch {
			case rec.Signals.VolumeTrend == VolumeDeclining:
				e.publish(e.news.bounceWarning(inst, rec))
			case !pullback:
				e.publish(e.news.bounceHealthy(inst, rec, out.Event.ExpectedDelta))
			}
		}
		return
	}

	if rec.Outcome == Undecided {
		e.decideOutcome(inst, rec)
	}
	if rec.Outcome == Reversal && rec.RetryCount == 0 {
		e.enterConsolidation(inst, rec)
		return
	}
	e.enterDecline(inst, rec)
}

// decideOutcome is the single decision point of a record's life.
func (e *Engine) decideOutcome(inst *market.Instrument, rec *record) {
	rec.Signals.InsiderBuying = inst.Insider.Buying
	rec.Signals.ClusterBuy = inst.Insider.ClusterBuy
	eval := e.evaluator.ComputeOutcomeProbability(rec.Signals)
	draw := e.deps.Random.Float64()
	rec.Outcome = Trap
	if draw < eval.Probability {
		rec.Outcome = Reversal
	}
	e.logger.Debug().Str("symbol", inst.Symbol).Float64("probability", eval.Probability).
		Float64("draw", draw).Int("signals", len(eval.Signals)).Str("outcome", string(rec.Outcome)).
		Msg("bounce outcome decided")
}

func (e *Engine) enterDecline(inst *market.Instrument, rec *record) {
	r := e.deps.Random
	days := rng.IntBetween(r, e.cfg.DeclineDays.Min, e.cfg.DeclineDays.Max)
	fib := fibLabel(rec.Signals.Retracement)
	rec.Refs.PhaseStart = inst.Price
	rec.Refs.LocalHigh = inst.Price
	rec.RunningLow = inst.Price
	rec.RunningHigh = inst.Price
	rec.Refs.Target = inst.Price * (1 - e.cfg.subsequentDrop(rec.RetryCount))
	if !e.enter(inst, rec, Decline, days) {
		return
	}
	change := -rng.Between(r, e.cfg.BounceFailure.Min, e.cfg.BounceFailure.Max)
	out := e.emitter.Emit(inst, change, "BOUNCE_FAILED", "(trap at "+fib+")")
	e.publish(e.news.bounceFailed(inst, rec, fib, out.Event.ExpectedDelta))
}

func (e *Engine) stepDecline(inst *market.Instrument, rec *record) {
	r := e.deps.Random
	if rec.DaysRemaining > 0 {
		change := -0.003
		if inst.Price > 0 && rec.Refs.Target > 0 && rec.Refs.Target < inst.Price {
			daily := math.Pow(rec.Refs.Target/inst.Price, 1/float64(rec.DaysRemaining+1)) - 1
			change = math.Min(daily*rng.Between(r, 0.7, 1.3), -0.003)
		}
		out := e.emitter.Emit(inst, change, "DECLINE_DAY", "")
		if rng.Chance(r, e.cfg.News.DeclineProgress) {
			e.publish(e.news.declineProgress(inst, rec, out.Event.ExpectedDelta))
		}
		return
	}

	odds := math.Max(0, e.cfg.RetryBase-e.cfg.RetryDecay*float64(rec.bounceNumber()))
	if rec.RetryCount < e.cfg.MaxRetries && rng.Chance(r, odds) {
		rec.RetryCount++
		e.enterBounce(inst, rec, true)
		return
	}

	failed := rec.bounceNumber()
	if !e.enter(inst, rec, Inactive, 0) {
		return
	}
	change := -rng.Between(r, e.cfg.Capitulation.Min, e.cfg.Capitulation.Max) * e.meme(inst)
	out := e.emitter.Emit(inst, change, "CAPITULATION", fmt.Sprintf("(%d failed bounces)", failed))
	e.publish(e.news.capitulation(inst, failed, out.Event.ExpectedDelta))
}

func (e *Engine) enterConsolidation(inst *market.Instrument, rec *record) {
	r := e.deps.Random
	days := rng.IntBetween(r, e.cfg.ConsolidationDays.Min, e.cfg.ConsolidationDays.Max)
	fib := fibLabel(rec.Signals.Retracement)
	rec.Refs.PhaseStart = inst.Price
	rec.VolumeMultiplier = 1.0
	inst.VolumeMultiplier = 1.0
	if !e.enter(inst, rec, Consolidation, days) {
		return
	}
	out := e.emitter.Emit(inst, e.cfg.ReversalConfirm, "REVERSAL_CONFIRMED", "(held "+fib+")")
	e.publish(e.news.baseForming(inst, rec, fib, out.Event.ExpectedDelta))
}

func (e *Engine) stepConsolidation(inst *market.Instrument, rec *record) {
	r := e.deps.Random
	if rec.DaysRemaining > 0 {
		rec.VolumeMultiplier = rng.Between(r, 0.7, 1.1)
		inst.VolumeMultiplier = rec.VolumeMultiplier
		change := rng.Between(r, e.cfg.ConsolidationDrift.Min, e.cfg.ConsolidationDrift.Max)
		out := e.emitter.Emit(inst, change, "CONSOLIDATION_DAY", "")
		if rng.Chance(r, e.cfg.News.HigherLow) {
			rec.Signals.HigherLow = true
			e.publish(e.news.higherLow(inst, rec, out.Event.ExpectedDelta))
		}
		return
	}

	days := rng.IntBetween(r, e.cfg.RecoveryDays.Min, e.cfg.RecoveryDays.Max)
	crashLow := rec.Refs.CrashLow
	rec.Refs.PhaseStart = inst.Price
	rec.Refs.Target = crashLow + (rec.Refs.Trigger-crashLow)*rng.Between(r, e.cfg.RecoveryTarget.Min, e.cfg.RecoveryTarget.Max)
	rec.VolumeMultiplier = e.cfg.Volume.Confirmation
	inst.VolumeMultiplier = rec.VolumeMultiplier
	if !e.enter(inst, rec, Recovery, days) {
		return
	}
	change := rng.Between(r, e.cfg.Breakout.Min, e.cfg.Breakout.Max)
	out := e.emitter.Emit(inst, change, "BREAKOUT", fmt.Sprintf("(target %s)", market.FormatPrice(rec.Refs.Target)))
	e.publish(e.news.breakout(inst, rec, out.Event.ExpectedDelta))
}

func (e *Engine) stepRecovery(inst *market.Instrument, rec *record) {
	r := e.deps.Random
	if rec.DaysRemaining > 0 {
		change := 0.0
		if inst.Price > 0 {
			remaining := (rec.Refs.Target - inst.Price) / inst.Price
			change = remaining / float64(rec.DaysRemaining+3) * rng.Between(r, 0.7, 1.2) * e.meme(inst)
		}
		if change < 0.001 {
			change = rng.Between(r, 0.001, 0.003)
		}
		out := e.emitter.Emit(inst, change, "RECOVERY_DAY", "")
		if rng.Chance(r, e.cfg.News.RecoveryProgress) {
			e.publish(e.news.recoveryProgress(inst, rec, out.Event.ExpectedPrice, out.Event.ExpectedDelta))
		}
		return
	}

	crashLow := rec.Refs.CrashLow
	if !e.enter(inst, rec, Inactive, 0) {
		return
	}
	change := rng.Between(r, e.cfg.RecoveryComplete.Min, e.cfg.RecoveryComplete.Max) * e.meme(inst)
	out := e.emitter.Emit(inst, change, "RECOVERY_COMPLETE", "")
	e.publish(e.news.recoveryComplete(inst, crashLow, out.Event.ExpectedPrice, out.Event.ExpectedDelta))
}

// fibLabel names the Fibonacci level a retracement sits at.
func fibLabel(retracement float64) string {
	switch {
	case retracement >= 0.75:
		return "78.6%"
	case retracement >= 0.60:
		return "61.8% (golden ratio)"
	case retracement >= 0.48:
		return "50%"
	case retracement >= 0.36:
		return "38.2%"
	case retracement >= 0.22:
		return "23.6%"
	default:
		return "below 23.6%"
	}
}
