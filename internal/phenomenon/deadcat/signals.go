package deadcat

import "math"

// Signal is one qualifying contribution to the outcome probability.
type Signal struct {
	Name  string  `json:"name"`
	Bonus float64 `json:"bonus"`
}

// Evaluation is the result of the outcome model.
type Evaluation struct {
	Probability float64  `json:"probability"`
	Signals     []Signal `json:"signals"`
}

// SignalEvaluator computes the reversal probability from observed signals.
type SignalEvaluator struct {
	cfg ProbabilityConfig
}

// NewSignalEvaluator builds an evaluator from the probability weights.
func NewSignalEvaluator(cfg ProbabilityConfig) SignalEvaluator {
	return SignalEvaluator{cfg: cfg}
}

// ComputeOutcomeProbability sums the base and every qualifying bonus, taking
// only the higher of each tiered pair, and caps the result below certainty.
func (e SignalEvaluator) ComputeOutcomeProbability(s Signals) Evaluation {
	p := e.cfg.Base
	var signals []Signal
	add := func(name string, bonus float64) {
		p += bonus
		signals = append(signals, Signal{Name: name, Bonus: bonus})
	}

	switch {
	case s.Retracement >= 0.618:
		add("retracement_61.8", e.cfg.Retracement618)
	case s.Retracement >= 0.50:
		add("retracement_50", e.cfg.Retracement50)
	}
	if s.VolumeTrend == VolumeIncreasing {
		add("rising_volume", e.cfg.RisingVolume)
	}
	if s.HigherLow {
		add("higher_low", e.cfg.HigherLow)
	}
	streak := e.cfg.UpDayStreak
	if streak <= 0 {
		streak = 3
	}
	if s.ConsecutiveUpDays >= streak {
		add("three_day_rule", e.cfg.ThreeDayRule)
	}
	switch {
	case s.ClusterBuy:
		add("insider_cluster_buy", e.cfg.ClusterBuy)
	case s.InsiderBuying:
		add("insider_buying", e.cfg.InsiderBuying)
	}

	return Evaluation{Probability: clampProbability(p, e.cfg.Max), Signals: signals}
}

func clampProbability(p, max float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	if max <= 0 || max >= 1 {
		max = 0.85
	}
	return math.Max(0, math.Min(max, p))
}
