package deadcat

import (
	"errors"
	"fmt"
)

// Range is a closed float interval drawn uniformly.
type Range struct {
	Min float64 `mapstructure:"min" json:"min"`
	Max float64 `mapstructure:"max" json:"max"`
}

// DayRange is a closed integer interval of simulated days.
type DayRange struct {
	Min int `mapstructure:"min" json:"min"`
	Max int `mapstructure:"max" json:"max"`
}

// ProbabilityConfig holds the outcome model weights.
type ProbabilityConfig struct {
	Base           float64 `mapstructure:"base"`
	Retracement50  float64 `mapstructure:"retracement_50"`
	Retracement618 float64 `mapstructure:"retracement_618"`
	RisingVolume   float64 `mapstructure:"rising_volume"`
	HigherLow      float64 `mapstructure:"higher_low"`
	ThreeDayRule   float64 `mapstructure:"three_day_rule"`
	InsiderBuying  float64 `mapstructure:"insider_buying"`
	ClusterBuy     float64 `mapstructure:"cluster_buy"`
	Max            float64 `mapstructure:"max"`
	UpDayStreak    int     `mapstructure:"up_day_streak"`
}

// VolumeConfig holds volume multipliers per phase.
type VolumeConfig struct {
	Crash          float64 `mapstructure:"crash"`
	TrapBounce     float64 `mapstructure:"trap_bounce"`
	ReversalBounce float64 `mapstructure:"reversal_bounce"`
	Confirmation   float64 `mapstructure:"confirmation"`
	RisingChance   float64 `mapstructure:"rising_chance"`
}

// NewsConfig holds the opportunistic news rates for stable phases.
type NewsConfig struct {
	CrashProgress    float64 `mapstructure:"crash_progress"`
	BounceProgress   float64 `mapstructure:"bounce_progress"`
	DeclineProgress  float64 `mapstructure:"decline_progress"`
	HigherLow        float64 `mapstructure:"higher_low"`
	RecoveryProgress float64 `mapstructure:"recovery_progress"`
}

// Config is the complete dead cat bounce model. It replaces every module-level
// constant, so several engines with different models can coexist.
type Config struct {
	DailyChance         float64           `mapstructure:"daily_chance"`
	CrashMagnitude      Range             `mapstructure:"crash_magnitude"`
	CrashImpact         Range             `mapstructure:"crash_impact"`
	CrashDays           DayRange          `mapstructure:"crash_days"`
	BounceDays          DayRange          `mapstructure:"bounce_days"`
	DeclineDays         DayRange          `mapstructure:"decline_days"`
	ConsolidationDays   DayRange          `mapstructure:"consolidation_days"`
	RecoveryDays        DayRange          `mapstructure:"recovery_days"`
	BounceStart         Range             `mapstructure:"bounce_start"`
	RetryBounceStart    Range             `mapstructure:"retry_bounce_start"`
	BounceFailure       Range             `mapstructure:"bounce_failure"`
	PullbackChance      float64           `mapstructure:"pullback_chance"`
	Pullback            Range             `mapstructure:"pullback"`
	TrapRetracement     Range             `mapstructure:"trap_retracement"`
	ReversalRetracement Range             `mapstructure:"reversal_retracement"`
	RetracementDecay    float64           `mapstructure:"retracement_decay"`
	RetracementFloor    float64           `mapstructure:"retracement_floor"`
	ReversalConfirm     float64           `mapstructure:"reversal_confirm"`
	ConsolidationDrift  Range             `mapstructure:"consolidation_drift"`
	Breakout            Range             `mapstructure:"breakout"`
	RecoveryTarget      Range             `mapstructure:"recovery_target"`
	RecoveryComplete    Range             `mapstructure:"recovery_complete"`
	Capitulation        Range             `mapstructure:"capitulation"`
	MaxRetries          int               `mapstructure:"max_retries"`
	RetryBase           float64           `mapstructure:"retry_base"`
	RetryDecay          float64           `mapstructure:"retry_decay"`
	SubsequentDrops     []float64         `mapstructure:"subsequent_drops"`
	Probability         ProbabilityConfig `mapstructure:"probability"`
	Volume              VolumeConfig      `mapstructure:"volume"`
	News                NewsConfig        `mapstructure:"news"`
}

// DefaultConfig returns the reference model.
func DefaultConfig() Config {
	return Config{
		DailyChance:         0.02,
		CrashMagnitude:      Range{Min: 0.15, Max: 0.30},
		CrashImpact:         Range{Min: 0.50, Max: 0.70},
		CrashDays:           DayRange{Min: 2, Max: 4},
		BounceDays:          DayRange{Min: 15, Max: 30},
		DeclineDays:         DayRange{Min: 5, Max: 10},
		ConsolidationDays:   DayRange{Min: 10, Max: 20},
		RecoveryDays:        DayRange{Min: 60, Max: 120},
		BounceStart:         Range{Min: 0.04, Max: 0.08},
		RetryBounceStart:    Range{Min: 0.02, Max: 0.05},
		BounceFailure:       Range{Min: 0.04, Max: 0.08},
		PullbackChance:      0.25,
		Pullback:            Range{Min: 0.005, Max: 0.02},
		TrapRetracement:     Range{Min: 0.28, Max: 0.35},
		ReversalRetracement: Range{Min: 0.50, Max: 0.75},
		RetracementDecay:    0.08,
		RetracementFloor:    0.15,
		ReversalConfirm:     0.01,
		ConsolidationDrift:  Range{Min: 0.001, Max: 0.01},
		Breakout:            Range{Min: 0.04, Max: 0.08},
		RecoveryTarget:      Range{Min: 0.60, Max: 0.90},
		RecoveryComplete:    Range{Min: 0.03, Max: 0.06},
		Capitulation:        Range{Min: 0.08, Max: 0.14},
		MaxRetries:          3,
		RetryBase:           0.55,
		RetryDecay:          0.18,
		SubsequentDrops:     []float64{0.15, 0.20, 0.25},
		Probability: ProbabilityConfig{
			Base:           0.30,
			Retracement50:  0.20,
			Retracement618: 0.30,
			RisingVolume:   0.15,
			HigherLow:      0.10,
			ThreeDayRule:   0.05,
			InsiderBuying:  0.10,
			ClusterBuy:     0.25,
			Max:            0.85,
			UpDayStreak:    3,
		},
		Volume: VolumeConfig{
			Crash:          3.0,
			TrapBounce:     0.6,
			ReversalBounce: 1.2,
			Confirmation:   1.5,
			RisingChance:   0.4,
		},
		News: NewsConfig{
			CrashProgress:    0.3,
			BounceProgress:   0.25,
			DeclineProgress:  0.2,
			HigherLow:        0.2,
			RecoveryProgress: 0.15,
		},
	}
}

// Validate rejects models that would break the engine's invariants.
func (c Config) Validate() error {
	if c.Probability.Max <= 0 || c.Probability.Max >= 1 {
		return fmt.Errorf("probability.max must be in (0, 1), got %v", c.Probability.Max)
	}
	if c.Probability.Base < 0 || c.Probability.Base > c.Probability.Max {
		return fmt.Errorf("probability.base must be in [0, probability.max], got %v", c.Probability.Base)
	}
	if c.MaxRetries < 0 {
		return errors.New("max_retries must not be negative")
	}
	if len(c.SubsequentDrops) == 0 {
		return errors.New("subsequent_drops must not be empty")
	}
	for name, r := range map[string]DayRange{
		"crash_days":         c.CrashDays,
		"bounce_days":        c.BounceDays,
		"decline_days":       c.DeclineDays,
		"consolidation_days": c.ConsolidationDays,
		"recovery_days":      c.RecoveryDays,
	} {
		if r.Min < 1 || r.Max < r.Min {
			return fmt.Errorf("%s must satisfy 1 <= min <= max, got %d..%d", name, r.Min, r.Max)
		}
	}
	if c.CrashDays.Min < 2 {
		return errors.New("crash_days.min must be at least 2")
	}
	if c.CrashMagnitude.Min <= 0 || c.CrashMagnitude.Max >= 1 || c.CrashMagnitude.Max < c.CrashMagnitude.Min {
		return fmt.Errorf("crash_magnitude must be within (0, 1), got %v..%v", c.CrashMagnitude.Min, c.CrashMagnitude.Max)
	}
	if c.CrashImpact.Min <= 0 || c.CrashImpact.Max >= 1 || c.CrashImpact.Max < c.CrashImpact.Min {
		return fmt.Errorf("crash_impact must be within (0, 1), got %v..%v", c.CrashImpact.Min, c.CrashImpact.Max)
	}
	if c.DailyChance < 0 || c.DailyChance > 1 {
		return fmt.Errorf("daily_chance must be in [0, 1], got %v", c.DailyChance)
	}
	return nil
}

func (c Config) subsequentDrop(retry int) float64 {
	if retry < 0 {
		retry = 0
	}
	if retry >= len(c.SubsequentDrops) {
		retry = len(c.SubsequentDrops) - 1
	}
	return c.SubsequentDrops[retry]
}
