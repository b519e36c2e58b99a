package deadcat

import "phenomsim/internal/phenomenon"

// Kind identifies the dead cat bounce phenomenon.
const Kind phenomenon.Kind = "dead_cat_bounce"

// Phases of the dead cat bounce lifecycle.
const (
	Inactive                       = phenomenon.Inactive
	Crash         phenomenon.Phase = "CRASH"
	Bounce        phenomenon.Phase = "BOUNCE"
	Decline       phenomenon.Phase = "DECLINE"
	Consolidation phenomenon.Phase = "CONSOLIDATION"
	Recovery      phenomenon.Phase = "RECOVERY"
)

// Transitions is the complete legal phase graph. The DECLINE → BOUNCE edge is
// further bounded by the retry cap.
var Transitions = phenomenon.TransitionTable{
	Inactive:      {Crash},
	Crash:         {Bounce},
	Bounce:        {Decline, Consolidation},
	Decline:       {Bounce, Inactive},
	Consolidation: {Recovery},
	Recovery:      {Inactive},
}

// Outcome is the terminal classification of the first bounce.
type Outcome string

// Outcome values.
const (
	Undecided Outcome = ""
	Reversal  Outcome = "REVERSAL"
	Trap      Outcome = "TRAP"
)

// VolumeTrend is the direction of volume during a bounce.
type VolumeTrend string

// VolumeTrend values.
const (
	VolumeFlat       VolumeTrend = ""
	VolumeIncreasing VolumeTrend = "increasing"
	VolumeDeclining  VolumeTrend = "declining"
)

// References are set at phase entry and read-only within the phase.
type References struct {
	Trigger    float64 `json:"trigger"`
	PhaseStart float64 `json:"phase_start"`
	CrashLow   float64 `json:"crash_low"`
	LocalLow   float64 `json:"local_low"`
	LocalHigh  float64 `json:"local_high"`
	Target     float64 `json:"target"`
}

// Signals feed the outcome probability model.
type Signals struct {
	Retracement       float64     `json:"retracement"`
	VolumeTrend       VolumeTrend `json:"volume_trend"`
	HigherLow         bool        `json:"higher_low"`
	ConsecutiveUpDays int         `json:"consecutive_up_days"`
	InsiderBuying     bool        `json:"insider_buying"`
	ClusterBuy        bool        `json:"cluster_buy"`
}

// record is the per-instrument state. One record exists per instrument at most;
// it is deleted on reaching INACTIVE.
type record struct {
	Phase         phenomenon.Phase `json:"phase"`
	DaysRemaining int              `json:"days_remaining"`
	PhaseDays     int              `json:"phase_days"`
	Refs          References       `json:"refs"`
	Signals       Signals          `json:"signals"`
	Outcome       Outcome          `json:"outcome"`
	RetryCount    int              `json:"retry_count"`

	Severity          float64 `json:"severity"`
	Magnitude         float64 `json:"magnitude"`
	CrashDailyDelta   float64 `json:"crash_daily_delta"`
	TargetRetracement float64 `json:"target_retracement"`
	VolumeMultiplier  float64 `json:"volume_multiplier"`
	LastPullbackLow   float64 `json:"last_pullback_low"`
	// RunningLow and RunningHigh track the extremes seen inside the current phase.
	RunningLow  float64 `json:"running_low"`
	RunningHigh float64 `json:"running_high"`

	// skip suppresses the step on the tick the record was created.
	skip bool
}

// BounceNumber is 1 for the first bounce and grows with each retry.
func (r *record) bounceNumber() int {
	return r.RetryCount + 1
}

func (r *record) retracement(price float64) float64 {
	drop := r.Refs.Trigger - r.Refs.LocalLow
	if drop <= 0 {
		return 0
	}
	return (price - r.Refs.LocalLow) / drop
}
