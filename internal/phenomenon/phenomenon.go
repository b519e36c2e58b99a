// Package phenomenon defines the contract shared by every multi-day price and
// narrative pattern: phases, transition tables, dependency injection, the price
// event emitter and the diagnostic and persistence shapes.
package phenomenon

import (
	"encoding/json"
	"errors"
	"sort"

	"phenomsim/internal/market"
	"phenomsim/internal/news"
)

var (
	// ErrKindMismatch is returned when a saved record belongs to another phenomenon.
	ErrKindMismatch = errors.New("phenomenon: saved record kind mismatch")
	// ErrUnknownPhase is returned when a saved record names a phase outside the table.
	ErrUnknownPhase = errors.New("phenomenon: unknown phase")
)

// Kind names a phenomenon type.
type Kind string

// Phase is a state in a phenomenon's lifecycle.
type Phase string

// Inactive is the implicit phase of an instrument without a record.
const Inactive Phase = "INACTIVE"

// TransitionTable lists the legal successors of each phase.
type TransitionTable map[Phase][]Phase

// Allows reports whether from → to is a legal transition.
func (t TransitionTable) Allows(from, to Phase) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Knows reports whether p appears anywhere in the table.
func (t TransitionTable) Knows(p Phase) bool {
	if _, ok := t[p]; ok {
		return true
	}
	for _, nexts := range t {
		for _, n := range nexts {
			if n == p {
				return true
			}
		}
	}
	return false
}

// Reachable returns every non-inactive phase in the table, sorted.
func (t TransitionTable) Reachable() []Phase {
	set := make(map[Phase]struct{})
	for from, nexts := range t {
		if from != Inactive {
			set[from] = struct{}{}
		}
		for _, n := range nexts {
			if n != Inactive {
				set[n] = struct{}{}
			}
		}
	}
	out := make([]Phase, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot is a read-only diagnostic view of one active record.
type Snapshot struct {
	Kind              Kind    `json:"kind"`
	Symbol            string  `json:"symbol"`
	Phase             Phase   `json:"phase"`
	DaysRemaining     int     `json:"days_remaining"`
	Outcome           string  `json:"outcome,omitempty"`
	RetryCount        int     `json:"retry_count"`
	Retracement       float64 `json:"retracement"`
	TargetRetracement float64 `json:"target_retracement"`
	VolumeTrend       string  `json:"volume_trend,omitempty"`
	VolumeMultiplier  float64 `json:"volume_multiplier"`
	ConsecutiveUpDays int     `json:"consecutive_up_days"`
}

// SavedRecord is the persisted subset of a record. Phase and DaysRemaining are
// duplicated outside State so storage can index them without decoding.
type SavedRecord struct {
	Kind          Kind            `json:"kind"`
	Symbol        string          `json:"symbol"`
	Phase         Phase           `json:"phase"`
	DaysRemaining int             `json:"days_remaining"`
	State         json.RawMessage `json:"state"`
}

// Hint is tutorial guidance derived purely from a news item's tags.
type Hint struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Implication string `json:"implication"`
	Action      string `json:"action"`
	Timing      string `json:"timing"`
	Catalyst    string `json:"catalyst"`
}

// Phenomenon is implemented by every pattern module.
type Phenomenon interface {
	Kind() Kind
	Transitions() TransitionTable
	// Trigger attaches a new record; false when one already exists.
	Trigger(inst *market.Instrument, severity float64) bool
	// CheckEvents rolls the daily trigger chance for instruments without a record.
	CheckEvents()
	// ProcessTick steps every active record once.
	ProcessTick()
	PhaseOf(symbol string) Phase
	// ForceClear drops a record and its unconsumed effect; false when none existed.
	ForceClear(inst *market.Instrument) bool
	ActivePatterns() []Snapshot
	TutorialHint(item news.Item) *Hint
	Export() []SavedRecord
	Restore(records []SavedRecord) error
}
