package coupling

import (
	"fmt"
	"sort"

	"phenomsim/internal/phenomenon"
)

// DiagnosticKind names a coupling violation.
type DiagnosticKind string

// Diagnostic kinds.
const (
	KindDirection         DiagnosticKind = "direction_mismatch"
	KindSentiment         DiagnosticKind = "sentiment_mismatch"
	KindParity            DiagnosticKind = "price_parity"
	KindMissingEvent      DiagnosticKind = "missing_emitted_event"
	KindOrphanPhase       DiagnosticKind = "orphan_phase"
	KindDuplicateHeadline DiagnosticKind = "duplicate_headline"
	KindInvalidTransition DiagnosticKind = "invalid_transition"
	KindMissingPhase      DiagnosticKind = "missing_phase"
	KindMagnitude         DiagnosticKind = "magnitude"
)

// Severity of a diagnostic. Warnings are reported but are not defects.
type Severity string

// Severity values.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one structured coupling finding.
type Diagnostic struct {
	Day      int              `json:"day"`
	Symbol   string           `json:"symbol,omitempty"`
	Kind     DiagnosticKind   `json:"kind"`
	Severity Severity         `json:"severity"`
	Source   phenomenon.Kind  `json:"source,omitempty"`
	From     phenomenon.Phase `json:"from,omitempty"`
	To       phenomenon.Phase `json:"to,omitempty"`
	Headline string           `json:"headline,omitempty"`
	Expected float64          `json:"expected,omitempty"`
	Actual   float64          `json:"actual,omitempty"`
	Message  string           `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Symbol == "" {
		return fmt.Sprintf("[%s] %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("[%s] D%d %s: %s", d.Kind, d.Day, d.Symbol, d.Message)
}

// CategoryStats counts classified headlines per category.
type CategoryStats struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
}

// Report is the outcome of a validation run.
type Report struct {
	Days         int                                          `json:"days"`
	Ticks        int                                          `json:"ticks"`
	NewsItems    int                                          `json:"news_items"`
	Classified   int                                          `json:"classified"`
	ParityChecks int                                          `json:"parity_checks"`
	Categories   map[string]*CategoryStats                    `json:"categories"`
	Coverage     map[phenomenon.Kind]map[phenomenon.Phase]int `json:"coverage"`
	Diagnostics  []Diagnostic                                 `json:"diagnostics"`
}

// Defects returns every error-level diagnostic.
func (r Report) Defects() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// Passed reports whether the run found no defects.
func (r Report) Passed() bool {
	return len(r.Defects()) == 0
}

// CountByKind tallies diagnostics per kind.
func (r Report) CountByKind() map[DiagnosticKind]int {
	out := make(map[DiagnosticKind]int)
	for _, d := range r.Diagnostics {
		out[d.Kind]++
	}
	return out
}

// CoveredPhases lists the phases entered for kind, sorted.
func (r Report) CoveredPhases(kind phenomenon.Kind) []phenomenon.Phase {
	var out []phenomenon.Phase
	for p := range r.Coverage[kind] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
