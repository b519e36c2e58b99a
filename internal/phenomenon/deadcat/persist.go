package deadcat

import (
	"encoding/json"
	"fmt"

	"phenomsim/internal/phenomenon"
)

// Export serializes every record, ordered by symbol.
func (e *Engine) Export() []phenomenon.SavedRecord {
	out := make([]phenomenon.SavedRecord, 0, len(e.records))
	for _, sym := range e.symbols() {
		rec := e.records[sym]
		state, err := json.Marshal(rec)
		if err != nil {
			e.logger.Error().Err(err).Str("symbol", sym).Msg("failed to encode record")
			continue
		}
		out = append(out, phenomenon.SavedRecord{
			Kind:          Kind,
			Symbol:        sym,
			Phase:         rec.Phase,
			DaysRemaining: rec.DaysRemaining,
			State:         state,
		})
	}
	return out
}

// Restore replaces every record with saved ones. Nothing changes on error.
// Phase and DaysRemaining are taken verbatim from the saved record.
func (e *Engine) Restore(saved []phenomenon.SavedRecord) error {
	records := make(map[string]*record, len(saved))
	for _, s := range saved {
		if s.Kind != Kind {
			return fmt.Errorf("restore %s: %w: %q", s.Symbol, phenomenon.ErrKindMismatch, s.Kind)
		}
		if s.Phase == Inactive || !Transitions.Knows(s.Phase) {
			return fmt.Errorf("restore %s: %w: %q", s.Symbol, phenomenon.ErrUnknownPhase, s.Phase)
		}
		rec := &record{}
		if len(s.State) > 0 {
			if err := json.Unmarshal(s.State, rec); err != nil {
				return fmt.Errorf("restore %s: decode state: %w", s.Symbol, err)
			}
		}
		rec.Phase = s.Phase
		rec.DaysRemaining = s.DaysRemaining
		records[s.Symbol] = rec
	}
	e.records = records
	return nil
}
