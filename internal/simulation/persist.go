package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"phenomsim/internal/phenomenon"
	"phenomsim/internal/storage"
)

func (s *Simulator) start(ctx context.Context) error {
	if s.started {
		return nil
	}
	s.started = true
	if s.repo == nil {
		return nil
	}
	symbols := make([]string, 0, len(s.instruments))
	for _, inst := range s.instruments {
		symbols = append(symbols, inst.Symbol)
	}
	run := storage.RunRecord{
		ID:          s.runID,
		Mode:        string(s.mode),
		Seed:        s.cfg.Simulation.Seed,
		Instruments: symbols,
		StartedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// persistDay writes the day's output. Failures are logged and counted; a
// storage outage never stops the simulation.
func (s *Simulator) persistDay(ctx context.Context, res DayResult) {
	if s.repo == nil {
		return
	}
	now := time.Now().UTC()

	ticks := make([]storage.TickRecord, 0, len(res.Updates))
	for _, u := range res.Updates {
		phases := make(map[string]string, len(s.phenomena))
		for kind, phase := range res.Phases[u.Symbol] {
			phases[string(kind)] = string(phase)
		}
		ticks = append(ticks, storage.TickRecord{
			RunID:         s.runID,
			Day:           res.Day,
			Symbol:        u.Symbol,
			PreviousPrice: decimal.NewFromFloat(u.Previous).Round(2),
			Price:         decimal.NewFromFloat(u.Price).Round(2),
			Effect:        u.Effect,
			Pure:          u.Pure,
			Phases:        phases,
			CreatedAt:     now,
		})
	}
	if err := s.repo.InsertTicks(ctx, ticks); err != nil {
		s.persistFailed("insert_ticks", res.Day, err)
	}

	if len(res.News) > 0 {
		if err := s.repo.InsertNews(ctx, s.runID, res.News); err != nil {
			s.persistFailed("insert_news", res.Day, err)
		}
	}
	if len(res.Diagnostics) > 0 {
		if err := s.repo.InsertDiagnostics(ctx, s.runID, res.Diagnostics); err != nil {
			s.persistFailed("insert_diagnostics", res.Day, err)
		}
	}
	if err := s.repo.SaveState(ctx, s.Snapshot()); err != nil {
		s.persistFailed("save_state", res.Day, err)
	}
}

func (s *Simulator) persistFailed(op string, day int, err error) {
	s.logger.Error().Err(err).Str("operation", op).Int("day", day).Msg("failed to persist day")
	if s.metrics != nil {
		s.metrics.RecordPersistError(op)
	}
}

// Snapshot captures the resumable end-of-day state.
func (s *Simulator) Snapshot() storage.StateSnapshot {
	snap := storage.StateSnapshot{RunID: s.runID, Day: s.day, SavedAt: time.Now().UTC()}
	for _, p := range s.phenomena {
		snap.Records = append(snap.Records, p.Export()...)
	}
	for _, inst := range s.instruments {
		snap.Instruments = append(snap.Instruments, storage.CaptureInstrument(inst))
	}
	return snap
}

// Restore loads a snapshot into the simulator. Phases and remaining days are
// taken verbatim; instruments missing from the configuration are skipped.
func (s *Simulator) Restore(snap storage.StateSnapshot) error {
	byKind := make(map[phenomenon.Kind][]phenomenon.SavedRecord)
	for _, rec := range snap.Records {
		if s.phenomenon(rec.Kind) == nil {
			return fmt.Errorf("restore: %w: %q", phenomenon.ErrKindMismatch, rec.Kind)
		}
		byKind[rec.Kind] = append(byKind[rec.Kind], rec)
	}

	previous := s.Snapshot()
	for _, state := range snap.Instruments {
		inst, ok := s.Instrument(state.Symbol)
		if !ok {
			s.logger.Warn().Str("symbol", state.Symbol).Msg("saved instrument not configured, skipping")
			continue
		}
		state.Apply(inst)
	}
	for _, p := range s.phenomena {
		if err := p.Restore(byKind[p.Kind()]); err != nil {
			s.rollback(previous)
			return fmt.Errorf("restore %s: %w", p.Kind(), err)
		}
	}

	if snap.RunID != uuid.Nil {
		s.runID = snap.RunID
		s.logger = s.logger.With().Str("run_id", snap.RunID.String()).Logger()
	}
	s.day = snap.Day
	s.feed.Reset(s.day)
	return nil
}

// rollback puts back state captured by Snapshot after a failed Restore.
// A phenomenon's Restore leaves it untouched on error, so re-loading its own
// export cannot fail.
func (s *Simulator) rollback(prev storage.StateSnapshot) {
	for _, state := range prev.Instruments {
		if inst, ok := s.Instrument(state.Symbol); ok {
			state.Apply(inst)
		}
	}
	byKind := make(map[phenomenon.Kind][]phenomenon.SavedRecord)
	for _, rec := range prev.Records {
		byKind[rec.Kind] = append(byKind[rec.Kind], rec)
	}
	for _, p := range s.phenomena {
		if err := p.Restore(byKind[p.Kind()]); err != nil {
			s.logger.Error().Err(err).Str("kind", string(p.Kind())).Msg("rollback after failed restore")
		}
	}
}

// Resume continues a stored run from its last saved day.
func (s *Simulator) Resume(ctx context.Context, runID uuid.UUID) error {
	if s.repo == nil {
		return fmt.Errorf("resume run: %w", storage.ErrNotConfigured)
	}
	if runID == uuid.Nil {
		latest, err := s.repo.LatestRun(ctx)
		if err != nil {
			return fmt.Errorf("find latest run: %w", err)
		}
		runID = latest.ID
	}
	snap, err := s.repo.LoadState(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("resume run %s: no saved state: %w", runID, err)
		}
		return fmt.Errorf("load state: %w", err)
	}
	snap.RunID = runID
	if err := s.Restore(snap); err != nil {
		return err
	}
	s.started = true
	s.logger.Info().Int("day", s.day).Int("records", len(snap.Records)).Msg("resumed run")
	return nil
}
