package simulation

import (
	"context"
	"time"

	"phenomsim/internal/coupling"
	"phenomsim/internal/market"
	"phenomsim/internal/news"
	"phenomsim/internal/phenomenon"
)

// DayResult is everything one simulated day produced.
type DayResult struct {
	Day         int
	Updates     []market.PriceUpdate
	News        []news.Item
	Diagnostics []coupling.Diagnostic
	// Phases maps symbol to kind to phase after the day closed.
	Phases map[string]map[phenomenon.Kind]phenomenon.Phase
}

// AdvanceDay runs one tick:
//
//  1. reset the news feed and clear disabled kinds
//  2. run scheduled triggers and random checks, then step every phenomenon
//  3. apply the aggregated effects in the price updater
//  4. validate and persist
func (s *Simulator) AdvanceDay(ctx context.Context) (DayResult, error) {
	if err := s.start(ctx); err != nil {
		return DayResult{}, err
	}
	began := time.Now()
	s.day++
	day := s.day
	s.feed.Reset(day)
	s.clearDisabled()

	if s.validator != nil {
		s.validator.BeginTick(day, s.instruments)
	}

	s.runQueued()
	for _, p := range s.phenomena {
		p.CheckEvents()
	}
	for _, p := range s.phenomena {
		p.ProcessTick()
	}

	items := s.feed.Items()
	if s.validator != nil {
		s.validator.AfterPhenomena(s.instruments, items)
	}

	updates := s.updater.Apply(s.instruments)

	result := DayResult{Day: day, Updates: updates, News: items, Phases: s.phases()}
	if s.validator != nil {
		s.validator.AfterUpdate(updates)
		result.Diagnostics = s.takeDiagnostics()
	}

	s.persistDay(ctx, result)
	s.observeDay(result, time.Since(began))
	return result, nil
}

// RunDays advances n days, stopping early when ctx is cancelled.
func (s *Simulator) RunDays(ctx context.Context, n int, each func(DayResult)) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := s.AdvanceDay(ctx)
		if err != nil {
			return err
		}
		if each != nil {
			each(res)
		}
	}
	return nil
}

func (s *Simulator) runQueued() {
	queued := s.queued
	s.queued = nil
	for _, q := range queued {
		inst, _ := s.Instrument(q.symbol)
		if !s.phenomenon(q.kind).Trigger(inst, q.severity) {
			s.logger.Info().Str("kind", string(q.kind)).Str("symbol", q.symbol).
				Int("day", s.day).Msg("scheduled trigger rejected")
		}
	}
}

func (s *Simulator) clearDisabled() {
	for _, p := range s.phenomena {
		if !s.disabled[p.Kind()] {
			continue
		}
		for _, inst := range s.instruments {
			if p.ForceClear(inst) {
				s.logger.Info().Str("kind", string(p.Kind())).Str("symbol", inst.Symbol).
					Int("day", s.day).Msg("cleared disabled phenomenon")
			}
		}
	}
}

func (s *Simulator) phases() map[string]map[phenomenon.Kind]phenomenon.Phase {
	out := make(map[string]map[phenomenon.Kind]phenomenon.Phase, len(s.instruments))
	for _, inst := range s.instruments {
		byKind := make(map[phenomenon.Kind]phenomenon.Phase, len(s.phenomena))
		for _, p := range s.phenomena {
			byKind[p.Kind()] = p.PhaseOf(inst.Symbol)
		}
		out[inst.Symbol] = byKind
	}
	return out
}

func (s *Simulator) takeDiagnostics() []coupling.Diagnostic {
	all := s.validator.Report().Diagnostics
	if s.reported >= len(all) {
		return nil
	}
	fresh := append([]coupling.Diagnostic(nil), all[s.reported:]...)
	s.reported = len(all)
	return fresh
}

func (s *Simulator) observeDay(res DayResult, elapsed time.Duration) {
	effects := 0
	for _, u := range res.Updates {
		if u.Pure {
			effects++
		}
	}
	s.logger.Debug().Int("day", res.Day).Int("news", len(res.News)).
		Int("effects", effects).Int("diagnostics", len(res.Diagnostics)).Msg("day closed")

	if s.metrics == nil {
		return
	}
	s.metrics.RecordDay(res.Day, elapsed)
	for _, u := range res.Updates {
		s.metrics.RecordPrice(u.Pure)
	}
	for _, it := range res.News {
		s.metrics.RecordNews(it.Source, string(it.Sentiment))
	}
	for _, d := range res.Diagnostics {
		s.metrics.RecordDiagnostic(string(d.Kind), string(d.Severity))
	}
	counts := make(map[[2]string]int)
	for _, snap := range s.ActivePatterns() {
		counts[[2]string{string(snap.Kind), string(snap.Phase)}]++
	}
	s.metrics.SetActivePatterns(counts)
}
