package simulation

import (
	"context"
	"fmt"
	"time"

	"phenomsim/internal/alerting"
	"phenomsim/internal/coupling"
	"phenomsim/internal/scheduler"
)

// Run advances one simulated day per scheduler bucket until ctx is cancelled
// or simulation.days is reached. Zero days runs without limit.
func (s *Simulator) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	target := s.cfg.Simulation.Days
	return s.scheduler.Run(ctx, func(ctx context.Context, bucket time.Time, _ int) error {
		if target > 0 && s.day >= target {
			return scheduler.ErrStop
		}
		return s.ProcessBucket(ctx, bucket)
	})
}

// ProcessBucket advances one day if this process holds the advisory lock.
func (s *Simulator) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	res, err := s.AdvanceDay(ctx)
	if err != nil {
		return fmt.Errorf("advance day: %w", err)
	}
	for _, it := range res.News {
		s.logger.Info().Time("bucket", bucket).Int("day", res.Day).Str("symbol", it.Symbol).
			Str("sentiment", string(it.Sentiment)).Msg(it.Headline)
	}
	return nil
}

func (s *Simulator) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// Finish closes validation: it adds coverage findings, stores them and sends a
// defect alert when alerting is on. Runs without a validator return an empty report.
func (s *Simulator) Finish(ctx context.Context) coupling.Report {
	if s.validator == nil {
		return coupling.Report{}
	}
	report := s.validator.Finish()
	if fresh := s.takeDiagnostics(); len(fresh) > 0 {
		if s.repo != nil {
			if err := s.repo.InsertDiagnostics(ctx, s.runID, fresh); err != nil {
				s.persistFailed("insert_diagnostics", s.day, err)
			}
		}
		if s.metrics != nil {
			for _, d := range fresh {
				s.metrics.RecordDiagnostic(string(d.Kind), string(d.Severity))
			}
		}
	}

	defects := report.Defects()
	s.logger.Info().Int("days", report.Days).Int("news", report.NewsItems).
		Int("classified", report.Classified).Int("parity_checks", report.ParityChecks).
		Int("defects", len(defects)).Msg("validation finished")

	if len(defects) > 0 && s.alertsOn && s.notifier != nil {
		if err := s.notifier.Notify(ctx, s.notification(report, defects)); err != nil {
			s.logger.Error().Err(err).Msg("failed to dispatch defect alert")
		}
	}
	return report
}

func (s *Simulator) notification(report coupling.Report, defects []coupling.Diagnostic) alerting.Notification {
	byKind := make(map[string]int)
	samples := make([]string, 0, len(defects))
	for _, d := range defects {
		byKind[string(d.Kind)]++
		samples = append(samples, d.String())
	}
	return alerting.Notification{
		RunID:     s.runID.String(),
		Mode:      string(s.mode),
		Seed:      s.cfg.Simulation.Seed,
		Day:       report.Days,
		Ticks:     report.Ticks,
		NewsItems: report.NewsItems,
		Defects:   len(defects),
		ByKind:    byKind,
		Samples:   samples,
		Channels:  s.channels,
	}
}
