package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"phenomsim/internal/alerting"
	"phenomsim/internal/config"
	"phenomsim/internal/observability"
	"phenomsim/internal/scheduler"
	"phenomsim/internal/simulation"
	"phenomsim/internal/storage"
	"phenomsim/internal/storage/memory"
	"phenomsim/internal/storage/migrations"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.RequestTimeout, a.Logger)
	}
	return nil
}

// openRepository connects to PostgreSQL when a DSN is configured and falls back
// to an in-memory store otherwise. persistent reports which one was opened.
func (a *App) openRepository(ctx context.Context) (repo storage.Repository, closer func(), persistent bool, err error) {
	if a.Config.Database.DSN == "" {
		return memory.NewStore(), func() {}, false, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, false, err
	}
	if a.Config.Database.AutoMigrate {
		if err := migrations.Run(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, false, err
		}
	}

	store := storage.NewStore(pool)
	return store, store.Close, true, nil
}

func (a *App) newSimulator(mode simulation.Mode, validate bool, repo storage.Repository, metrics *observability.Metrics, sched *scheduler.Scheduler) (*simulation.Simulator, error) {
	return simulation.New(a.Config, simulation.Options{
		Mode:       mode,
		Validate:   validate,
		Repository: repo,
		Metrics:    metrics,
		Scheduler:  sched,
		Notifier:   a.newNotifier(),
	}, a.Logger)
}

// RunOptions configure the live command.
type RunOptions struct {
	// Resume continues the given run, or the latest one when set to uuid.Nil.
	Resume bool
	RunID  uuid.UUID
}

// Run advances the simulation on the scheduler until interrupted.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, closeRepo, persistent, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()
	if !persistent {
		a.Logger.Warn().Msg("database.dsn not configured; state kept in memory only")
	}

	var metrics *observability.Metrics
	if a.Config.Metrics.Enabled {
		metrics = observability.NewMetrics(a.Config.Metrics.Namespace)
		go func() {
			if err := metrics.Serve(ctx, a.Config.Metrics.Listen, a.Logger); err != nil {
				a.Logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	sim, err := a.newSimulator(simulation.ModeLive, true, repo, metrics, sched)
	if err != nil {
		return err
	}
	if opts.Resume {
		if err := sim.Resume(ctx, opts.RunID); err != nil {
			return err
		}
	}

	a.Logger.Info().Str("run_id", sim.RunID().String()).Int("day", sim.Day()).Msg("starting simulation")
	err = sim.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("simulation terminated with error")
		return err
	}

	report := sim.Finish(context.WithoutCancel(ctx))
	a.Logger.Info().Int("day", sim.Day()).Int("defects", len(report.Defects())).Msg("simulation stopped")
	return nil
}

// SimulateOptions configure a batch run.
type SimulateOptions struct {
	Days   int
	Seed   *int64
	Quiet  bool
	Resume bool
	RunID  uuid.UUID
}

// ValidateOptions configure a coupling replay.
type ValidateOptions struct {
	Days int
	Seed *int64
	JSON bool
}

// ExportOptions hold parameters for exporting price paths.
type ExportOptions struct {
	RunID     string
	Symbol    string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	RunID string
	Limit int
	Hints bool
}

func (a *App) resolveRun(ctx context.Context, repo storage.Repository, raw string) (storage.RunRecord, error) {
	if raw == "" {
		run, err := repo.LatestRun(ctx)
		if err != nil {
			return storage.RunRecord{}, fmt.Errorf("find latest run: %w", err)
		}
		return run, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return storage.RunRecord{}, fmt.Errorf("invalid run id %q: %w", raw, err)
	}
	return repo.GetRun(ctx, id)
}

func (a *App) applySeed(seed *int64) {
	if seed != nil {
		a.Config.Simulation.Seed = *seed
	}
}
