package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"phenomsim/internal/coupling"
	"phenomsim/internal/market"
	"phenomsim/internal/phenomenon"
	"phenomsim/internal/simulation"
)

// ErrDefectsFound is returned by Validate when the replay reports defects.
var ErrDefectsFound = errors.New("coupling defects found")

// Simulate runs a batch of days and prints the news feed as it is produced.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	a.applySeed(opts.Seed)
	days := opts.Days
	if days <= 0 {
		days = a.Config.Simulation.Days
	}

	repo, closeRepo, persistent, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	sim, err := a.newSimulator(simulation.ModeSimulate, false, repo, nil, nil)
	if err != nil {
		return err
	}
	if opts.Resume {
		if !persistent {
			return errors.New("database not configured; cannot resume")
		}
		if err := sim.Resume(ctx, opts.RunID); err != nil {
			return err
		}
	}

	err = sim.RunDays(ctx, days, func(res simulation.DayResult) {
		if opts.Quiet {
			return
		}
		for _, it := range res.News {
			fmt.Fprintf(a.Out, "D%-4d %-6s %-8s %s\n", it.Day, it.Symbol, it.Sentiment, it.Headline)
		}
	})
	if err != nil {
		return err
	}

	a.printSummary(sim)
	if persistent {
		fmt.Fprintf(a.Out, "run %s saved at day %d\n", sim.RunID(), sim.Day())
	}
	return nil
}

func (a *App) printSummary(sim *simulation.Simulator) {
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "\nSymbol\tPrice\tBase\tChange\tPatterns")
	patterns := make(map[string][]string)
	for _, snap := range sim.ActivePatterns() {
		patterns[snap.Symbol] = append(patterns[snap.Symbol], fmt.Sprintf("%s:%s", snap.Kind, snap.Phase))
	}
	for _, inst := range sim.Instruments() {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			inst.Symbol,
			market.FormatPrice(inst.Price),
			market.FormatPrice(inst.BasePrice),
			market.FormatPct(market.Delta(inst.BasePrice, inst.Price)),
			strings.Join(patterns[inst.Symbol], ","),
		)
	}
	writer.Flush()
}

// Validate replays a seeded run with the coupling validator attached and
// prints its report. It returns ErrDefectsFound when any defect was reported.
func (a *App) Validate(ctx context.Context, opts ValidateOptions) error {
	a.applySeed(opts.Seed)
	if opts.Days > 0 {
		a.Config.Simulation.Days = opts.Days
	}

	repo, closeRepo, _, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	sim, err := a.newSimulator(simulation.ModeValidate, true, repo, nil, nil)
	if err != nil {
		return err
	}
	if err := sim.RunDays(ctx, a.Config.Simulation.Days, nil); err != nil {
		return err
	}
	report := sim.Finish(ctx)

	if opts.JSON {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	} else {
		a.printReport(report)
	}

	if !report.Passed() {
		return fmt.Errorf("%w: %d", ErrDefectsFound, len(report.Defects()))
	}
	return nil
}

func (a *App) printReport(report coupling.Report) {
	fmt.Fprintf(a.Out, "Seed %d, %d days, %d news items, %d classified, %d parity checks\n",
		a.Config.Simulation.Seed, report.Days, report.NewsItems, report.Classified, report.ParityChecks)

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "\nCategory\tTotal\tCorrect\tWrong")
	names := make([]string, 0, len(report.Categories))
	for name := range report.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := report.Categories[name]
		fmt.Fprintf(writer, "%s\t%d\t%d\t%d\n", name, s.Total, s.Correct, s.Wrong)
	}
	writer.Flush()

	kinds := make([]phenomenon.Kind, 0, len(report.Coverage))
	for kind := range report.Coverage {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	fmt.Fprintln(a.Out, "\nPhase coverage:")
	for _, kind := range kinds {
		var parts []string
		for _, phase := range report.CoveredPhases(kind) {
			parts = append(parts, fmt.Sprintf("%s=%d", phase, report.Coverage[kind][phase]))
		}
		fmt.Fprintf(a.Out, "  %s: %s\n", kind, strings.Join(parts, " "))
	}

	warnings := len(report.Diagnostics) - len(report.Defects())
	defects := report.Defects()
	fmt.Fprintf(a.Out, "\n%d defects, %d warnings\n", len(defects), warnings)
	for _, d := range defects {
		fmt.Fprintf(a.Out, "  %s\n", d)
	}
	if report.Passed() {
		fmt.Fprintln(a.Out, "ALL COUPLING CHECKS PASSED")
	}
}
