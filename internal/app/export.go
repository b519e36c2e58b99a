package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"phenomsim/internal/simulation"
	"phenomsim/internal/storage"
)

// Export renders a run's price paths as CSV and/or PNG. Without a database the
// configured seed is simulated in memory first.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	repo, closeRepo, persistent, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	if !persistent {
		if opts.RunID != "" {
			return errors.New("database not configured; cannot export a stored run")
		}
		sim, err := a.newSimulator(simulation.ModeSimulate, false, repo, nil, nil)
		if err != nil {
			return err
		}
		if err := sim.RunDays(ctx, a.Config.Simulation.Days, nil); err != nil {
			return err
		}
	}

	run, err := a.resolveRun(ctx, repo, opts.RunID)
	if err != nil {
		return err
	}

	ticks, err := repo.ListTicks(ctx, run.ID, opts.Symbol)
	if err != nil {
		return err
	}
	if len(ticks) == 0 {
		a.Logger.Info().Str("run_id", run.ID.String()).Msg("no ticks found for export")
		return nil
	}

	series := groupBySymbol(ticks)
	exported := 0
	for sym, path := range series {
		series[sym] = downsampleTicks(path, opts.MaxPoints)
		exported += len(series[sym])
	}
	a.Logger.Info().Int("total", len(ticks)).Int("exported", exported).Str("run_id", run.ID.String()).Msg("exporting ticks")

	if opts.CSVPath != "" {
		if err := writeTicksCSV(opts.CSVPath, series); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeTicksPNG(opts.PNGPath, run, series); err != nil {
			return err
		}
	}

	return nil
}

func groupBySymbol(ticks []storage.TickRecord) map[string][]storage.TickRecord {
	out := make(map[string][]storage.TickRecord)
	for _, t := range ticks {
		out[t.Symbol] = append(out[t.Symbol], t)
	}
	return out
}

func sortedSymbols(series map[string][]storage.TickRecord) []string {
	out := make([]string, 0, len(series))
	for sym := range series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func downsampleTicks(ticks []storage.TickRecord, max int) []storage.TickRecord {
	if max <= 0 || len(ticks) <= max {
		return ticks
	}
	if max == 1 {
		return ticks[len(ticks)-1:]
	}

	result := make([]storage.TickRecord, 0, max)
	step := float64(len(ticks)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(ticks) {
			idx = len(ticks) - 1
		}
		result = append(result, ticks[idx])
	}
	return result
}

func writeTicksCSV(path string, series map[string][]storage.TickRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"day", "symbol", "previous_price", "price", "change_pct", "effect", "pure", "phases"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sym := range sortedSymbols(series) {
		for _, t := range series[sym] {
			change := decimal.Zero
			if !t.PreviousPrice.IsZero() {
				change = t.Price.Sub(t.PreviousPrice).Div(t.PreviousPrice).Mul(decimal.NewFromInt(100))
			}
			record := []string{
				strconv.Itoa(t.Day),
				t.Symbol,
				formatDecimal(t.PreviousPrice, 2),
				formatDecimal(t.Price, 2),
				formatDecimal(change, 2),
				strconv.FormatFloat(t.Effect, 'f', 6, 64),
				strconv.FormatBool(t.Pure),
				formatPhases(t.Phases),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	return writer.Error()
}

func formatPhases(phases map[string]string) string {
	kinds := make([]string, 0, len(phases))
	for k := range phases {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, k+"="+phases[k])
	}
	return strings.Join(parts, ";")
}

func writeTicksPNG(path string, run storage.RunRecord, series map[string][]storage.TickRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("Run %s (seed %d)", run.ID.String()[:8], run.Seed),
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name: "Day",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		YAxis: chart.YAxis{
			Name: "Price",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
	}

	for _, sym := range sortedSymbols(series) {
		ticks := series[sym]
		x := make([]float64, len(ticks))
		y := make([]float64, len(ticks))
		for i, t := range ticks {
			x[i] = float64(t.Day)
			y[i] = t.Price.InexactFloat64()
		}
		graph.Series = append(graph.Series, chart.ContinuousSeries{Name: sym, XValues: x, YValues: y})
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
