package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"phenomsim/internal/simulation"
)

// Show prints a stored run's most recent news, optionally with tutorial hints.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	repo, closeRepo, persistent, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()
	if !persistent {
		return fmt.Errorf("database not configured; cannot show news")
	}

	run, err := a.resolveRun(ctx, repo, opts.RunID)
	if err != nil {
		return err
	}

	records, err := repo.ListRecentNews(ctx, run.ID, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no news found")
		return nil
	}

	// Hints are pure functions of the item, so a fresh simulator can explain stored news.
	var sim *simulation.Simulator
	if opts.Hints {
		sim, err = a.newSimulator(simulation.ModeSimulate, false, nil, nil, nil)
		if err != nil {
			return err
		}
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Day\tSymbol\tSource\tPhase\tSentiment\tHeadline")
	for _, rec := range records {
		it := rec.Item
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\t%s\n",
			it.Day, it.Symbol, it.Source, it.Phase, it.Sentiment, sanitizeInline(it.Headline))
		if sim == nil {
			continue
		}
		if hint := sim.TutorialHint(it); hint != nil {
			fmt.Fprintf(writer, "\t\t\t\t\t  %s: %s\n", hint.Type, sanitizeInline(hint.Action))
		}
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
