package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenomsim/internal/coupling"
	"phenomsim/internal/news"
	"phenomsim/internal/phenomenon"
	"phenomsim/internal/storage"
)

func TestRuns(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.LatestRun(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.CreateRun(ctx, storage.RunRecord{}), storage.ErrInvalidInput)

	first := storage.RunRecord{ID: uuid.New(), Mode: "simulate", Seed: 1}
	second := storage.RunRecord{ID: uuid.New(), Mode: "validate", Seed: 2}
	require.NoError(t, s.CreateRun(ctx, first))
	require.NoError(t, s.CreateRun(ctx, second))

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	got, err := s.GetRun(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Seed)
}

func TestTicksUpsertAndOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	run := uuid.New()

	require.NoError(t, s.InsertTicks(ctx, []storage.TickRecord{
		{RunID: run, Day: 2, Symbol: "BBB", Price: decimal.NewFromInt(10)},
		{RunID: run, Day: 1, Symbol: "BBB", Price: decimal.NewFromInt(9)},
		{RunID: run, Day: 1, Symbol: "AAA", Price: decimal.NewFromInt(100)},
	}))
	require.NoError(t, s.InsertTicks(ctx, []storage.TickRecord{
		{RunID: run, Day: 1, Symbol: "AAA", Price: decimal.NewFromInt(101)},
	}))

	all, err := s.ListTicks(ctx, run, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "AAA", all[0].Symbol)
	assert.True(t, all[0].Price.Equal(decimal.NewFromInt(101)))
	assert.Equal(t, 2, all[2].Day)

	bbb, err := s.ListTicks(ctx, run, "BBB")
	require.NoError(t, err)
	assert.Len(t, bbb, 2)

	assert.ErrorIs(t, s.InsertTicks(ctx, []storage.TickRecord{{Symbol: "X"}}), storage.ErrInvalidInput)
}

func TestNewsDeduplicatesByID(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	run := uuid.New()

	a := news.Item{ID: news.ItemID(1, "AAA", "one"), Day: 1, Symbol: "AAA", Headline: "one"}
	b := news.Item{ID: news.ItemID(2, "AAA", "two"), Day: 2, Symbol: "AAA", Headline: "two"}
	require.NoError(t, s.InsertNews(ctx, run, []news.Item{a, b}))
	require.NoError(t, s.InsertNews(ctx, run, []news.Item{a}))

	recent, err := s.ListRecentNews(ctx, run, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Item.Headline)

	limited, err := s.ListRecentNews(ctx, run, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDiagnosticsAndState(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	run := uuid.New()

	require.NoError(t, s.InsertDiagnostics(ctx, run, []coupling.Diagnostic{{Day: 3, Kind: coupling.KindParity}}))
	diags, err := s.ListDiagnostics(ctx, run)
	require.NoError(t, err)
	require.Len(t, diags, 1)

	_, err = s.LoadState(ctx, run)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	snap := storage.StateSnapshot{
		RunID:   run,
		Day:     7,
		Records: []phenomenon.SavedRecord{{Kind: "dead_cat_bounce", Symbol: "AAA", Phase: "BOUNCE", DaysRemaining: 4}},
	}
	require.NoError(t, s.SaveState(ctx, snap))
	got, err := s.LoadState(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestAdvisoryLock(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	unlock, ok, err := s.TryAdvisoryLock(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)

	_, again, err := s.TryAdvisoryLock(ctx, 42)
	require.NoError(t, err)
	assert.False(t, again)

	unlock()
	unlock()
	_, ok, err = s.TryAdvisoryLock(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok)
}
