// Package memory is an in-process storage.Repository for simulations that run
// without a database and for tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"phenomsim/internal/coupling"
	"phenomsim/internal/news"
	"phenomsim/internal/storage"
)

// Store keeps every record in maps guarded by one mutex.
type Store struct {
	mu          sync.RWMutex
	runs        map[uuid.UUID]storage.RunRecord
	order       []uuid.UUID
	ticks       map[uuid.UUID]map[tickKey]storage.TickRecord
	news        map[uuid.UUID][]news.Item
	newsIDs     map[uuid.UUID]map[uuid.UUID]struct{}
	diagnostics map[uuid.UUID][]coupling.Diagnostic
	states      map[uuid.UUID]storage.StateSnapshot
	locks       map[int64]struct{}
}

var (
	_ storage.Repository     = (*Store)(nil)
	_ storage.AdvisoryLocker = (*Store)(nil)
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		runs:        make(map[uuid.UUID]storage.RunRecord),
		ticks:       make(map[uuid.UUID]map[tickKey]storage.TickRecord),
		news:        make(map[uuid.UUID][]news.Item),
		newsIDs:     make(map[uuid.UUID]map[uuid.UUID]struct{}),
		diagnostics: make(map[uuid.UUID][]coupling.Diagnostic),
		states:      make(map[uuid.UUID]storage.StateSnapshot),
		locks:       make(map[int64]struct{}),
	}
}

// TryAdvisoryLock mirrors the PostgreSQL session lock within one process.
func (s *Store) TryAdvisoryLock(_ context.Context, key int64) (func(), bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.locks[key]; held {
		return func() {}, false, nil
	}
	s.locks[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.locks, key)
			s.mu.Unlock()
		})
	}, true, nil
}

// CreateRun records a run. Re-creating an existing run is a no-op.
func (s *Store) CreateRun(_ context.Context, run storage.RunRecord) error {
	if run.ID == uuid.Nil {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return nil
	}
	run.Instruments = append([]string(nil), run.Instruments...)
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
	return nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(_ context.Context, id uuid.UUID) (storage.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return storage.RunRecord{}, storage.ErrNotFound
	}
	return run, nil
}

// LatestRun returns the most recently created run.
func (s *Store) LatestRun(_ context.Context) (storage.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return storage.RunRecord{}, storage.ErrNotFound
	}
	return s.runs[s.order[len(s.order)-1]], nil
}

type tickKey struct {
	day    int
	symbol string
}

// InsertTicks upserts ticks keyed by run, day and symbol.
func (s *Store) InsertTicks(_ context.Context, ticks []storage.TickRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range ticks {
		if t.RunID == uuid.Nil || t.Symbol == "" {
			return storage.ErrInvalidInput
		}
		byKey := s.ticks[t.RunID]
		if byKey == nil {
			byKey = make(map[tickKey]storage.TickRecord)
			s.ticks[t.RunID] = byKey
		}
		byKey[tickKey{day: t.Day, symbol: t.Symbol}] = t
	}
	return nil
}

// ListTicks lists ticks ordered by day then symbol. An empty symbol lists all.
func (s *Store) ListTicks(_ context.Context, runID uuid.UUID, symbol string) ([]storage.TickRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.TickRecord, 0)
	for _, t := range s.ticks[runID] {
		if symbol == "" || t.Symbol == symbol {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

// InsertNews appends items, skipping ids already stored for the run.
func (s *Store) InsertNews(_ context.Context, runID uuid.UUID, items []news.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.newsIDs[runID]
	if ids == nil {
		ids = make(map[uuid.UUID]struct{})
		s.newsIDs[runID] = ids
	}
	for _, it := range items {
		if _, dup := ids[it.ID]; dup {
			continue
		}
		ids[it.ID] = struct{}{}
		s.news[runID] = append(s.news[runID], it)
	}
	return nil
}

// ListRecentNews lists the newest items first.
func (s *Store) ListRecentNews(_ context.Context, runID uuid.UUID, limit int) ([]storage.NewsRecord, error) {
	s.mu.RLock()
	items := append([]news.Item(nil), s.news[runID]...)
	s.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Day != items[j].Day {
			return items[i].Day > items[j].Day
		}
		if items[i].Symbol != items[j].Symbol {
			return items[i].Symbol < items[j].Symbol
		}
		return items[i].Headline < items[j].Headline
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]storage.NewsRecord, 0, len(items))
	for _, it := range items {
		out = append(out, storage.NewsRecord{RunID: runID, Item: it})
	}
	return out, nil
}

// InsertDiagnostics appends findings.
func (s *Store) InsertDiagnostics(_ context.Context, runID uuid.UUID, diags []coupling.Diagnostic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics[runID] = append(s.diagnostics[runID], diags...)
	return nil
}

// ListDiagnostics lists findings in insertion order.
func (s *Store) ListDiagnostics(_ context.Context, runID uuid.UUID) ([]coupling.Diagnostic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]coupling.Diagnostic(nil), s.diagnostics[runID]...), nil
}

// SaveState replaces the run's state.
func (s *Store) SaveState(_ context.Context, snap storage.StateSnapshot) error {
	if snap.RunID == uuid.Nil {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[snap.RunID] = snap
	return nil
}

// LoadState returns the run's state.
func (s *Store) LoadState(_ context.Context, runID uuid.UUID) (storage.StateSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.states[runID]
	if !ok {
		return storage.StateSnapshot{}, storage.ErrNotFound
	}
	return snap, nil
}
