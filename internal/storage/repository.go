package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"phenomsim/internal/coupling"
	"phenomsim/internal/news"
)

const (
	insertRunSQL = `INSERT INTO runs (id, mode, seed, instruments, started_at)
    VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (id) DO NOTHING;`

	selectRunSQL = `SELECT id, mode, seed, instruments, started_at FROM runs WHERE id = $1;`

	latestRunSQL = `SELECT id, mode, seed, instruments, started_at FROM runs ORDER BY started_at DESC LIMIT 1;`

	upsertTickSQL = `INSERT INTO ticks (
        run_id,
        day,
        symbol,
        previous_price,
        price,
        effect,
        pure,
        phases
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (run_id, day, symbol) DO UPDATE
    SET
        previous_price = EXCLUDED.previous_price,
        price          = EXCLUDED.price,
        effect         = EXCLUDED.effect,
        pure           = EXCLUDED.pure,
        phases         = EXCLUDED.phases;`

	listTicksSQL = `SELECT
        run_id,
        day,
        symbol,
        previous_price,
        price,
        effect,
        pure,
        phases,
        created_at
    FROM ticks
    WHERE run_id = $1
      AND ($2 = '' OR symbol = $2)
    ORDER BY day, symbol;`

	insertNewsSQL = `INSERT INTO news_items (
        id,
        run_id,
        day,
        symbol,
        source,
        kind,
        phase,
        headline,
        description,
        sentiment,
        historical,
        meta
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
    )
    ON CONFLICT (run_id, id) DO NOTHING;`

	listRecentNewsSQL = `SELECT
        id,
        day,
        symbol,
        source,
        kind,
        phase,
        headline,
        description,
        sentiment,
        historical,
        meta
    FROM news_items
    WHERE run_id = $1
    ORDER BY day DESC, symbol, headline
    LIMIT $2;`

	insertDiagnosticSQL = `INSERT INTO diagnostics (run_id, day, symbol, kind, severity, payload)
    VALUES ($1,$2,$3,$4,$5,$6);`

	listDiagnosticsSQL = `SELECT payload FROM diagnostics WHERE run_id = $1 ORDER BY day, id;`

	upsertStateSQL = `INSERT INTO phenomenon_state (run_id, day, state, saved_at)
    VALUES ($1,$2,$3,$4)
    ON CONFLICT (run_id) DO UPDATE
    SET day = EXCLUDED.day, state = EXCLUDED.state, saved_at = EXCLUDED.saved_at;`

	selectStateSQL = `SELECT state FROM phenomenon_state WHERE run_id = $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// RunStore persists run metadata.
type RunStore interface {
	CreateRun(ctx context.Context, run RunRecord) error
	GetRun(ctx context.Context, id uuid.UUID) (RunRecord, error)
	LatestRun(ctx context.Context) (RunRecord, error)
}

// TickStore persists daily closing prices.
type TickStore interface {
	InsertTicks(ctx context.Context, ticks []TickRecord) error
	ListTicks(ctx context.Context, runID uuid.UUID, symbol string) ([]TickRecord, error)
}

// NewsStore persists published news.
type NewsStore interface {
	InsertNews(ctx context.Context, runID uuid.UUID, items []news.Item) error
	ListRecentNews(ctx context.Context, runID uuid.UUID, limit int) ([]NewsRecord, error)
}

// DiagnosticStore persists coupling findings.
type DiagnosticStore interface {
	InsertDiagnostics(ctx context.Context, runID uuid.UUID, diags []coupling.Diagnostic) error
	ListDiagnostics(ctx context.Context, runID uuid.UUID) ([]coupling.Diagnostic, error)
}

// StateStore persists the resumable end-of-day state.
type StateStore interface {
	SaveState(ctx context.Context, snap StateSnapshot) error
	LoadState(ctx context.Context, runID uuid.UUID) (StateSnapshot, error)
}

// Repository aggregates every store a simulation writes to.
type Repository interface {
	RunStore
	TickStore
	NewsStore
	DiagnosticStore
	StateStore
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store is the PostgreSQL Repository.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ Repository     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// CreateRun records a new run.
func (s *Store) CreateRun(ctx context.Context, run RunRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if run.ID == uuid.Nil {
		return ErrInvalidInput
	}
	if _, err := pool.Exec(ctx, insertRunSQL, run.ID, run.Mode, run.Seed, run.Instruments, run.StartedAt); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun loads a run by id.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return RunRecord{}, err
	}
	return scanRun(pool.QueryRow(ctx, selectRunSQL, id))
}

// LatestRun loads the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return RunRecord{}, err
	}
	return scanRun(pool.QueryRow(ctx, latestRunSQL))
}

func scanRun(row pgx.Row) (RunRecord, error) {
	var run RunRecord
	if err := row.Scan(&run.ID, &run.Mode, &run.Seed, &run.Instruments, &run.StartedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RunRecord{}, ErrNotFound
		}
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

// InsertTicks upserts a day's ticks in one batch.
func (s *Store) InsertTicks(ctx context.Context, ticks []TickRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(ticks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range ticks {
		phases, err := json.Marshal(t.Phases)
		if err != nil {
			return fmt.Errorf("encode phases: %w", err)
		}
		batch.Queue(upsertTickSQL,
			t.RunID,
			t.Day,
			t.Symbol,
			t.PreviousPrice.String(),
			t.Price.String(),
			t.Effect,
			t.Pure,
			phases,
		)
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert ticks: %w", err)
	}
	return nil
}

// ListTicks lists ticks for a run, optionally for one symbol.
func (s *Store) ListTicks(ctx context.Context, runID uuid.UUID, symbol string) ([]TickRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listTicksSQL, runID, symbol)
	if queryErr != nil {
		return nil, fmt.Errorf("list ticks: %w", queryErr)
	}
	defer rows.Close()

	ticks := make([]TickRecord, 0)
	for rows.Next() {
		tick, scanErr := scanTick(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		ticks = append(ticks, tick)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ticks, nil
}

func scanTick(rows pgx.Rows) (TickRecord, error) {
	var (
		tick        TickRecord
		previousStr string
		priceStr    string
		phases      []byte
	)
	if err := rows.Scan(
		&tick.RunID,
		&tick.Day,
		&tick.Symbol,
		&previousStr,
		&priceStr,
		&tick.Effect,
		&tick.Pure,
		&phases,
		&tick.CreatedAt,
	); err != nil {
		return TickRecord{}, err
	}

	var err error
	if tick.PreviousPrice, err = decimal.NewFromString(previousStr); err != nil {
		return TickRecord{}, fmt.Errorf("parse previous price: %w", err)
	}
	if tick.Price, err = decimal.NewFromString(priceStr); err != nil {
		return TickRecord{}, fmt.Errorf("parse price: %w", err)
	}
	if len(phases) > 0 {
		if err := json.Unmarshal(phases, &tick.Phases); err != nil {
			return TickRecord{}, fmt.Errorf("parse phases: %w", err)
		}
	}
	return tick, nil
}

// InsertNews stores a day's news. Items already stored are skipped.
func (s *Store) InsertNews(ctx context.Context, runID uuid.UUID, items []news.Item) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, it := range items {
		meta, err := json.Marshal(it.Meta)
		if err != nil {
			return fmt.Errorf("encode news meta: %w", err)
		}
		batch.Queue(insertNewsSQL,
			it.ID,
			runID,
			it.Day,
			it.Symbol,
			it.Source,
			it.Kind,
			it.Phase,
			it.Headline,
			it.Description,
			string(it.Sentiment),
			it.Historical,
			meta,
		)
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert news: %w", err)
	}
	return nil
}

// ListRecentNews lists the newest items first.
func (s *Store) ListRecentNews(ctx context.Context, runID uuid.UUID, limit int) ([]NewsRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentNewsSQL, runID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent news: %w", queryErr)
	}
	defer rows.Close()

	out := make([]NewsRecord, 0, limit)
	for rows.Next() {
		var (
			it        news.Item
			sentiment string
			meta      []byte
		)
		if err := rows.Scan(
			&it.ID,
			&it.Day,
			&it.Symbol,
			&it.Source,
			&it.Kind,
			&it.Phase,
			&it.Headline,
			&it.Description,
			&sentiment,
			&it.Historical,
			&meta,
		); err != nil {
			return nil, err
		}
		it.Sentiment = news.Sentiment(sentiment)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &it.Meta); err != nil {
				return nil, fmt.Errorf("parse news meta: %w", err)
			}
		}
		out = append(out, NewsRecord{RunID: runID, Item: it})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// InsertDiagnostics stores coupling findings.
func (s *Store) InsertDiagnostics(ctx context.Context, runID uuid.UUID, diags []coupling.Diagnostic) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(diags) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, d := range diags {
		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode diagnostic: %w", err)
		}
		batch.Queue(insertDiagnosticSQL, runID, d.Day, d.Symbol, string(d.Kind), string(d.Severity), payload)
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert diagnostics: %w", err)
	}
	return nil
}

// ListDiagnostics lists a run's findings in day order.
func (s *Store) ListDiagnostics(ctx context.Context, runID uuid.UUID) ([]coupling.Diagnostic, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listDiagnosticsSQL, runID)
	if queryErr != nil {
		return nil, fmt.Errorf("list diagnostics: %w", queryErr)
	}
	defer rows.Close()

	out := make([]coupling.Diagnostic, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var d coupling.Diagnostic
		if err := json.Unmarshal(payload, &d); err != nil {
			return nil, fmt.Errorf("parse diagnostic: %w", err)
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// SaveState replaces the run's resumable state.
func (s *Store) SaveState(ctx context.Context, snap StateSnapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if snap.RunID == uuid.Nil {
		return ErrInvalidInput
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}
	state, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if _, err := pool.Exec(ctx, upsertStateSQL, snap.RunID, snap.Day, state, snap.SavedAt); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// LoadState loads the run's resumable state.
func (s *Store) LoadState(ctx context.Context, runID uuid.UUID) (StateSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return StateSnapshot{}, err
	}
	var state []byte
	if err := pool.QueryRow(ctx, selectStateSQL, runID).Scan(&state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StateSnapshot{}, ErrNotFound
		}
		return StateSnapshot{}, fmt.Errorf("load state: %w", err)
	}
	var snap StateSnapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		return StateSnapshot{}, fmt.Errorf("parse state: %w", err)
	}
	return snap, nil
}
