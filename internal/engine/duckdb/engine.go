// Package duckdb runs SQL on an embedded DuckDB instance behind the same
// asynchronous submit/poll/fetch contract the remote engines expose. Each
// submission becomes a background job tracked in an in-memory registry.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/querydesk/querydesk/internal/engine"
	"github.com/querydesk/querydesk/internal/storage"
)

type Config struct {
	// ResultsPageSize bounds how many rows a single Results call returns.
	ResultsPageSize int
	// TerminalRetention is how long a terminal job whose results were
	// never fetched stays in the registry before it is swept. Succeeded
	// jobs are evicted as soon as their final page is served.
	TerminalRetention time.Duration
}

type Engine struct {
	cfg    Config
	logger *slog.Logger
	store  storage.ObjectStore

	// openDB is swapped in tests to back the engine with a mock driver.
	openDB func() (*sql.DB, error)

	mu   sync.Mutex
	jobs map[string]*job
}

type job struct {
	mu         sync.Mutex
	state      engine.State
	reason     string
	stats      engine.Stats
	columns    []engine.Column
	rows       [][]string
	cancel     context.CancelFunc
	finishedAt time.Time
}

// New builds an engine backed by an in-memory DuckDB database. store may be
// nil; result artifacts are then not deposited.
func New(cfg Config, logger *slog.Logger, store storage.ObjectStore) *Engine {
	if cfg.ResultsPageSize <= 0 {
		cfg.ResultsPageSize = 1000
	}
	if cfg.TerminalRetention <= 0 {
		cfg.TerminalRetention = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger,
		store:  store,
		openDB: func() (*sql.DB, error) {
			return sql.Open("duckdb", "")
		},
		jobs: make(map[string]*job),
	}
}

func (e *Engine) Submit(ctx context.Context, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	handle := uuid.NewString()

	// Jobs outlive the submitting request; cancellation happens through
	// Cancel, not through the caller's context.
	jobCtx, cancel := context.WithCancel(context.Background())
	j := &job{state: engine.StateQueued, cancel: cancel}

	e.mu.Lock()
	e.sweepLocked()
	e.jobs[handle] = j
	e.mu.Unlock()

	go e.run(jobCtx, handle, j, query)
	return handle, nil
}

func (e *Engine) Status(_ context.Context, handle string) (engine.Status, error) {
	j, err := e.job(handle)
	if err != nil {
		return engine.Status{}, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return engine.Status{State: j.state, Reason: j.reason, Stats: j.stats}, nil
}

func (e *Engine) Results(_ context.Context, handle, pageToken string) (engine.Page, error) {
	j, err := e.job(handle)
	if err != nil {
		return engine.Page{}, err
	}

	j.mu.Lock()
	if j.state != engine.StateSucceeded {
		j.mu.Unlock()
		return engine.Page{}, fmt.Errorf("execution %q is not in a fetchable state: %s", handle, j.state)
	}

	offset := 0
	if pageToken != "" {
		offset, err = strconv.Atoi(pageToken)
		if err != nil || offset < 0 || offset > len(j.rows) {
			j.mu.Unlock()
			return engine.Page{}, fmt.Errorf("invalid page token %q", pageToken)
		}
	}

	end := offset + e.cfg.ResultsPageSize
	if end > len(j.rows) {
		end = len(j.rows)
	}
	page := engine.Page{Columns: j.columns, Rows: j.rows[offset:end]}
	if end < len(j.rows) {
		page.NextToken = strconv.Itoa(end)
	}
	j.mu.Unlock()

	// The registry only holds a job until its result has been delivered;
	// serving the last page ends the job's life.
	if page.NextToken == "" {
		e.evict(handle)
	}
	return page, nil
}

func (e *Engine) evict(handle string) {
	e.mu.Lock()
	delete(e.jobs, handle)
	e.mu.Unlock()
}

// sweepLocked drops terminal jobs that outlived the retention window, i.e.
// failed, cancelled, or never-fetched executions. Callers hold e.mu.
func (e *Engine) sweepLocked() {
	cutoff := time.Now().Add(-e.cfg.TerminalRetention)
	for handle, j := range e.jobs {
		j.mu.Lock()
		expired := j.state.Terminal() && !j.finishedAt.IsZero() && j.finishedAt.Before(cutoff)
		j.mu.Unlock()
		if expired {
			delete(e.jobs, handle)
		}
	}
}

func (e *Engine) Cancel(_ context.Context, handle string) error {
	j, err := e.job(handle)
	if err != nil {
		return err
	}
	j.mu.Lock()
	terminal := j.state.Terminal()
	j.mu.Unlock()
	if terminal {
		return nil
	}
	j.cancel()
	return nil
}

func (e *Engine) job(handle string) (*job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[handle]
	if !ok {
		return nil, fmt.Errorf("unknown execution handle %q", handle)
	}
	return j, nil
}

func (e *Engine) run(ctx context.Context, handle string, j *job, query string) {
	defer j.cancel()

	j.mu.Lock()
	j.state = engine.StateRunning
	j.mu.Unlock()

	started := time.Now()
	columns, rows, bytesRead, err := e.execute(ctx, query)
	elapsed := time.Since(started)

	j.mu.Lock()
	j.stats = engine.Stats{ExecutionTimeMs: elapsed.Milliseconds(), BytesScanned: bytesRead}
	j.finishedAt = time.Now()

	if err != nil {
		if ctx.Err() != nil {
			j.state = engine.StateCancelled
			j.reason = "execution cancelled"
			j.mu.Unlock()
			return
		}
		j.state = engine.StateFailed
		j.reason = err.Error()
		j.mu.Unlock()
		e.logger.Warn("query execution failed", "handle", handle, "error", err)
		return
	}

	j.columns = columns
	j.rows = rows
	j.state = engine.StateSucceeded
	j.mu.Unlock()

	if e.store != nil {
		e.depositArtifact(handle, columns, rows)
	}
}

func (e *Engine) execute(ctx context.Context, query string) ([]engine.Column, [][]string, int64, error) {
	db, err := e.openDB()
	if err != nil {
		return nil, nil, 0, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	sqlRows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, 0, err
	}
	defer sqlRows.Close()

	columnTypes, err := sqlRows.ColumnTypes()
	if err != nil {
		return nil, nil, 0, fmt.Errorf("read column metadata: %w", err)
	}
	columns := make([]engine.Column, 0, len(columnTypes))
	for _, ct := range columnTypes {
		columns = append(columns, engine.Column{Name: ct.Name(), Type: ct.DatabaseTypeName()})
	}

	var (
		rows      [][]string
		bytesRead int64
	)
	for sqlRows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := sqlRows.Scan(pointers...); err != nil {
			return nil, nil, 0, fmt.Errorf("scan row: %w", err)
		}
		row := make([]string, len(columns))
		for i, value := range values {
			row[i] = formatValue(value)
			bytesRead += int64(len(row[i]))
		}
		rows = append(rows, row)
	}
	if err := sqlRows.Err(); err != nil {
		return nil, nil, 0, err
	}
	return columns, rows, bytesRead, nil
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case bool:
		return strconv.FormatBool(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (e *Engine) depositArtifact(handle string, columns []engine.Column, rows [][]string) {
	key, err := storage.ResultArtifactKey(handle)
	if err != nil {
		e.logger.Warn("skip result artifact", "handle", handle, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := writeResultArtifact(ctx, e.store, key, columns, rows); err != nil {
		// Artifacts are a convenience; the job stays succeeded.
		e.logger.Warn("deposit result artifact failed", "handle", handle, "key", key, "error", err)
		return
	}
	e.logger.Debug("deposited result artifact", "handle", handle, "key", key)
}
