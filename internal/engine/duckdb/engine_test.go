package duckdb

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/querydesk/querydesk/internal/engine"
	"github.com/querydesk/querydesk/internal/storage"
)

func newMockEngine(t *testing.T, cfg Config, store storage.ObjectStore) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	e := New(cfg, nil, store)
	e.openDB = func() (*sql.DB, error) { return db, nil }
	return e, mock
}

func waitForTerminal(t *testing.T, e *Engine, handle string) engine.Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err := e.Status(context.Background(), handle)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.State.Terminal() {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("execution did not reach a terminal state")
	return engine.Status{}
}

func salesRows() *sqlmock.Rows {
	return sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("region").OfType("VARCHAR", ""),
		sqlmock.NewColumn("total").OfType("BIGINT", int64(0)),
	).
		AddRow("emea", int64(120)).
		AddRow("apac", int64(95)).
		AddRow("amer", int64(203))
}

func TestSubmitRunsToSuccess(t *testing.T) {
	e, mock := newMockEngine(t, Config{}, nil)
	mock.ExpectQuery("SELECT region, total FROM sales").WillReturnRows(salesRows())

	handle, err := e.Submit(context.Background(), "SELECT region, total FROM sales")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	status := waitForTerminal(t, e, handle)
	if status.State != engine.StateSucceeded {
		t.Fatalf("unexpected state %q reason %q", status.State, status.Reason)
	}
	if status.Stats.BytesScanned == 0 {
		t.Fatal("expected non-zero bytes scanned")
	}

	page, err := e.Results(context.Background(), handle, "")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(page.Columns) != 2 || page.Columns[0].Name != "region" || page.Columns[1].Type != "BIGINT" {
		t.Fatalf("unexpected columns %+v", page.Columns)
	}
	if len(page.Rows) != 3 || page.Rows[0][0] != "emea" || page.Rows[0][1] != "120" {
		t.Fatalf("unexpected rows %+v", page.Rows)
	}
	if page.NextToken != "" {
		t.Fatalf("unexpected next token %q", page.NextToken)
	}
}

func TestResultsPagination(t *testing.T) {
	e, mock := newMockEngine(t, Config{ResultsPageSize: 2}, nil)
	mock.ExpectQuery("SELECT region, total FROM sales").WillReturnRows(salesRows())

	handle, err := e.Submit(context.Background(), "SELECT region, total FROM sales")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForTerminal(t, e, handle)

	first, err := e.Results(context.Background(), handle, "")
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Rows) != 2 || first.NextToken != "2" {
		t.Fatalf("unexpected first page %+v", first)
	}

	second, err := e.Results(context.Background(), handle, first.NextToken)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Rows) != 1 || second.Rows[0][0] != "amer" || second.NextToken != "" {
		t.Fatalf("unexpected second page %+v", second)
	}

	if _, err := e.Results(context.Background(), handle, "nope"); err == nil {
		t.Fatal("expected invalid token error")
	}
}

func TestFailedQueryCarriesReason(t *testing.T) {
	e, mock := newMockEngine(t, Config{}, nil)
	mock.ExpectQuery("SELECT broken").WillReturnError(errors.New("Parser Error: syntax error at end of input"))

	handle, err := e.Submit(context.Background(), "SELECT broken")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	status := waitForTerminal(t, e, handle)
	if status.State != engine.StateFailed {
		t.Fatalf("unexpected state %q", status.State)
	}
	if !strings.Contains(status.Reason, "Parser Error") {
		t.Fatalf("unexpected reason %q", status.Reason)
	}
	if _, err := e.Results(context.Background(), handle, ""); err == nil {
		t.Fatal("expected error fetching results of a failed execution")
	}
}

func TestCancelStopsRunningExecution(t *testing.T) {
	e, mock := newMockEngine(t, Config{}, nil)
	mock.ExpectQuery("SELECT pg_sleep(60)").
		WillDelayFor(5 * time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"ok"}))

	handle, err := e.Submit(context.Background(), "SELECT pg_sleep(60)")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := e.Cancel(context.Background(), handle); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	status := waitForTerminal(t, e, handle)
	if status.State != engine.StateCancelled {
		t.Fatalf("unexpected state %q", status.State)
	}

	// Cancelling a terminal execution is a no-op.
	if err := e.Cancel(context.Background(), handle); err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
}

func TestDeliveredExecutionLeavesRegistry(t *testing.T) {
	e, mock := newMockEngine(t, Config{}, nil)
	mock.ExpectQuery("SELECT region, total FROM sales").WillReturnRows(salesRows())

	handle, err := e.Submit(context.Background(), "SELECT region, total FROM sales")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForTerminal(t, e, handle)

	page, err := e.Results(context.Background(), handle, "")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if page.NextToken != "" {
		t.Fatalf("expected final page, got token %q", page.NextToken)
	}

	// Delivering the final page must drop the job and its row set.
	if _, err := e.Status(context.Background(), handle); err == nil {
		t.Fatal("expected unknown handle after delivery")
	}
	e.mu.Lock()
	retained := len(e.jobs)
	e.mu.Unlock()
	if retained != 0 {
		t.Fatalf("registry still holds %d jobs after delivery", retained)
	}
}

func TestPagedDeliveryEvictsOnlyAfterLastPage(t *testing.T) {
	e, mock := newMockEngine(t, Config{ResultsPageSize: 2}, nil)
	mock.ExpectQuery("SELECT region, total FROM sales").WillReturnRows(salesRows())

	handle, err := e.Submit(context.Background(), "SELECT region, total FROM sales")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForTerminal(t, e, handle)

	first, err := e.Results(context.Background(), handle, "")
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if _, err := e.Status(context.Background(), handle); err != nil {
		t.Fatalf("job evicted before final page: %v", err)
	}

	if _, err := e.Results(context.Background(), handle, first.NextToken); err != nil {
		t.Fatalf("final page: %v", err)
	}
	if _, err := e.Status(context.Background(), handle); err == nil {
		t.Fatal("expected unknown handle after final page")
	}
}

func TestSweepDropsStaleTerminalJobs(t *testing.T) {
	e, mock := newMockEngine(t, Config{TerminalRetention: time.Millisecond}, nil)
	mock.ExpectQuery("SELECT broken").WillReturnError(errors.New("boom"))
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}))

	failed, err := e.Submit(context.Background(), "SELECT broken")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForTerminal(t, e, failed)
	time.Sleep(20 * time.Millisecond)

	// The next submission sweeps the expired failed job.
	if _, err := e.Submit(context.Background(), "SELECT 1"); err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if _, err := e.Status(context.Background(), failed); err == nil {
		t.Fatal("expected stale failed job to be swept")
	}
}

func TestUnknownHandleRejected(t *testing.T) {
	e, _ := newMockEngine(t, Config{}, nil)
	if _, err := e.Status(context.Background(), "no-such-handle"); err == nil {
		t.Fatal("expected unknown handle error")
	}
	if err := e.Cancel(context.Background(), "no-such-handle"); err == nil {
		t.Fatal("expected unknown handle error")
	}
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, opts storage.PutOptions) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = opts.ContentType
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func TestSuccessDepositsParquetArtifact(t *testing.T) {
	store := newMemoryStore()
	e, mock := newMockEngine(t, Config{}, store)
	mock.ExpectQuery("SELECT region, total FROM sales").WillReturnRows(salesRows())

	handle, err := e.Submit(context.Background(), "SELECT region, total FROM sales")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForTerminal(t, e, handle)

	key, err := storage.ResultArtifactKey(handle)
	if err != nil {
		t.Fatalf("ResultArtifactKey: %v", err)
	}

	// The deposit happens after the state flips; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if reader, err := store.Get(context.Background(), key); err == nil {
			reader.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("artifact %q never appeared", key)
		}
		time.Sleep(10 * time.Millisecond)
	}

	store.mu.Lock()
	contentType := store.types[key]
	size := len(store.objects[key])
	store.mu.Unlock()
	if contentType != parquetContentType {
		t.Fatalf("unexpected content type %q", contentType)
	}
	if size == 0 {
		t.Fatal("expected non-empty artifact")
	}
}
