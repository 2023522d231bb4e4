// Package orchestrator drives a SQL request through the asynchronous remote
// engine: resolve the request to SQL, submit it, poll the execution handle to
// a terminal state, and assemble the paginated results into one result set.
package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/querydesk/querydesk/internal/engine"
)

// ErrorKind classifies every failure a query request can end in.
type ErrorKind string

const (
	KindInvalidRequest ErrorKind = "INVALID_REQUEST"
	KindNotFound       ErrorKind = "NOT_FOUND"
	KindEngineFailure  ErrorKind = "ENGINE_FAILURE"
	KindCancelled      ErrorKind = "CANCELLED"
	KindTimedOut       ErrorKind = "TIMED_OUT"
	KindTransport      ErrorKind = "TRANSPORT_ERROR"
	KindUnknownState   ErrorKind = "UNKNOWN_STATE"
)

// Failure is the one error type Execute returns. Kind is stable; Message is
// human readable and may carry engine-supplied text verbatim.
type Failure struct {
	Kind    ErrorKind
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func newFailure(kind ErrorKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsFailure extracts the Failure from err, wrapping anything unexpected as a
// transport failure so callers always see a classified outcome.
func AsFailure(err error) *Failure {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}
	return &Failure{Kind: KindTransport, Message: err.Error()}
}

// QueryRequest is either a literal SQL statement or a reference to a named
// query from the catalog. Exactly one of the two must be set.
type QueryRequest struct {
	SQL          string
	NamedQueryID string
}

// ExecutionState tracks the client-side view of an execution. It extends the
// engine state set with TimedOut, which only exists locally: the remote
// execution may still be running after the local budget elapses.
type ExecutionState string

const (
	ExecutionQueued    ExecutionState = "QUEUED"
	ExecutionRunning   ExecutionState = "RUNNING"
	ExecutionSucceeded ExecutionState = "SUCCEEDED"
	ExecutionFailed    ExecutionState = "FAILED"
	ExecutionCancelled ExecutionState = "CANCELLED"
	ExecutionTimedOut  ExecutionState = "TIMED_OUT"
)

// Execution is the in-flight record owned by a single request. Only the
// poller mutates it; it is dropped once the outcome has been delivered.
type Execution struct {
	Handle       string
	State        ExecutionState
	SubmittedAt  time.Time
	LastPolledAt time.Time
	Attempts     int
}

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Stats struct {
	ExecutionTimeMs int64 `json:"executionTimeMs"`
	BytesScanned    int64 `json:"bytesScanned"`
}

// ResultSet is the normalized outcome of a successful execution. Rows keep
// the engine return order and values stay strings at this layer.
type ResultSet struct {
	Columns  []Column   `json:"columns"`
	Rows     [][]string `json:"rows"`
	RowCount int        `json:"rowCount"`
	Stats    Stats      `json:"stats"`
}

func columnsFromEngine(cols []engine.Column) []Column {
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = Column{Name: c.Name, Type: c.Type}
	}
	return out
}
