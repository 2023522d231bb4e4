// Package engine defines the transport contract for remote query engines
// that execute SQL asynchronously: submission returns an opaque execution
// handle, and status plus paginated results are fetched separately.
package engine

import (
	"context"
	"strings"
)

// State is the engine-reported lifecycle state of an execution.
type State string

const (
	StateQueued    State = "QUEUED"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
	// StateUnknown covers anything outside the documented state set.
	StateUnknown State = "UNKNOWN"
)

// ParseState maps a raw engine status string onto the known state set.
// Anything unrecognized becomes StateUnknown so callers can fail instead of
// retrying forever.
func ParseState(raw string) State {
	switch State(strings.ToUpper(strings.TrimSpace(raw))) {
	case StateQueued:
		return StateQueued
	case StateRunning:
		return StateRunning
	case StateSucceeded:
		return StateSucceeded
	case StateFailed:
		return StateFailed
	case StateCancelled, State("CANCELED"):
		return StateCancelled
	default:
		return StateUnknown
	}
}

// Terminal reports whether no further engine-side transition can occur.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

type Stats struct {
	ExecutionTimeMs int64
	BytesScanned    int64
}

// Status is one observation of an execution. Reason carries the
// engine-supplied failure or cancellation message verbatim.
type Status struct {
	State  State
	Reason string
	Stats  Stats
}

type Column struct {
	Name string
	Type string
}

// Page is one bounded chunk of result rows. NextToken is empty on the last
// page. Columns are populated on every page; consumers treat the first page
// as authoritative.
type Page struct {
	Columns   []Column
	Rows      [][]string
	NextToken string
}

// Engine is the asynchronous job-submission API the orchestrator depends on.
// Implementations must be safe for concurrent use; the orchestrator shares
// one client across requests.
type Engine interface {
	// Submit starts executing sql and returns an execution handle.
	Submit(ctx context.Context, sql string) (string, error)
	// Status reports the current state of the execution.
	Status(ctx context.Context, handle string) (Status, error)
	// Results fetches one page of results for a succeeded execution. An
	// empty pageToken requests the first page.
	Results(ctx context.Context, handle, pageToken string) (Page, error)
	// Cancel asks the engine to stop the execution. Best effort.
	Cancel(ctx context.Context, handle string) error
}
