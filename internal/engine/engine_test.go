package engine

import "testing"

func TestParseState(t *testing.T) {
	cases := map[string]State{
		"QUEUED":     StateQueued,
		"queued":     StateQueued,
		"RUNNING":    StateRunning,
		"SUCCEEDED":  StateSucceeded,
		" succeeded": StateSucceeded,
		"FAILED":     StateFailed,
		"CANCELLED":  StateCancelled,
		"CANCELED":   StateCancelled,
		"":           StateUnknown,
		"PENDING":    StateUnknown,
		"EXPLODED":   StateUnknown,
	}
	for raw, want := range cases {
		if got := ParseState(raw); got != want {
			t.Fatalf("ParseState(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	terminal := []State{StateSucceeded, StateFailed, StateCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("%q should be terminal", s)
		}
	}
	nonTerminal := []State{StateQueued, StateRunning, StateUnknown}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Fatalf("%q should not be terminal", s)
		}
	}
}
