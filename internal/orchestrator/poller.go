package orchestrator

import (
	"context"
	"log/slog"

	"github.com/querydesk/querydesk/internal/engine"
	"github.com/querydesk/querydesk/internal/observability"
)

// pollUntilTerminal drives one execution from submission to a terminal
// state. Each iteration issues exactly one status call, then either returns
// or sleeps for the poll interval. Once a terminal state is reached no
// further polls are issued for this execution.
//
// The returned status is only meaningful when the error is nil (state
// Succeeded). TimedOut is decided purely client-side: the remote execution
// may still be running, which is why the caller issues a best-effort cancel.
func (s *Service) pollUntilTerminal(ctx context.Context, exec *Execution) (engine.Status, error) {
	deadline := exec.SubmittedAt.Add(s.queryTimeout())

	for {
		if exec.Attempts >= s.maxPollAttempts() || !s.clock().Now().Before(deadline) {
			exec.State = ExecutionTimedOut
			observability.IncrementQueryTimeout()
			return engine.Status{}, newFailure(KindTimedOut,
				"query did not finish within %s (%d polls); the remote execution may still be running",
				s.queryTimeout(), exec.Attempts)
		}

		status, err := s.Engine.Status(ctx, exec.Handle)
		exec.Attempts++
		exec.LastPolledAt = s.clock().Now()
		observability.ObserveQueryPoll()
		if err != nil {
			if ctx.Err() != nil {
				exec.State = ExecutionCancelled
				return engine.Status{}, newFailure(KindCancelled, "query was cancelled while polling: %v", ctx.Err())
			}
			exec.State = ExecutionFailed
			return engine.Status{}, newFailure(KindTransport, "poll execution status: %v", err)
		}

		switch status.State {
		case engine.StateSucceeded:
			exec.State = ExecutionSucceeded
			return status, nil
		case engine.StateFailed:
			exec.State = ExecutionFailed
			return engine.Status{}, newFailure(KindEngineFailure, "%s", failureReason(status.Reason, "query execution failed"))
		case engine.StateCancelled:
			exec.State = ExecutionCancelled
			return engine.Status{}, newFailure(KindCancelled, "%s", failureReason(status.Reason, "query execution was cancelled"))
		case engine.StateQueued:
			exec.State = ExecutionQueued
		case engine.StateRunning:
			exec.State = ExecutionRunning
		default:
			exec.State = ExecutionFailed
			return engine.Status{}, newFailure(KindUnknownState, "engine reported unknown execution state %q", status.State)
		}

		if s.Logger != nil {
			s.Logger.DebugContext(ctx, "execution pending",
				slog.String("handle", exec.Handle),
				slog.String("state", string(exec.State)),
				slog.Int("attempts", exec.Attempts),
			)
		}

		if err := s.clock().Sleep(ctx, s.pollInterval()); err != nil {
			exec.State = ExecutionCancelled
			return engine.Status{}, newFailure(KindCancelled, "query was cancelled while waiting: %v", err)
		}
	}
}

func failureReason(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}
