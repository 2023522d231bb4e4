package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/querydesk/querydesk/internal/catalog"
	"github.com/querydesk/querydesk/internal/engine"
	"github.com/querydesk/querydesk/internal/observability"
)

const cancelGracePeriod = 3 * time.Second

// Config bounds a single orchestration: how often to poll, how many polls,
// the wall-clock budget, and the accepted SQL size.
type Config struct {
	PollInterval    time.Duration
	MaxPollAttempts int
	QueryTimeout    time.Duration
	MaxSQLBytes     int
}

// Service is the orchestration facade. Engine and Catalog are shared across
// concurrent requests; every per-request state lives on the stack of
// Execute, so no locking is needed here.
type Service struct {
	Engine  engine.Engine
	Catalog *catalog.Catalog
	Logger  *slog.Logger
	Config  Config

	// WallClock overrides the real clock in tests. Nil means real time.
	WallClock Clock
}

// Execute runs one query request end to end and always returns exactly one
// outcome: a ResultSet, or an error that unwraps to *Failure.
func (s *Service) Execute(ctx context.Context, req QueryRequest) (ResultSet, error) {
	started := s.clock().Now()

	sql, err := s.resolveSQL(req)
	if err != nil {
		return s.fail(started, err)
	}

	handle, err := s.Engine.Submit(ctx, sql)
	if err != nil {
		if ctx.Err() != nil {
			return s.fail(started, newFailure(KindCancelled, "query was cancelled during submission: %v", ctx.Err()))
		}
		return s.fail(started, newFailure(KindTransport, "submit query: %v", err))
	}
	observability.ObserveQuerySubmission()

	exec := &Execution{
		Handle:      handle,
		State:       ExecutionQueued,
		SubmittedAt: started,
	}

	status, err := s.pollUntilTerminal(ctx, exec)
	if err != nil {
		failure := AsFailure(err)
		// A timed-out or cancelled wait leaves the remote execution
		// running; tell the engine to stop it, without holding up the
		// caller's outcome.
		if failure.Kind == KindTimedOut || failure.Kind == KindCancelled {
			s.cancelRemote(handle)
		}
		return s.fail(started, err)
	}

	result, err := s.collectResults(ctx, handle, status.Stats)
	if err != nil {
		return s.fail(started, err)
	}

	elapsed := s.clock().Now().Sub(started)
	observability.ObserveQueryOutcome("success", elapsed)
	observability.ObserveQueryBytesScanned(result.Stats.BytesScanned)
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "query completed",
			slog.String("handle", exec.Handle),
			slog.Int("rows", result.RowCount),
			slog.Int("attempts", exec.Attempts),
			slog.Int64("bytes_scanned", result.Stats.BytesScanned),
			slog.String("duration", elapsed.String()),
		)
	}
	return result, nil
}

func (s *Service) fail(started time.Time, err error) (ResultSet, error) {
	failure := AsFailure(err)
	observability.ObserveQueryOutcome(string(failure.Kind), s.clock().Now().Sub(started))
	return ResultSet{}, failure
}

// cancelRemote issues a best-effort stop on a detached context so a hung
// engine cannot block outcome delivery.
func (s *Service) cancelRemote(handle string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cancelGracePeriod)
		defer cancel()
		if err := s.Engine.Cancel(ctx, handle); err != nil && s.Logger != nil {
			s.Logger.Warn("best-effort cancel failed",
				slog.String("handle", handle),
				slog.Any("error", err),
			)
		}
	}()
}

func (s *Service) clock() Clock {
	if s.WallClock != nil {
		return s.WallClock
	}
	return realClock{}
}

func (s *Service) pollInterval() time.Duration {
	if s.Config.PollInterval > 0 {
		return s.Config.PollInterval
	}
	return time.Second
}

func (s *Service) maxPollAttempts() int {
	if s.Config.MaxPollAttempts > 0 {
		return s.Config.MaxPollAttempts
	}
	return 120
}

func (s *Service) queryTimeout() time.Duration {
	if s.Config.QueryTimeout > 0 {
		return s.Config.QueryTimeout
	}
	return 2 * time.Minute
}

func (s *Service) maxSQLBytes() int {
	if s.Config.MaxSQLBytes > 0 {
		return s.Config.MaxSQLBytes
	}
	return 256 * 1024
}
