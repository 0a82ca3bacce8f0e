package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrygo/atlas/plugin/ai/assistant"
	"github.com/hrygo/atlas/plugin/ai/timeout"
	chaterrors "github.com/hrygo/atlas/server/internal/errors"
	"github.com/hrygo/atlas/server/internal/observability"
)

// PollState is the state of a run poll.
type PollState int

const (
	PollCreated PollState = iota
	PollPolling
	PollCompleted
	PollFailed
	PollTimedOut
)

func (s PollState) String() string {
	switch s {
	case PollCreated:
		return "created"
	case PollPolling:
		return "polling"
	case PollCompleted:
		return "completed"
	case PollFailed:
		return "failed"
	case PollTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// PollPolicy bounds a poll: a fixed delay before each of at most MaxAttempts checks.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPollPolicy returns the production poll budget.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Interval:    timeout.PollInterval,
		MaxAttempts: timeout.MaxPollAttempts,
	}
}

// PollResult is the terminal outcome of a poll.
type PollResult struct {
	State    PollState
	Run      assistant.Run
	Attempts int
	Err      error
}

// RunPoller waits for a run to reach a terminal status.
type RunPoller struct {
	gateway assistant.Gateway
	clock   Clock
	policy  PollPolicy
}

// NewRunPoller creates a poller. Zero policy fields fall back to the defaults.
func NewRunPoller(gateway assistant.Gateway, clock Clock, policy PollPolicy) *RunPoller {
	if clock == nil {
		clock = SystemClock{}
	}
	def := DefaultPollPolicy()
	if policy.Interval <= 0 {
		policy.Interval = def.Interval
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	return &RunPoller{gateway: gateway, clock: clock, policy: policy}
}

// Policy returns the effective poll policy.
func (p *RunPoller) Policy() PollPolicy {
	return p.policy
}

// Poll checks the run until it completes, fails, or the budget runs out.
// Transport errors and unknown statuses count as attempts and polling goes on.
// Logs carry the turn context attached to ctx, if any.
func (p *RunPoller) Poll(ctx context.Context, threadID string, run assistant.Run) PollResult {
	tc, ok := observability.FromContext(ctx)
	if !ok {
		tc = observability.NewTurnContext(nil, "", threadID, "")
	}
	result := PollResult{State: PollCreated, Run: run}

	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		result.State = PollPolling

		select {
		case <-ctx.Done():
			result.State = PollFailed
			result.Err = chaterrors.ContextCanceled(ctx.Err()).WithContext("run_id", run.ID)
			return result
		case <-p.clock.After(p.policy.Interval):
		}

		result.Attempts = attempt
		current, err := p.gateway.GetRun(ctx, threadID, run.ID)
		if err != nil {
			if ctx.Err() != nil {
				result.State = PollFailed
				result.Err = chaterrors.ContextCanceled(ctx.Err()).WithContext("run_id", run.ID)
				return result
			}
			tc.Warn("get run failed, polling again",
				slog.String(observability.LogFieldRunID, run.ID),
				slog.Int(observability.LogFieldAttempt, attempt),
				slog.String("error", err.Error()),
			)
			continue
		}

		result.Run.Status = current.Status
		result.Run.LastError = current.LastError

		switch {
		case current.Status.IsSuccess():
			result.State = PollCompleted
			return result
		case current.Status.IsFailure():
			result.State = PollFailed
			result.Err = chaterrors.RunFailed(run.ID, string(current.Status), current.LastError)
			return result
		case !current.Status.IsKnown():
			tc.Warn("unknown run status, polling again",
				slog.String(observability.LogFieldRunID, run.ID),
				slog.Int(observability.LogFieldAttempt, attempt),
				slog.String(observability.LogFieldRunStatus, string(current.Status)),
			)
		default:
			tc.Debug("run pending",
				slog.String(observability.LogFieldRunID, run.ID),
				slog.Int(observability.LogFieldAttempt, attempt),
				slog.String(observability.LogFieldRunStatus, string(current.Status)),
			)
		}
	}

	result.State = PollTimedOut
	result.Err = chaterrors.Timeout(run.ID, p.policy.MaxAttempts)
	return result
}
