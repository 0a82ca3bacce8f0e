package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/hrygo/atlas/plugin/ai/assistant"
	"github.com/hrygo/atlas/plugin/ai/timeout"
	chaterrors "github.com/hrygo/atlas/server/internal/errors"
	"github.com/hrygo/atlas/server/internal/observability"
)

const (
	// ErrorReplyText is the assistant turn appended for every failed turn.
	ErrorReplyText = "❌ Erro ao conectar com o assistente. Tente novamente."
	// EmptyReplyText replaces an assistant reply without text.
	EmptyReplyText = "Sem resposta"
)

// OutcomeKind classifies the result of a turn.
type OutcomeKind int

const (
	// OutcomeSuccess means the assistant reply was appended.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFailure means the error reply was appended.
	OutcomeFailure
	// OutcomeIgnored means the submission did not meet the preconditions. Nothing was appended.
	OutcomeIgnored
	// OutcomeRejected means another turn was in flight. Nothing was appended.
	OutcomeRejected
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome is the result of Execute.
type Outcome struct {
	Kind OutcomeKind
	// Reply is the assistant turn appended for a success or failure.
	Reply Turn
	// Err carries the classified reason of a failure or rejection.
	Err error
	// Attempts is the number of run-status checks made.
	Attempts int
}

// Reason returns the error code of a failed or rejected outcome.
func (o Outcome) Reason() chaterrors.ErrorCode {
	return chaterrors.CodeOf(o.Err)
}

// ExecutorOption configures a TurnExecutor.
type ExecutorOption func(*TurnExecutor)

// WithClock sets the clock used between poll attempts.
func WithClock(clock Clock) ExecutorOption {
	return func(e *TurnExecutor) { e.clock = clock }
}

// WithPollPolicy overrides the poll budget.
func WithPollPolicy(policy PollPolicy) ExecutorOption {
	return func(e *TurnExecutor) { e.policy = policy }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *TurnExecutor) { e.logger = logger }
}

// WithMetrics records turn metrics.
func WithMetrics(metrics *observability.Metrics) ExecutorOption {
	return func(e *TurnExecutor) { e.metrics = metrics }
}

// WithSurfaceName tags logs and metrics with the surface name.
func WithSurfaceName(name string) ExecutorOption {
	return func(e *TurnExecutor) { e.surface = name }
}

// TurnExecutor drives turns of one surface against one assistant.
// At most one turn is in flight at a time.
type TurnExecutor struct {
	gateway     assistant.Gateway
	assistantID string
	log         *ConversationLog

	clock   Clock
	policy  PollPolicy
	poller  *RunPoller
	logger  *slog.Logger
	metrics *observability.Metrics
	surface string

	inFlight atomic.Bool
}

// NewTurnExecutor creates an executor appending to log.
func NewTurnExecutor(gateway assistant.Gateway, assistantID string, log *ConversationLog, opts ...ExecutorOption) *TurnExecutor {
	e := &TurnExecutor{
		gateway:     gateway,
		assistantID: assistantID,
		log:         log,
		clock:       SystemClock{},
		policy:      DefaultPollPolicy(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.log == nil {
		e.log = NewConversationLog(e.logger)
	}
	e.poller = NewRunPoller(gateway, e.clock, e.policy)
	return e
}

// Log returns the conversation log.
func (e *TurnExecutor) Log() *ConversationLog {
	return e.log
}

// InFlight reports whether a turn is running.
func (e *TurnExecutor) InFlight() bool {
	return e.inFlight.Load()
}

// Execute runs one turn. It never returns a Go error: failures are appended
// to the log as the fixed error reply and reported through the Outcome.
func (e *TurnExecutor) Execute(ctx context.Context, threadID, text string) Outcome {
	if strings.TrimSpace(text) == "" || threadID == "" {
		e.logger.Debug("turn ignored",
			slog.String(observability.LogFieldSurface, e.surface),
			slog.Bool("has_thread", threadID != ""),
		)
		return Outcome{Kind: OutcomeIgnored}
	}

	if !e.inFlight.CompareAndSwap(false, true) {
		e.logger.Debug("turn rejected", slog.String(observability.LogFieldSurface, e.surface))
		return Outcome{Kind: OutcomeRejected, Err: chaterrors.TurnInFlight()}
	}
	defer e.inFlight.Store(false)

	userTurn := NewTurn(assistant.RoleUser, text)
	e.log.Append(ctx, userTurn)

	tc := observability.NewTurnContext(e.logger, e.surface, threadID, userTurn.ID)
	ctx = observability.WithTurnContext(ctx, tc)
	tc.Info("turn started",
		slog.Int(observability.LogFieldMessageLen, len(text)),
		slog.String(observability.LogFieldMessagePreview, truncate(text, timeout.MaxTruncateLength)),
	)
	if e.metrics != nil {
		e.metrics.RecordTurn(e.surface)
	}

	reply, attempts, err := e.run(ctx, tc, threadID, text)

	if e.metrics != nil {
		e.metrics.RecordPollAttempts(attempts)
		e.metrics.RecordDuration(e.surface, tc.Duration())
	}

	if err != nil {
		code := chaterrors.CodeOf(err)
		tc.Error("turn failed", err,
			slog.String(observability.LogFieldErrorCode, string(code)),
			slog.Int64(observability.LogFieldDuration, tc.DurationMs()),
		)
		if e.metrics != nil {
			e.metrics.RecordFailure(e.surface, string(code))
		}

		failed := NewTurn(assistant.RoleAssistant, ErrorReplyText)
		failed.Failed = true
		e.log.Append(ctx, failed)
		return Outcome{Kind: OutcomeFailure, Reply: failed, Err: err, Attempts: attempts}
	}

	replyTurn := NewTurn(assistant.RoleAssistant, reply)
	e.log.Append(ctx, replyTurn)
	tc.Info("turn completed",
		slog.Int64(observability.LogFieldDuration, tc.DurationMs()),
		slog.Int(observability.LogFieldAttempt, attempts),
	)
	return Outcome{Kind: OutcomeSuccess, Reply: replyTurn, Attempts: attempts}
}

func (e *TurnExecutor) run(ctx context.Context, tc *observability.TurnContext, threadID, text string) (string, int, error) {
	if err := e.gateway.AppendMessage(ctx, threadID, text); err != nil {
		return "", 0, e.gatewayErr(ctx, "append message", err)
	}

	run, err := e.gateway.StartRun(ctx, threadID, e.assistantID)
	if err != nil {
		return "", 0, e.gatewayErr(ctx, "start run", err)
	}
	if run.ID == "" {
		return "", 0, chaterrors.MalformedReply("run without id")
	}
	tc.Debug("run started", slog.String(observability.LogFieldRunID, run.ID))

	result := e.poller.Poll(ctx, threadID, run)
	if result.State != PollCompleted {
		return "", result.Attempts, result.Err
	}

	messages, err := e.gateway.ListMessages(ctx, threadID)
	if err != nil {
		return "", result.Attempts, e.gatewayErr(ctx, "list messages", err)
	}
	reply, err := latestReply(messages)
	if err != nil {
		return "", result.Attempts, err
	}
	return reply, result.Attempts, nil
}

func (e *TurnExecutor) gatewayErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return chaterrors.ContextCanceled(err).WithContext("operation", op)
	}
	if errors.Is(err, assistant.ErrNoAPIKey) {
		return chaterrors.Unauthorized("no API key configured", err).WithContext("operation", op)
	}
	return chaterrors.GatewayFailure(op, err)
}

// truncate caps s at limit runes for logging.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// latestReply extracts the reply text from a most-recent-first message list.
func latestReply(messages []assistant.Message) (string, error) {
	if len(messages) == 0 {
		return "", chaterrors.MalformedReply("thread has no messages")
	}
	latest := messages[0]
	if latest.Role != assistant.RoleAssistant {
		return "", chaterrors.MalformedReply("latest message is not an assistant reply").
			WithContext("role", string(latest.Role))
	}
	if text, ok := latest.FirstText(); ok {
		return text, nil
	}
	return EmptyReplyText, nil
}
