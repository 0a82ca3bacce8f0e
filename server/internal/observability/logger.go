package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

const (
	// LogFieldRequestID is the field name for request ID.
	LogFieldRequestID = "request_id"
	// LogFieldTurnID is the field name for the user turn ID.
	LogFieldTurnID = "turn_id"
	// LogFieldThreadID is the field name for the upstream thread ID.
	LogFieldThreadID = "thread_id"
	// LogFieldRunID is the field name for the upstream run ID.
	LogFieldRunID = "run_id"
	// LogFieldSurface is the field name for the chat surface.
	LogFieldSurface = "surface"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldMessageLen is the field name for message length.
	LogFieldMessageLen = "message_length"
	// LogFieldMessagePreview is the field name for the truncated message text.
	LogFieldMessagePreview = "message_preview"
	// LogFieldErrorCode is the field name for error code.
	LogFieldErrorCode = "error_code"
	// LogFieldAttempt is the field name for the poll attempt.
	LogFieldAttempt = "attempt"
	// LogFieldRunStatus is the field name for the upstream run status.
	LogFieldRunStatus = "run_status"
)

// TurnContext carries the structured logging context of a single turn.
type TurnContext struct {
	RequestID string
	TurnID    string
	ThreadID  string
	Surface   string
	StartTime time.Time
	Logger    *slog.Logger
}

// NewTurnContext creates a new turn context with a generated request ID.
func NewTurnContext(logger *slog.Logger, surface, threadID, turnID string) *TurnContext {
	return NewTurnContextWithID(logger, generateRequestID(), surface, threadID, turnID)
}

// NewTurnContextWithID creates a new turn context with a specific request ID.
func NewTurnContextWithID(logger *slog.Logger, requestID, surface, threadID, turnID string) *TurnContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnContext{
		RequestID: requestID,
		TurnID:    turnID,
		ThreadID:  threadID,
		Surface:   surface,
		StartTime: time.Now(),
		Logger:    logger,
	}
}

// Info logs an info message.
func (r *TurnContext) Info(msg string, attrs ...slog.Attr) {
	r.Logger.LogAttrs(context.Background(), slog.LevelInfo, msg, r.baseAttrsAppended(attrs...)...)
}

// Debug logs a debug message.
func (r *TurnContext) Debug(msg string, attrs ...slog.Attr) {
	r.Logger.LogAttrs(context.Background(), slog.LevelDebug, msg, r.baseAttrsAppended(attrs...)...)
}

// Warn logs a warning message.
func (r *TurnContext) Warn(msg string, attrs ...slog.Attr) {
	r.Logger.LogAttrs(context.Background(), slog.LevelWarn, msg, r.baseAttrsAppended(attrs...)...)
}

// Error logs an error message with the error.
func (r *TurnContext) Error(msg string, err error, attrs ...slog.Attr) {
	allAttrs := append(attrs, slog.String("error", err.Error()))
	r.Logger.LogAttrs(context.Background(), slog.LevelError, msg, r.baseAttrsAppended(allAttrs...)...)
}

// Duration returns the elapsed time since the turn started.
func (r *TurnContext) Duration() time.Duration {
	return time.Since(r.StartTime)
}

// DurationMs returns the elapsed time in milliseconds.
func (r *TurnContext) DurationMs() int64 {
	return r.Duration().Milliseconds()
}

func (r *TurnContext) baseAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String(LogFieldRequestID, r.RequestID),
		slog.String(LogFieldTurnID, r.TurnID),
		slog.String(LogFieldThreadID, r.ThreadID),
		slog.String(LogFieldSurface, r.Surface),
	}
}

func (r *TurnContext) baseAttrsAppended(attrs ...slog.Attr) []slog.Attr {
	base := r.baseAttrs()
	return append(base, attrs...)
}

func generateRequestID() string {
	return uuid.New().String()
}

type ctxKey struct{}

// WithTurnContext adds the turn context to the context.
func WithTurnContext(ctx context.Context, turnCtx *TurnContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, turnCtx)
}

// FromContext extracts the turn context from the context.
func FromContext(ctx context.Context) (*TurnContext, bool) {
	turnCtx, ok := ctx.Value(ctxKey{}).(*TurnContext)
	return turnCtx, ok
}

var logOutput io.Writer = os.Stderr

// NewLogger builds the process logger: text with debug level in dev, JSON otherwise.
func NewLogger(dev bool) *slog.Logger {
	if dev {
		return slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
