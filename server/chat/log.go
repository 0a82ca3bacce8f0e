package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/atlas/plugin/ai/assistant"
)

// Turn is one entry of a conversation log.
type Turn struct {
	ID        string         `json:"id"`
	Role      assistant.Role `json:"role"`
	Content   string         `json:"content"`
	Failed    bool           `json:"failed,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewTurn creates a turn with a fresh short id.
func NewTurn(role assistant.Role, content string) Turn {
	return Turn{
		ID:        shortuuid.New(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Recorder receives every turn after it was appended to a log.
type Recorder interface {
	RecordTurn(ctx context.Context, turn Turn) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, turn Turn) error

// RecordTurn implements Recorder.
func (f RecorderFunc) RecordTurn(ctx context.Context, turn Turn) error {
	return f(ctx, turn)
}

// ConversationLog is an ordered, append-only sequence of turns.
type ConversationLog struct {
	mu        sync.RWMutex
	turns     []Turn
	recorders []Recorder
	logger    *slog.Logger
}

// NewConversationLog creates an empty log.
func NewConversationLog(logger *slog.Logger) *ConversationLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationLog{logger: logger}
}

// WithRecorder registers a recorder and returns the log.
func (l *ConversationLog) WithRecorder(r Recorder) *ConversationLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recorders = append(l.recorders, r)
	return l
}

// Append adds a turn at the end of the log, then hands it to the recorders.
// Recorder failures are logged and do not affect the log.
func (l *ConversationLog) Append(ctx context.Context, turn Turn) {
	l.mu.Lock()
	l.turns = append(l.turns, turn)
	recorders := l.recorders
	l.mu.Unlock()

	if len(recorders) == 0 {
		return
	}
	rctx := context.WithoutCancel(ctx)
	for _, r := range recorders {
		if err := r.RecordTurn(rctx, turn); err != nil {
			l.logger.Warn("failed to record turn",
				slog.String("turn_id", turn.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Snapshot returns a copy of the turns in append order.
func (l *ConversationLog) Snapshot() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of turns.
func (l *ConversationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}
