package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrygo/atlas/plugin/ai/assistant"
	"github.com/hrygo/atlas/server/internal/observability"
)

// SurfaceConfig carries the dependencies shared by surface instances.
type SurfaceConfig struct {
	UserName   string
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	Clock      Clock
	PollPolicy PollPolicy
}

// Surface is one chat-surface instance: a persona bound to a thread and a turn executor.
type Surface struct {
	ID        string
	Persona   Persona
	CreatedAt time.Time

	userName string
	session  *ThreadSession
	executor *TurnExecutor
}

// NewSurface creates a disconnected surface with an empty log.
func NewSurface(id string, persona Persona, gateway assistant.Gateway, cfg SurfaceConfig) *Surface {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String(observability.LogFieldSurface, persona.Key))

	opts := []ExecutorOption{
		WithLogger(logger),
		WithSurfaceName(persona.Key),
		WithMetrics(cfg.Metrics),
	}
	if cfg.Clock != nil {
		opts = append(opts, WithClock(cfg.Clock))
	}
	if cfg.PollPolicy != (PollPolicy{}) {
		opts = append(opts, WithPollPolicy(cfg.PollPolicy))
	}

	return &Surface{
		ID:        id,
		Persona:   persona,
		CreatedAt: time.Now(),
		userName:  cfg.UserName,
		session:   NewThreadSession(gateway, logger),
		executor:  NewTurnExecutor(gateway, persona.AssistantID, NewConversationLog(logger), opts...),
	}
}

// Start acquires the upstream thread. On failure the surface stays disconnected
// and every later submission is ignored.
func (s *Surface) Start(ctx context.Context) error {
	_, err := s.session.Acquire(ctx)
	return err
}

// SeedWelcome appends the persona welcome text as the first assistant turn.
func (s *Surface) SeedWelcome(ctx context.Context) {
	if s.executor.Log().Len() > 0 {
		return
	}
	s.executor.Log().Append(ctx, NewTurn(assistant.RoleAssistant, s.Persona.WelcomeFor(s.userName)))
}

// Submit runs a turn with the given user text.
func (s *Surface) Submit(ctx context.Context, text string) Outcome {
	return s.executor.Execute(ctx, s.session.ThreadID(), text)
}

// QuickAction submits the canned prompt of the labeled action.
// An unknown label is ignored.
func (s *Surface) QuickAction(ctx context.Context, label string) Outcome {
	prompt, ok := s.Persona.Prompt(label)
	if !ok {
		return Outcome{Kind: OutcomeIgnored}
	}
	return s.Submit(ctx, prompt)
}

// ThreadID returns the upstream thread id, or "" when disconnected.
func (s *Surface) ThreadID() string {
	return s.session.ThreadID()
}

// Connected reports whether the surface holds a thread.
func (s *Surface) Connected() bool {
	return s.session.Connected()
}

// Typing reports whether a turn is in flight.
func (s *Surface) Typing() bool {
	return s.executor.InFlight()
}

// Log returns the conversation log.
func (s *Surface) Log() *ConversationLog {
	return s.executor.Log()
}

// Turns returns a snapshot of the conversation.
func (s *Surface) Turns() []Turn {
	return s.executor.Log().Snapshot()
}
