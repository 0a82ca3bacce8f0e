package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/hrygo/atlas/plugin/ai/assistant"
	chaterrors "github.com/hrygo/atlas/server/internal/errors"
)

// ThreadSession holds the upstream thread of one surface instance.
// The thread id never changes once acquired.
type ThreadSession struct {
	gateway assistant.Gateway
	logger  *slog.Logger

	mu       sync.Mutex
	threadID string
}

// NewThreadSession creates a session without a thread.
func NewThreadSession(gateway assistant.Gateway, logger *slog.Logger) *ThreadSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThreadSession{gateway: gateway, logger: logger}
}

// Acquire creates the upstream thread on first use and returns the held id afterwards.
// A failure leaves the session disconnected and is not retried here.
func (s *ThreadSession) Acquire(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.threadID != "" {
		return s.threadID, nil
	}

	threadID, err := s.gateway.CreateThread(ctx)
	if err == nil && threadID == "" {
		err = chaterrors.MalformedReply("empty thread id")
	}
	if err != nil {
		s.logger.Error("failed to create thread", slog.String("error", err.Error()))
		if errors.Is(err, assistant.ErrNoAPIKey) {
			return "", chaterrors.Unauthorized("no API key configured", err)
		}
		return "", chaterrors.GatewayFailure("create thread", err)
	}

	s.threadID = threadID
	s.logger.Debug("thread acquired", slog.String("thread_id", threadID))
	return threadID, nil
}

// ThreadID returns the held thread id, or "" when none was acquired.
func (s *ThreadSession) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// Connected reports whether a thread is held.
func (s *ThreadSession) Connected() bool {
	return s.ThreadID() != ""
}
