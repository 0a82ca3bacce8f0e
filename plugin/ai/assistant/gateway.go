// Package assistant provides the gateway to the hosted Assistants API.
// The gateway speaks in threads, messages and runs; the turn logic lives in server/chat.
package assistant

import (
	"context"
	"errors"
)

// Role is the author of a thread message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// RunStatus is the upstream status of an assistant run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusExpired        RunStatus = "expired"
	RunStatusIncomplete     RunStatus = "incomplete"
)

// IsSuccess reports whether the run finished with a reply.
func (s RunStatus) IsSuccess() bool {
	return s == RunStatusCompleted
}

// IsFailure reports whether the run reached a terminal state without a reply.
func (s RunStatus) IsFailure() bool {
	switch s {
	case RunStatusFailed, RunStatusCancelled, RunStatusExpired, RunStatusIncomplete:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the run will not change status anymore.
func (s RunStatus) IsTerminal() bool {
	return s.IsSuccess() || s.IsFailure()
}

// IsKnown reports whether the status is one the Assistants API documents.
// Unknown statuses are polled like any other non-terminal status.
func (s RunStatus) IsKnown() bool {
	switch s {
	case RunStatusQueued, RunStatusInProgress, RunStatusRequiresAction, RunStatusCancelling:
		return true
	default:
		return s.IsTerminal()
	}
}

// Run is a unit of assistant work on one thread.
type Run struct {
	ID        string
	ThreadID  string
	Status    RunStatus
	LastError string
}

// Message is a thread message reduced to its text blocks.
type Message struct {
	ID    string
	Role  Role
	Texts []string
}

// FirstText returns the primary text payload of the message.
func (m Message) FirstText() (string, bool) {
	if len(m.Texts) == 0 || m.Texts[0] == "" {
		return "", false
	}
	return m.Texts[0], true
}

// Gateway is the set of upstream operations a turn depends on.
type Gateway interface {
	// CreateThread creates a conversation thread and returns its id.
	CreateThread(ctx context.Context) (string, error)

	// AppendMessage adds a user message to the thread.
	AppendMessage(ctx context.Context, threadID, content string) error

	// StartRun starts the assistant against the thread.
	StartRun(ctx context.Context, threadID, assistantID string) (Run, error)

	// GetRun fetches the current state of a run.
	GetRun(ctx context.Context, threadID, runID string) (Run, error)

	// ListMessages returns the thread messages, most recent first.
	ListMessages(ctx context.Context, threadID string) ([]Message, error)
}

// ErrNoAPIKey is returned when no upstream credential is configured.
var ErrNoAPIKey = errors.New("OpenAI API key not configured")
