package assistant

import (
	"context"
	"fmt"
	"sync"
)

// MockGateway is a scripted Gateway for testing.
type MockGateway struct {
	mu sync.Mutex

	ThreadID        string
	CreateThreadErr error
	AppendErr       error
	StartRunErr     error
	RunID           string

	// RunStatuses is returned by successive GetRun calls; the last one repeats.
	RunStatuses []RunStatus
	GetRunErr   error

	Messages []Message
	ListErr  error

	// RunGate, when set, blocks every GetRun until it receives a value or is closed.
	RunGate chan struct{}

	calls    []string
	appended []string
	pollIdx  int
	runs     int
}

// NewMockGateway creates a MockGateway whose runs complete with the given reply.
func NewMockGateway(reply string) *MockGateway {
	return &MockGateway{
		ThreadID:    "thread_mock",
		RunStatuses: []RunStatus{RunStatusCompleted},
		Messages: []Message{
			{ID: "msg_reply", Role: RoleAssistant, Texts: []string{reply}},
		},
	}
}

func (m *MockGateway) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op)
}

// Calls returns the operations invoked so far, in order.
func (m *MockGateway) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times op was invoked.
func (m *MockGateway) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (m *MockGateway) CreateThread(_ context.Context) (string, error) {
	m.record("CreateThread")
	if m.CreateThreadErr != nil {
		return "", m.CreateThreadErr
	}
	return m.ThreadID, nil
}

func (m *MockGateway) AppendMessage(_ context.Context, _, content string) error {
	m.record("AppendMessage")
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	m.appended = append(m.appended, content)
	m.mu.Unlock()
	return nil
}

// Appended returns the contents of successfully appended messages.
func (m *MockGateway) Appended() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.appended))
	copy(out, m.appended)
	return out
}

func (m *MockGateway) StartRun(_ context.Context, threadID, _ string) (Run, error) {
	m.record("StartRun")
	if m.StartRunErr != nil {
		return Run{}, m.StartRunErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	m.pollIdx = 0
	runID := m.RunID
	if runID == "" {
		runID = fmt.Sprintf("run_%d", m.runs)
	}
	return Run{ID: runID, ThreadID: threadID, Status: RunStatusQueued}, nil
}

func (m *MockGateway) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	m.record("GetRun")
	if m.RunGate != nil {
		select {
		case <-m.RunGate:
		case <-ctx.Done():
			return Run{}, ctx.Err()
		}
	}
	if m.GetRunErr != nil {
		return Run{}, m.GetRunErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	status := RunStatusQueued
	if len(m.RunStatuses) > 0 {
		idx := m.pollIdx
		if idx >= len(m.RunStatuses) {
			idx = len(m.RunStatuses) - 1
		}
		status = m.RunStatuses[idx]
	}
	m.pollIdx++
	return Run{ID: runID, ThreadID: threadID, Status: status}, nil
}

func (m *MockGateway) ListMessages(_ context.Context, _ string) ([]Message, error) {
	m.record("ListMessages")
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.Messages))
	copy(out, m.Messages)
	return out, nil
}

// Ensure MockGateway implements Gateway
var _ Gateway = (*MockGateway)(nil)
