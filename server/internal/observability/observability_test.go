package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnContext_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tc := NewTurnContextWithID(logger, "req-1", "chat", "thread_1", "turn_1")
	tc.Error("turn failed", errors.New("boom"), slog.String(LogFieldErrorCode, "TIMEOUT"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[LogFieldRequestID])
	assert.Equal(t, "chat", entry[LogFieldSurface])
	assert.Equal(t, "thread_1", entry[LogFieldThreadID])
	assert.Equal(t, "turn_1", entry[LogFieldTurnID])
	assert.Equal(t, "TIMEOUT", entry[LogFieldErrorCode])
	assert.Equal(t, "boom", entry["error"])
}

func TestTurnContext_Context(t *testing.T) {
	tc := NewTurnContext(nil, "negotiator", "thread_1", "turn_1")
	assert.NotEmpty(t, tc.RequestID)

	ctx := WithTurnContext(context.Background(), tc)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, tc, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics(10)

	m.RecordTurn("chat")
	m.RecordDuration("chat", 100*time.Millisecond)
	m.RecordTurn("chat")
	m.RecordDuration("chat", 300*time.Millisecond)
	m.RecordFailure("chat", "TIMEOUT")
	m.RecordTurn("negotiator")
	m.RecordPollAttempts(3)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TurnTotal)
	assert.Equal(t, int64(1), snap.TurnFailed)
	assert.Equal(t, int64(3), snap.PollAttempts)
	assert.Equal(t, int64(1), snap.FailureCodes["TIMEOUT"])
	assert.Equal(t, int64(2), snap.Surfaces["chat"].TurnCount)
	assert.Equal(t, int64(200), snap.Surfaces["chat"].AverageDuration)
	assert.Equal(t, 100*time.Millisecond, snap.P50Latency)
	assert.InDelta(t, 66.67, snap.SuccessRate(), 0.01)

	m.Reset()
	assert.Equal(t, 100.0, m.Snapshot().SuccessRate())
}

func TestMetrics_DurationWindow(t *testing.T) {
	m := NewMetrics(2)
	for i := 1; i <= 3; i++ {
		m.RecordDuration("chat", time.Duration(i)*time.Second)
	}
	snap := m.Snapshot()
	assert.Equal(t, 2, snap.DurationCount)
	assert.Equal(t, 2*time.Second, snap.P50Latency)
}
