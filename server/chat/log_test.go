package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/atlas/plugin/ai/assistant"
)

func TestConversationLog_AppendAndSnapshot(t *testing.T) {
	log := NewConversationLog(discardLogger())

	log.Append(context.Background(), NewTurn(assistant.RoleUser, "a"))
	snap := log.Snapshot()
	log.Append(context.Background(), NewTurn(assistant.RoleAssistant, "b"))

	assert.Len(t, snap, 1, "snapshot must not observe later appends")
	assert.Equal(t, 2, log.Len())

	turns := log.Snapshot()
	assert.NotEqual(t, turns[0].ID, turns[1].ID)
	assert.False(t, turns[0].CreatedAt.IsZero())
}

func TestConversationLog_Recorders(t *testing.T) {
	var got []string
	ok := RecorderFunc(func(ctx context.Context, turn Turn) error {
		require.NoError(t, ctx.Err())
		got = append(got, turn.Content)
		return nil
	})
	failing := RecorderFunc(func(context.Context, Turn) error { return errors.New("disk full") })

	log := NewConversationLog(discardLogger()).WithRecorder(failing).WithRecorder(ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	log.Append(ctx, NewTurn(assistant.RoleUser, "hello"))

	assert.Equal(t, []string{"hello"}, got)
	assert.Equal(t, 1, log.Len())
}

func TestConversationLog_ConcurrentAppend(t *testing.T) {
	log := NewConversationLog(discardLogger())
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			log.Append(context.Background(), NewTurn(assistant.RoleUser, "x"))
		}()
		go func() {
			defer wg.Done()
			_ = log.Snapshot()
		}()
	}

	wg.Wait()
	assert.Equal(t, 50, log.Len())
}
