package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/atlas/internal/profile"
	"github.com/hrygo/atlas/store"
	teststore "github.com/hrygo/atlas/store/test"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	ctx := context.Background()
	st := teststore.NewTestingStore(ctx, t)
	p := &profile.Profile{
		Mode:    "dev",
		Addr:    "127.0.0.1",
		Port:    0,
		Version: "0.1.0",
	}

	s, err := NewServer(ctx, p, st)
	require.NoError(t, err)
	return s, st
}

func TestServer_StartAndShutdown(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() { s.Shutdown(ctx) })
	require.NotEmpty(t, s.Addr())

	resp, err := http.Get("http://" + s.Addr() + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "0.1.0", body["version"])
}

func TestServer_CreateSessionWithoutKey(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() { s.Shutdown(ctx) })

	resp, err := http.Post("http://"+s.Addr()+"/api/v1/surfaces/chat/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Without a key the thread cannot be acquired, but the session still opens with its welcome turn.
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var view struct {
		Connected bool `json:"connected"`
		Turns     []struct {
			Content string `json:"content"`
		} `json:"turns"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.False(t, view.Connected)
	require.Len(t, view.Turns, 1)
	assert.Contains(t, view.Turns[0].Content, profile.DefaultUserName)
}
