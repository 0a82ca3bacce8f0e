package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/atlas/plugin/ai/assistant"
	"github.com/hrygo/atlas/server/chat"
)

func newTestSurface(t *testing.T, gw assistant.Gateway, key string) *chat.Surface {
	t.Helper()
	persona, ok := chat.DefaultCatalog(nil).Get(key)
	require.True(t, ok)
	s := chat.NewSurface("cli", persona, gw, chat.SurfaceConfig{
		UserName: "Ana",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:    &chat.InstantClock{},
	})
	_ = s.Start(context.Background())
	s.SeedWelcome(context.Background())
	return s
}

func TestRunChat(t *testing.T) {
	gw := assistant.NewMockGateway("Oi!")
	s := newTestSurface(t, gw, chat.PersonaNegotiator)

	var out bytes.Buffer
	in := strings.NewReader("Olá\n\n/Pitch\n/quit\nnunca\n")
	require.NoError(t, runChat(context.Background(), s, in, &out))

	text := out.String()
	assert.Contains(t, text, "== Negociador ==")
	assert.Contains(t, text, "Olá, Ana!")
	assert.Contains(t, text, "Ações rápidas: /Argumentos /Objeções /Estratégias /Pitch")
	assert.Equal(t, 2, strings.Count(text, "[assistente] Oi!"))
	assert.Equal(t, []string{"Olá", "Crie um pitch de elevador impactante para nossos produtos"}, gw.Appended())
	assert.Len(t, s.Turns(), 5)
}

func TestRunChat_SlashLines(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		line     string
		appended []string
	}{
		{
			name:     "known label runs quick action",
			key:      chat.PersonaNegotiator,
			line:     "  /Pitch  ",
			appended: []string{"Crie um pitch de elevador impactante para nossos produtos"},
		},
		{
			name:     "unknown label is submitted",
			key:      chat.PersonaNegotiator,
			line:     "/help me",
			appended: []string{"/help me"},
		},
		{
			name:     "persona without quick actions",
			key:      chat.PersonaChat,
			line:     "/Pitch",
			appended: []string{"/Pitch"},
		},
		{
			name:     "text is not trimmed",
			key:      chat.PersonaChat,
			line:     "  Olá  ",
			appended: []string{"  Olá  "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := assistant.NewMockGateway("Oi!")
			s := newTestSurface(t, gw, tt.key)

			var out bytes.Buffer
			require.NoError(t, runChat(context.Background(), s, strings.NewReader(tt.line+"\n"), &out))

			assert.Equal(t, tt.appended, gw.Appended())
			assert.Contains(t, out.String(), "[assistente] Oi!")
		})
	}
}

func TestRunChat_Disconnected(t *testing.T) {
	gw := assistant.NewMockGateway("Oi!")
	gw.CreateThreadErr = assistant.ErrNoAPIKey
	s := newTestSurface(t, gw, chat.PersonaChat)

	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), s, strings.NewReader("Olá\n"), &out))

	assert.Equal(t, 2, strings.Count(out.String(), disconnectedNotice))
	assert.Empty(t, gw.Appended())
	assert.Len(t, s.Turns(), 1)
}

func TestRunChat_Failure(t *testing.T) {
	gw := assistant.NewMockGateway("Oi!")
	gw.RunStatuses = []assistant.RunStatus{assistant.RunStatusCancelled}
	s := newTestSurface(t, gw, chat.PersonaChat)

	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), s, strings.NewReader("Olá\n"), &out))
	assert.Contains(t, out.String(), "[assistente] "+chat.ErrorReplyText)
}
