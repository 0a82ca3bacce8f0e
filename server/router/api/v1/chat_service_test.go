package v1

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/atlas/plugin/ai/assistant"
	"github.com/hrygo/atlas/server/chat"
)

func openSession(t *testing.T, env *testEnv, surface string) SessionView {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/v1/surfaces/"+surface+"/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[SessionView](t, rec)
}

func TestListSurfaces(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", "sk-test")

	rec := env.do(t, http.MethodGet, "/api/v1/surfaces", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string][]chat.Persona](t, rec)
	require.Len(t, body["surfaces"], 2)
	assert.Equal(t, chat.PersonaChat, body["surfaces"][0].Key)
	assert.Equal(t, chat.PersonaNegotiator, body["surfaces"][1].Key)
	assert.Len(t, body["surfaces"][1].QuickActions, 4)
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", "sk-test")

	view := openSession(t, env, chat.PersonaChat)
	assert.NotEmpty(t, view.SessionID)
	assert.Equal(t, chat.PersonaChat, view.Surface)
	assert.True(t, view.Connected)
	assert.False(t, view.Typing)
	require.Len(t, view.Turns, 1)
	assert.Equal(t, string(assistant.RoleAssistant), view.Turns[0].Role)
	assert.Contains(t, view.Turns[0].Content, "Olá, Ana!")

	t.Run("unknown surface", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/surfaces/unknown/sessions", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", decode[map[string]string](t, rec)["code"])
	})

	t.Run("thread failure leaves session disconnected", func(t *testing.T) {
		env.gateway.CreateThreadErr = assert.AnError
		defer func() { env.gateway.CreateThreadErr = nil }()

		view := openSession(t, env, chat.PersonaChat)
		assert.False(t, view.Connected)
		require.Len(t, view.Turns, 1)

		rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+view.SessionID+"/turns", CreateTurnRequest{Content: "Olá"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "ignored", decode[CreateTurnResponse](t, rec).Outcome)
	})
}

func TestCreateTurn(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", "sk-test")
	session := openSession(t, env, chat.PersonaChat)
	target := "/api/v1/sessions/" + session.SessionID + "/turns"

	rec := env.do(t, http.MethodPost, target, CreateTurnRequest{Content: "Olá"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[CreateTurnResponse](t, rec)
	assert.Equal(t, "success", resp.Outcome)
	assert.Empty(t, resp.ErrorCode)
	require.NotNil(t, resp.Reply)
	assert.Equal(t, "Oi!", resp.Reply.Content)
	require.Len(t, resp.Session.Turns, 3)
	assert.Equal(t, "Olá", resp.Session.Turns[1].Content)
	assert.Equal(t, string(assistant.RoleUser), resp.Session.Turns[1].Role)
	assert.Equal(t, []string{"Olá"}, env.gateway.Appended())

	t.Run("blank text is ignored", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, target, CreateTurnRequest{Content: "   "})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decode[CreateTurnResponse](t, rec)
		assert.Equal(t, "ignored", resp.Outcome)
		assert.Nil(t, resp.Reply)
		assert.Len(t, resp.Session.Turns, 3)
	})

	t.Run("unknown quick action is ignored", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, target, CreateTurnRequest{QuickAction: "Pitch"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/sessions/nope/turns", CreateTurnRequest{Content: "Olá"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCreateTurn_QuickAction(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", "sk-test")
	session := openSession(t, env, chat.PersonaNegotiator)
	require.Len(t, session.QuickActions, 4)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+session.SessionID+"/turns", CreateTurnRequest{QuickAction: "Pitch"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[CreateTurnResponse](t, rec)
	assert.Equal(t, "success", resp.Outcome)
	assert.Equal(t, []string{"Crie um pitch de elevador impactante para nossos produtos"}, env.gateway.Appended())
	assert.Equal(t, "Crie um pitch de elevador impactante para nossos produtos", resp.Session.Turns[1].Content)
}

func TestCreateTurn_Failure(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(gw *assistant.MockGateway)
		code     string
		attempts int
	}{
		{
			name: "run failed",
			setup: func(gw *assistant.MockGateway) {
				gw.RunStatuses = []assistant.RunStatus{assistant.RunStatusInProgress, assistant.RunStatusFailed}
			},
			code:     "RUN_FAILED",
			attempts: 2,
		},
		{
			name: "credential removed after connect",
			setup: func(gw *assistant.MockGateway) {
				gw.AppendErr = fmt.Errorf("append message: %w", assistant.ErrNoAPIKey)
			},
			code:     "UNAUTHORIZED",
			attempts: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "http://127.0.0.1:0", "sk-test")
			session := openSession(t, env, chat.PersonaChat)
			tt.setup(env.gateway)

			rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+session.SessionID+"/turns", CreateTurnRequest{Content: "Olá"})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			resp := decode[CreateTurnResponse](t, rec)
			assert.Equal(t, "failure", resp.Outcome)
			assert.Equal(t, tt.code, resp.ErrorCode)
			assert.Equal(t, tt.attempts, resp.Attempts)
			require.NotNil(t, resp.Reply)
			assert.True(t, resp.Reply.Failed)
			assert.Equal(t, chat.ErrorReplyText, resp.Reply.Content)
			assert.False(t, resp.Session.Typing)
		})
	}
}

func TestCreateTurn_RejectedWhileInFlight(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", "sk-test")
	gate := make(chan struct{})
	env.gateway.RunGate = gate
	session := openSession(t, env, chat.PersonaChat)
	target := "/api/v1/sessions/" + session.SessionID + "/turns"

	var wg sync.WaitGroup
	var first *httptest.ResponseRecorder
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = env.do(t, http.MethodPost, target, CreateTurnRequest{Content: "primeira"})
	}()

	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/v1/sessions/"+session.SessionID, nil)
		return decode[SessionView](t, rec).Typing
	}, 2*time.Second, 5*time.Millisecond)

	rec := env.do(t, http.MethodPost, target, CreateTurnRequest{Content: "segunda"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[CreateTurnResponse](t, rec)
	assert.Equal(t, "rejected", resp.Outcome)
	assert.Equal(t, "TURN_IN_FLIGHT", resp.ErrorCode)

	close(gate)
	wg.Wait()
	require.Equal(t, http.StatusOK, first.Code)

	view := decode[SessionView](t, env.do(t, http.MethodGet, "/api/v1/sessions/"+session.SessionID, nil))
	require.Len(t, view.Turns, 3)
	assert.Equal(t, "primeira", view.Turns[1].Content)
	assert.Equal(t, []string{"primeira"}, env.gateway.Appended())
}

func TestGetSession(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", "sk-test")
	session := openSession(t, env, chat.PersonaNegotiator)

	t.Run("html", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/sessions/"+session.SessionID+"?format=html", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		view := decode[SessionView](t, rec)
		require.Len(t, view.Turns, 1)
		assert.Contains(t, view.Turns[0].HTML, "<strong>Assistente de Negociação</strong>")

		chatSession := openSession(t, env, chat.PersonaChat)
		view = decode[SessionView](t, env.do(t, http.MethodGet, "/api/v1/sessions/"+chatSession.SessionID+"?format=html", nil))
		assert.Contains(t, view.Turns[0].HTML, "<li>Processos internos</li>")
	})

	t.Run("plain", func(t *testing.T) {
		view := decode[SessionView](t, env.do(t, http.MethodGet, "/api/v1/sessions/"+session.SessionID, nil))
		assert.Empty(t, view.Turns[0].HTML)
	})

	t.Run("delete", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/api/v1/sessions/"+session.SessionID, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+session.SessionID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = env.do(t, http.MethodDelete, "/api/v1/sessions/"+session.SessionID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestConversationHistory(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", "sk-test")
	chatSession := openSession(t, env, chat.PersonaChat)
	negotiatorSession := openSession(t, env, chat.PersonaNegotiator)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+chatSession.SessionID+"/turns", CreateTurnRequest{Content: "Olá"})
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("list", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/conversations", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode[map[string][]ConversationView](t, rec)["conversations"]
		require.Len(t, list, 2)

		rec = env.do(t, http.MethodGet, "/api/v1/conversations?surface=negotiator", nil)
		list = decode[map[string][]ConversationView](t, rec)["conversations"]
		require.Len(t, list, 1)
		assert.Equal(t, negotiatorSession.SessionID, list[0].UID)
		assert.Equal(t, "thread_mock", list[0].ThreadID)

		rec = env.do(t, http.MethodGet, "/api/v1/conversations?limit=1", nil)
		assert.Len(t, decode[map[string][]ConversationView](t, rec)["conversations"], 1)

		rec = env.do(t, http.MethodGet, "/api/v1/conversations?limit=zero", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("turns", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/conversations/"+chatSession.SessionID+"/turns", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		turns := decode[map[string][]ConversationTurnView](t, rec)["turns"]
		require.Len(t, turns, 3)
		assert.Equal(t, "ASSISTANT", turns[0].Role)
		assert.Equal(t, "USER", turns[1].Role)
		assert.Equal(t, "Olá", turns[1].Content)
		assert.Equal(t, "ASSISTANT", turns[2].Role)
		assert.Equal(t, "Oi!", turns[2].Content)

		rec = env.do(t, http.MethodGet, "/api/v1/conversations/missing/turns", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetMetricsOverview(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:0", "sk-test")
	session := openSession(t, env, chat.PersonaChat)
	target := "/api/v1/sessions/" + session.SessionID + "/turns"

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, target, CreateTurnRequest{Content: "um"}).Code)
	env.gateway.RunStatuses = []assistant.RunStatus{assistant.RunStatusExpired}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, target, CreateTurnRequest{Content: "dois"}).Code)

	rec := env.do(t, http.MethodGet, "/api/v1/system/metrics/overview", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[MetricsOverviewResponse](t, rec)
	assert.Equal(t, int64(2), resp.TotalTurns)
	assert.Equal(t, int64(1), resp.ErrorCount)
	assert.InDelta(t, 50.0, resp.SuccessRate, 0.001)
	assert.Equal(t, int64(2), resp.PollAttempts)
	assert.Equal(t, int64(1), resp.FailureCodes["RUN_FAILED"])
	assert.Equal(t, int64(2), resp.Surfaces[chat.PersonaChat])
	assert.Equal(t, 1, resp.ActiveSessions)
}
