package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/atlas/plugin/ai/assistant"
	"github.com/hrygo/atlas/server/chat"
	chaterrors "github.com/hrygo/atlas/server/internal/errors"
	"github.com/hrygo/atlas/store"
)

// TurnView is one log entry as returned by the chat API.
type TurnView struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	HTML      string    `json:"html,omitempty"`
	Failed    bool      `json:"failed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionView is the observable state of a surface instance.
type SessionView struct {
	SessionID    string             `json:"session_id"`
	Surface      string             `json:"surface"`
	Title        string             `json:"title"`
	Connected    bool               `json:"connected"`
	Typing       bool               `json:"typing"`
	QuickActions []chat.QuickAction `json:"quick_actions,omitempty"`
	Turns        []TurnView         `json:"turns"`
}

// CreateTurnRequest submits either free text or a quick action label.
type CreateTurnRequest struct {
	Content     string `json:"content"`
	QuickAction string `json:"quick_action"`
}

// CreateTurnResponse reports the outcome of a submission.
type CreateTurnResponse struct {
	Outcome   string      `json:"outcome"`
	ErrorCode string      `json:"error_code,omitempty"`
	Attempts  int         `json:"attempts"`
	Reply     *TurnView   `json:"reply,omitempty"`
	Session   SessionView `json:"session"`
}

// ListSurfaces returns the persona catalog.
// GET /api/v1/surfaces
func (s *APIV1Service) ListSurfaces(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"surfaces": s.Registry.Catalog().List(),
	})
}

// CreateSession opens a surface instance for the persona.
// POST /api/v1/surfaces/:surface/sessions
func (s *APIV1Service) CreateSession(c echo.Context) error {
	surface, err := s.Registry.Open(c.Request().Context(), c.Param("surface"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, s.sessionView(surface, false))
}

// GetSession returns the state of a surface instance.
// GET /api/v1/sessions/:session?format=html
func (s *APIV1Service) GetSession(c echo.Context) error {
	surface, ok := s.Registry.Get(c.Param("session"))
	if !ok {
		return errorJSON(c, chaterrors.NotFound("session not found"))
	}
	return c.JSON(http.StatusOK, s.sessionView(surface, c.QueryParam("format") == "html"))
}

// DeleteSession drops a surface instance. Its persisted history is kept.
// DELETE /api/v1/sessions/:session
func (s *APIV1Service) DeleteSession(c echo.Context) error {
	if !s.Registry.Remove(c.Param("session")) {
		return errorJSON(c, chaterrors.NotFound("session not found"))
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateTurn submits text or a quick action to a surface instance and waits for the outcome.
// POST /api/v1/sessions/:session/turns
func (s *APIV1Service) CreateTurn(c echo.Context) error {
	surface, ok := s.Registry.Get(c.Param("session"))
	if !ok {
		return errorJSON(c, chaterrors.NotFound("session not found"))
	}

	var req CreateTurnRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, chaterrors.InvalidArgument("invalid request body"))
	}

	// The turn outlives a disconnecting client so the log stays complete.
	ctx := context.WithoutCancel(c.Request().Context())
	var outcome chat.Outcome
	if req.QuickAction != "" {
		outcome = surface.QuickAction(ctx, req.QuickAction)
	} else {
		outcome = surface.Submit(ctx, req.Content)
	}

	html := c.QueryParam("format") == "html"
	resp := CreateTurnResponse{
		Outcome:  outcome.Kind.String(),
		Attempts: outcome.Attempts,
		Session:  s.sessionView(surface, html),
	}
	if outcome.Err != nil {
		resp.ErrorCode = string(outcome.Reason())
	}
	if outcome.Kind == chat.OutcomeSuccess || outcome.Kind == chat.OutcomeFailure {
		view := s.turnView(outcome.Reply, html)
		resp.Reply = &view
	}

	switch outcome.Kind {
	case chat.OutcomeIgnored:
		return c.JSON(http.StatusUnprocessableEntity, resp)
	case chat.OutcomeRejected:
		return c.JSON(http.StatusConflict, resp)
	default:
		return c.JSON(http.StatusOK, resp)
	}
}

func (s *APIV1Service) sessionView(surface *chat.Surface, html bool) SessionView {
	turns := surface.Turns()
	views := make([]TurnView, 0, len(turns))
	for _, turn := range turns {
		views = append(views, s.turnView(turn, html))
	}
	return SessionView{
		SessionID:    surface.ID,
		Surface:      surface.Persona.Key,
		Title:        surface.Persona.Title,
		Connected:    surface.Connected(),
		Typing:       surface.Typing(),
		QuickActions: surface.Persona.QuickActions,
		Turns:        views,
	}
}

func (s *APIV1Service) turnView(turn chat.Turn, html bool) TurnView {
	view := TurnView{
		ID:        turn.ID,
		Role:      string(turn.Role),
		Content:   turn.Content,
		Failed:    turn.Failed,
		CreatedAt: turn.CreatedAt,
	}
	if html && s.MarkdownService != nil {
		rendered, err := s.MarkdownService.RenderHTML(turn.Content)
		if err != nil {
			s.logger.Warn("failed to render turn", slog.String("turn_id", turn.ID), slog.String("error", err.Error()))
		} else {
			view.HTML = rendered
		}
	}
	return view
}

// NewConversationRecorders returns a recorder factory persisting every surface log through the store.
// The conversation is keyed by the session id.
func NewConversationRecorders(st *store.Store) chat.RecorderFactory {
	return func(ctx context.Context, surface *chat.Surface) (chat.Recorder, error) {
		conversation, err := st.CreateConversation(ctx, &store.Conversation{
			UID:      surface.ID,
			Surface:  surface.Persona.Key,
			ThreadID: surface.ThreadID(),
		})
		if err != nil {
			return nil, err
		}
		return chat.RecorderFunc(func(ctx context.Context, turn chat.Turn) error {
			_, err := st.CreateConversationTurn(ctx, &store.ConversationTurn{
				UID:            turn.ID,
				ConversationID: conversation.ID,
				Role:           convertTurnRole(turn.Role),
				Content:        turn.Content,
				Failed:         turn.Failed,
				CreatedTs:      turn.CreatedAt.Unix(),
			})
			return err
		}), nil
	}
}

func convertTurnRole(role assistant.Role) store.TurnRole {
	if role == assistant.RoleUser {
		return store.TurnRoleUser
	}
	return store.TurnRoleAssistant
}

// errorJSON writes a structured error with the status matching its code.
func errorJSON(c echo.Context, err error) error {
	code := chaterrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case chaterrors.ErrCodeInvalidArgument:
		status = http.StatusBadRequest
	case chaterrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case chaterrors.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case chaterrors.ErrCodeTurnInFlight:
		status = http.StatusConflict
	}

	message := err.Error()
	var e *chaterrors.Error
	if errors.As(err, &e) {
		message = e.Message
	}
	return c.JSON(status, map[string]string{
		"error": strings.TrimSpace(message),
		"code":  string(code),
	})
}
