package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	chaterrors "github.com/hrygo/atlas/server/internal/errors"
	"github.com/hrygo/atlas/store"
)

const (
	defaultConversationLimit = 50
	maxConversationLimit     = 200
)

type ConversationView struct {
	UID       string `json:"uid"`
	Surface   string `json:"surface"`
	ThreadID  string `json:"thread_id"`
	CreatedTs int64  `json:"created_ts"`
	UpdatedTs int64  `json:"updated_ts"`
}

type ConversationTurnView struct {
	UID       string `json:"uid"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Failed    bool   `json:"failed,omitempty"`
	CreatedTs int64  `json:"created_ts"`
}

// ListConversations returns persisted conversations, most recently updated first.
// GET /api/v1/conversations?surface=&limit=
func (s *APIV1Service) ListConversations(c echo.Context) error {
	limit := defaultConversationLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return errorJSON(c, chaterrors.InvalidArgument("invalid limit"))
		}
		limit = min(n, maxConversationLimit)
	}

	find := &store.FindConversation{Limit: &limit}
	if surface := c.QueryParam("surface"); surface != "" {
		find.Surface = &surface
	}

	list, err := s.Store.ListConversations(c.Request().Context(), find)
	if err != nil {
		s.logger.Error("failed to list conversations", slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": errInternal})
	}

	views := make([]ConversationView, 0, len(list))
	for _, conversation := range list {
		views = append(views, ConversationView{
			UID:       conversation.UID,
			Surface:   conversation.Surface,
			ThreadID:  conversation.ThreadID,
			CreatedTs: conversation.CreatedTs,
			UpdatedTs: conversation.UpdatedTs,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"conversations": views})
}

// ListConversationTurns returns the persisted turns of one conversation in log order.
// GET /api/v1/conversations/:uid/turns
func (s *APIV1Service) ListConversationTurns(c echo.Context) error {
	ctx := c.Request().Context()
	uid := c.Param("uid")

	conversation, err := s.Store.GetConversation(ctx, &store.FindConversation{UID: &uid})
	if err != nil {
		s.logger.Error("failed to get conversation", slog.String("uid", uid), slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": errInternal})
	}
	if conversation == nil {
		return errorJSON(c, chaterrors.NotFound("conversation not found"))
	}

	turns, err := s.Store.ListConversationTurns(ctx, &store.FindConversationTurn{ConversationID: &conversation.ID})
	if err != nil {
		s.logger.Error("failed to list conversation turns", slog.String("uid", uid), slog.String("error", err.Error()))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": errInternal})
	}

	views := make([]ConversationTurnView, 0, len(turns))
	for _, turn := range turns {
		views = append(views, ConversationTurnView{
			UID:       turn.UID,
			Role:      string(turn.Role),
			Content:   turn.Content,
			Failed:    turn.Failed,
			CreatedTs: turn.CreatedTs,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"turns": views})
}
