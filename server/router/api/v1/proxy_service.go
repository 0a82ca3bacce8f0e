package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/atlas/plugin/ai/assistant"
)

// Default error bodies of the pass-through proxy, by upstream operation.
const (
	errCreateThread  = "Failed to create thread"
	errAddMessage    = "Failed to add message"
	errRunAssistant  = "Failed to run assistant"
	errGetRunStatus  = "Failed to get run status"
	errGetMessages   = "Failed to get messages"
	errInternal      = "Internal server error"
	errMethodInvalid = "Method not allowed"
)

type addMessageRequest struct {
	Content string `json:"content"`
}

type runRequest struct {
	AssistantID string `json:"assistant_id"`
}

func (s *APIV1Service) registerProxyRoutes(g *echo.Group, m ...echo.MiddlewareFunc) {
	g.POST("/threads", s.ProxyCreateThread, m...)
	g.POST("/threads/:threadId/messages", s.ProxyAddMessage, m...)
	g.GET("/threads/:threadId/messages", s.ProxyListMessages, m...)
	g.POST("/threads/:threadId/runs", s.ProxyCreateRun, m...)
	g.GET("/threads/:threadId/runs/:runId", s.ProxyGetRun, m...)

	// Query-style routes of the serverless deployment.
	g.Any("/messages", s.ProxyLegacyMessages, m...)
	g.Any("/runs", s.ProxyLegacyRuns, m...)
}

// ProxyCreateThread forwards POST /api/threads.
func (s *APIV1Service) ProxyCreateThread(c echo.Context) error {
	return s.forward(c, "create thread", errCreateThread, func(ctx context.Context) (any, error) {
		return s.Client.CreateThread(ctx)
	})
}

// ProxyAddMessage forwards POST /api/threads/:threadId/messages.
func (s *APIV1Service) ProxyAddMessage(c echo.Context) error {
	return s.addMessage(c, c.Param("threadId"))
}

// ProxyListMessages forwards GET /api/threads/:threadId/messages.
func (s *APIV1Service) ProxyListMessages(c echo.Context) error {
	return s.listMessages(c, c.Param("threadId"))
}

// ProxyCreateRun forwards POST /api/threads/:threadId/runs.
func (s *APIV1Service) ProxyCreateRun(c echo.Context) error {
	return s.createRun(c, c.Param("threadId"))
}

// ProxyGetRun forwards GET /api/threads/:threadId/runs/:runId.
func (s *APIV1Service) ProxyGetRun(c echo.Context) error {
	return s.getRun(c, c.Param("threadId"), c.Param("runId"))
}

// ProxyLegacyMessages serves /api/messages?threadId=.
func (s *APIV1Service) ProxyLegacyMessages(c echo.Context) error {
	if ok, err := s.requireAPIKey(c); !ok {
		return err
	}
	threadID := c.QueryParam("threadId")
	switch c.Request().Method {
	case http.MethodPost:
		return s.addMessage(c, threadID)
	case http.MethodGet:
		return s.listMessages(c, threadID)
	default:
		return c.JSON(http.StatusMethodNotAllowed, map[string]string{"error": errMethodInvalid})
	}
}

// ProxyLegacyRuns serves /api/runs?threadId=&runId=.
func (s *APIV1Service) ProxyLegacyRuns(c echo.Context) error {
	if ok, err := s.requireAPIKey(c); !ok {
		return err
	}
	threadID := c.QueryParam("threadId")
	switch c.Request().Method {
	case http.MethodPost:
		return s.createRun(c, threadID)
	case http.MethodGet:
		return s.getRun(c, threadID, c.QueryParam("runId"))
	default:
		return c.JSON(http.StatusMethodNotAllowed, map[string]string{"error": errMethodInvalid})
	}
}

func (s *APIV1Service) addMessage(c echo.Context, threadID string) error {
	var req addMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	return s.forward(c, "add message", errAddMessage, func(ctx context.Context) (any, error) {
		return s.Client.CreateMessage(ctx, threadID, req.Content)
	})
}

func (s *APIV1Service) listMessages(c echo.Context, threadID string) error {
	return s.forward(c, "list messages", errGetMessages, func(ctx context.Context) (any, error) {
		return s.Client.ListMessages(ctx, threadID)
	})
}

func (s *APIV1Service) createRun(c echo.Context, threadID string) error {
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	return s.forward(c, "create run", errRunAssistant, func(ctx context.Context) (any, error) {
		return s.Client.CreateRun(ctx, threadID, req.AssistantID)
	})
}

func (s *APIV1Service) getRun(c echo.Context, threadID, runID string) error {
	return s.forward(c, "get run", errGetRunStatus, func(ctx context.Context) (any, error) {
		return s.Client.RetrieveRun(ctx, threadID, runID)
	})
}

// requireAPIKey writes the missing-credential response and reports false when no key is configured.
func (s *APIV1Service) requireAPIKey(c echo.Context) (bool, error) {
	key, err := s.Keys.APIKey(c.Request().Context())
	if err == nil && strings.TrimSpace(key) == "" {
		err = assistant.ErrNoAPIKey
	}
	if err != nil {
		return false, s.proxyError(c, "resolve api key", "", err)
	}
	return true, nil
}

// forward runs one upstream call under the upstream semaphore and relays its result.
func (s *APIV1Service) forward(c echo.Context, op, defaultMessage string, call func(ctx context.Context) (any, error)) error {
	ctx := c.Request().Context()
	if err := s.upstreamSemaphore.Acquire(ctx, 1); err != nil {
		return s.proxyError(c, op, defaultMessage, errors.Wrap(err, "failed to acquire upstream slot"))
	}
	defer s.upstreamSemaphore.Release(1)

	result, err := call(ctx)
	if err != nil {
		return s.proxyError(c, op, defaultMessage, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *APIV1Service) proxyError(c echo.Context, op, defaultMessage string, err error) error {
	if errors.Is(err, assistant.ErrNoAPIKey) {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": assistant.ErrNoAPIKey.Error()})
	}

	if status, message, ok := assistant.UpstreamError(err); ok {
		s.logger.Warn("upstream request failed",
			slog.String("operation", op),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		if message == "" {
			message = defaultMessage
		}
		return c.JSON(status, map[string]string{"error": message})
	}

	s.logger.Error("proxy request failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": errInternal})
}
