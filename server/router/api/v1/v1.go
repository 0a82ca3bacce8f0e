package v1

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/atlas/internal/profile"
	"github.com/hrygo/atlas/plugin/ai/assistant"
	"github.com/hrygo/atlas/plugin/markdown"
	"github.com/hrygo/atlas/server/chat"
	"github.com/hrygo/atlas/server/internal/observability"
	ratelimit "github.com/hrygo/atlas/server/middleware"
	"github.com/hrygo/atlas/store"
)

var corsAllowMethods = []string{
	http.MethodGet,
	http.MethodOptions,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodPost,
	http.MethodPut,
}

var corsAllowHeaders = []string{
	"X-CSRF-Token",
	echo.HeaderXRequestedWith,
	echo.HeaderAccept,
	"Accept-Version",
	echo.HeaderContentLength,
	"Content-MD5",
	echo.HeaderContentType,
	"Date",
	"X-Api-Version",
	echo.HeaderAuthorization,
}

type APIV1Service struct {
	Profile         *profile.Profile
	Store           *store.Store
	Client          *assistant.Client
	Keys            assistant.KeySource
	Registry        *chat.Registry
	MarkdownService markdown.Service
	Metrics         *observability.Metrics

	logger    *slog.Logger
	startedAt time.Time

	// upstreamSemaphore bounds concurrent pass-through calls to the Assistants API.
	upstreamSemaphore *semaphore.Weighted
	rateLimiter       *ratelimit.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, client *assistant.Client, keys assistant.KeySource, registry *chat.Registry, metrics *observability.Metrics) *APIV1Service {
	maxUpstream := profile.MaxUpstreamRequests
	if maxUpstream <= 0 {
		maxUpstream = 16
	}
	if metrics == nil {
		metrics = observability.NewMetrics(0)
	}
	return &APIV1Service{
		Profile:           profile,
		Store:             store,
		Client:            client,
		Keys:              keys,
		Registry:          registry,
		MarkdownService:   markdown.NewService(),
		Metrics:           metrics,
		logger:            slog.Default().With(slog.String("component", "api")),
		startedAt:         time.Now(),
		upstreamSemaphore: semaphore.NewWeighted(int64(maxUpstream)),
		rateLimiter:       ratelimit.NewRateLimiter(),
	}
}

// RegisterRoutes registers the proxy, chat and management routes on the echo server.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	e.Pre(preflight)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     corsAllowMethods,
		AllowHeaders:     corsAllowHeaders,
		AllowCredentials: true,
	}))

	limit := s.rateLimiter.Middleware()

	api := e.Group("/api")
	api.GET("/health", s.Health)
	s.registerProxyRoutes(api, limit)

	v1 := api.Group("/v1")
	v1.GET("/surfaces", s.ListSurfaces)
	v1.POST("/surfaces/:surface/sessions", s.CreateSession, limit)
	v1.GET("/sessions/:session", s.GetSession)
	v1.DELETE("/sessions/:session", s.DeleteSession)
	v1.POST("/sessions/:session/turns", s.CreateTurn, limit)

	v1.GET("/conversations", s.ListConversations)
	v1.GET("/conversations/:uid/turns", s.ListConversationTurns)

	v1.GET("/credential", s.GetCredential)
	v1.PUT("/credential", s.SetCredential)
	v1.DELETE("/credential", s.DeleteCredential)

	v1.GET("/system/metrics/overview", s.GetMetricsOverview)
}

// preflight answers every OPTIONS request under /api with 200 and the permissive CORS headers.
func preflight(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if req.Method != http.MethodOptions || !strings.HasPrefix(req.URL.Path, "/api") {
			return next(c)
		}
		h := c.Response().Header()
		h.Set(echo.HeaderAccessControlAllowCredentials, "true")
		h.Set(echo.HeaderAccessControlAllowOrigin, "*")
		h.Set(echo.HeaderAccessControlAllowMethods, strings.Join(corsAllowMethods, ","))
		h.Set(echo.HeaderAccessControlAllowHeaders, strings.Join(corsAllowHeaders, ", "))
		return c.NoContent(http.StatusOK)
	}
}

// Health reports that the backend is up.
func (s *APIV1Service) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Backend está funcionando!",
		"version": s.Profile.Version,
	})
}
