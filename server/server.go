package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/hrygo/atlas/internal/profile"
	"github.com/hrygo/atlas/plugin/ai/assistant"
	"github.com/hrygo/atlas/plugin/ai/timeout"
	"github.com/hrygo/atlas/server/chat"
	"github.com/hrygo/atlas/server/internal/observability"
	apiv1 "github.com/hrygo/atlas/server/router/api/v1"
	"github.com/hrygo/atlas/store"
)

type Server struct {
	Profile  *profile.Profile
	Store    *store.Store
	Client   *assistant.Client
	Registry *chat.Registry
	Metrics  *observability.Metrics

	logger     *slog.Logger
	echoServer *echo.Echo
	httpServer *http.Server
	listener   net.Listener
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	logger := slog.Default()
	keys := apiv1.NewKeySource(profile, store)
	client := assistant.NewClient(keys, assistant.Config{
		BaseURL: profile.OpenAIBaseURL,
		Timeout: timeout.GatewayRequestTimeout,
	})
	metrics := observability.NewMetrics(0)

	registry := chat.NewRegistry(client.Gateway(), chat.DefaultCatalog(profile), chat.RegistryConfig{
		Surface: chat.SurfaceConfig{
			UserName: profile.UserName,
			Logger:   logger,
			Metrics:  metrics,
		},
		Recorders: apiv1.NewConversationRecorders(store),
	})

	s := &Server{
		Profile:  profile,
		Store:    store,
		Client:   client,
		Registry: registry,
		Metrics:  metrics,
		logger:   logger,
	}

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(requestLogger(logger))
	s.echoServer = echoServer

	apiV1Service := apiv1.NewAPIV1Service(profile, store, client, keys, registry, metrics)
	apiV1Service.RegisterRoutes(echoServer)

	if !profile.HasAPIKey() {
		key, err := store.GetOpenAIAPIKey(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read stored api key")
		}
		if key == "" {
			logger.Warn("no OpenAI API key configured; set ATLAS_OPENAI_API_KEY or PUT /api/v1/credential")
		}
	}
	return s, nil
}

// Handler returns the HTTP handler, accepting HTTP/2 without TLS.
func (s *Server) Handler() http.Handler {
	return h2c.NewHandler(s.echoServer, &http2.Server{})
}

func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("failed to start server", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, timeout.ShutdownTimeout)
	defer cancel()

	s.logger.Info("server shutting down")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		}
	}

	s.Registry.Close()

	if err := s.Store.Close(); err != nil {
		s.logger.Error("failed to close database", slog.String("error", err.Error()))
	}

	s.logger.Info("server stopped properly")
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64(observability.LogFieldDuration, v.Latency.Milliseconds()),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				logger.LogAttrs(c.Request().Context(), slog.LevelError, "request failed", attrs...)
				return nil
			}
			logger.LogAttrs(c.Request().Context(), slog.LevelDebug, "request", attrs...)
			return nil
		},
	})
}

// SetupLogger installs the process logger for the profile mode.
func SetupLogger(p *profile.Profile) *slog.Logger {
	logger := observability.NewLogger(p.IsDev())
	slog.SetDefault(logger)
	return logger
}
