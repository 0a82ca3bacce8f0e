package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/atlas/plugin/ai/assistant"
	"github.com/hrygo/atlas/plugin/ai/cache"
	"github.com/hrygo/atlas/plugin/ai/timeout"
	chaterrors "github.com/hrygo/atlas/server/internal/errors"
)

// RecorderFactory builds the recorder of a newly opened surface.
type RecorderFactory func(ctx context.Context, s *Surface) (Recorder, error)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Surface         SurfaceConfig
	Capacity        int
	IdleTTL         time.Duration
	CleanupInterval time.Duration
	Recorders       RecorderFactory
}

// Registry keeps live surface instances keyed by client session id.
// Instances idle for longer than IdleTTL are dropped.
type Registry struct {
	gateway   assistant.Gateway
	catalog   *Catalog
	cfg       RegistryConfig
	logger    *slog.Logger
	instances *cache.Service[*Surface]
}

// NewRegistry creates a registry and starts its cleanup loop.
func NewRegistry(gateway assistant.Gateway, catalog *Catalog, cfg RegistryConfig) *Registry {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = timeout.SessionIdleTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	logger := cfg.Surface.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		gateway: gateway,
		catalog: catalog,
		cfg:     cfg,
		logger:  logger,
		instances: cache.NewService[*Surface](cache.ServiceConfig{
			Capacity:        cfg.Capacity,
			DefaultTTL:      cfg.IdleTTL,
			CleanupInterval: cfg.CleanupInterval,
		}),
	}
	r.instances.OnEvict(func(id string, s *Surface) {
		r.logger.Debug("surface instance dropped",
			slog.String("session_id", id),
			slog.String("surface", s.Persona.Key),
		)
	})
	return r
}

// Catalog returns the persona catalog.
func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

// Open creates a surface instance for the persona, acquires its thread and seeds the welcome turn.
// A thread failure still yields a registered, disconnected instance.
func (r *Registry) Open(ctx context.Context, personaKey string) (*Surface, error) {
	persona, ok := r.catalog.Get(personaKey)
	if !ok {
		return nil, chaterrors.NotFound("unknown surface").WithContext("surface", personaKey)
	}

	s := NewSurface(shortuuid.New(), persona, r.gateway, r.cfg.Surface)
	if err := s.Start(ctx); err != nil {
		r.logger.Warn("surface opened without thread",
			slog.String("session_id", s.ID),
			slog.String("surface", persona.Key),
			slog.String("error", err.Error()),
		)
	}

	if r.cfg.Recorders != nil {
		rec, err := r.cfg.Recorders(ctx, s)
		if err != nil {
			r.logger.Warn("conversation will not be persisted",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()),
			)
		} else if rec != nil {
			s.Log().WithRecorder(rec)
		}
	}

	s.SeedWelcome(ctx)
	r.instances.Set(s.ID, s, 0)
	return s, nil
}

// Get returns a live surface instance and refreshes its idle deadline.
func (r *Registry) Get(id string) (*Surface, bool) {
	return r.instances.Get(id)
}

// Remove drops a surface instance.
func (r *Registry) Remove(id string) bool {
	if strings.Contains(id, "*") {
		return false
	}
	return r.instances.Invalidate(id) > 0
}

// Size returns the number of live instances.
func (r *Registry) Size() int {
	return r.instances.Size()
}

// Close stops the cleanup loop.
func (r *Registry) Close() {
	r.instances.Close()
}
