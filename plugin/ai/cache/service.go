package cache

import (
	"context"
	"sync"
	"time"
)

// ServiceConfig configures the cache service.
type ServiceConfig struct {
	Capacity        int           // Maximum number of entries (default: 1000)
	DefaultTTL      time.Duration // Idle TTL for entries (default: 5 minutes)
	CleanupInterval time.Duration // Interval for expired entry cleanup (default: 1 minute)
}

// DefaultServiceConfig returns default cache service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Capacity:        1000,
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Service wraps an LRUCache with a background cleanup loop.
type Service[V any] struct {
	*LRUCache[V]

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	cleanupInterval time.Duration
}

// NewService creates a new cache service and starts its cleanup loop.
func NewService[V any](cfg ServiceConfig) *Service[V] {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service[V]{
		LRUCache:        NewLRUCache[V](cfg.Capacity, cfg.DefaultTTL),
		ctx:             ctx,
		cancel:          cancel,
		cleanupInterval: cfg.CleanupInterval,
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

// Close stops the cleanup loop. It is safe to call more than once.
func (s *Service[V]) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}

// cleanupLoop periodically removes expired entries.
func (s *Service[V]) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.CleanupExpired()
		}
	}
}

var _ Store[string] = (*Service[string])(nil)
