// Package cache provides an in-memory keyed store with LRU eviction and idle expiry.
package cache

import "time"

// Store defines the operations the chat registry needs from a cache.
type Store[V any] interface {
	// Get retrieves a value and refreshes its idle deadline.
	Get(key string) (V, bool)

	// Set stores a value. A non-positive ttl uses the default.
	Set(key string, value V, ttl time.Duration)

	// Invalidate removes entries. Supports a trailing * wildcard.
	Invalidate(pattern string) int

	// Size returns the number of live entries.
	Size() int
}
