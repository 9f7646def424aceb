// Package cache defines the port interface for the analysis result cache.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for key-value caching of serialized values.
type Cache interface {
	// Get returns the value for key; found is false on a miss or expiry.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value for ttl. A zero ttl means the implementation default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
