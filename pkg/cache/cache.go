// Package cache memoizes lock compilation results.
//
// Compiling a ``.in`` file shells out to a dependency resolver and hits
// the network, which is slow. The compiled ``.lock`` contents are cached
// keyed by a digest of the ``.in`` file closure plus the compiler
// identity, so unchanged inputs skip the resolver entirely.
package cache

import (
	"context"
	"time"
)

// Cache stores compiled lock contents by key.
type Cache interface {
	// Get retrieves a value. The second result reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a value. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes a value. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// Close releases resources.
	Close() error
}
