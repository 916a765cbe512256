// Package cache notifies external response caches that a resource changed.
//
// Invalidation is best-effort: callers fire it after a successful mutation
// and must not let a failed notification fail the primary operation.
package cache

import "context"

// Invalidator signals that cached views of a resource tag are stale.
type Invalidator interface {
	Invalidate(ctx context.Context, resourceTag string) error
}

// Noop discards invalidation signals. It is used when no cache is configured.
type Noop struct{}

// Invalidate implements Invalidator and always succeeds.
func (Noop) Invalidate(context.Context, string) error {
	return nil
}

var _ Invalidator = Noop{}
