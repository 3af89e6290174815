// Package treecache implements the tree-id lookup cache: a thread-safe,
// per-sync-operation cache from commit id to its tree id, avoiding
// redundant `git rev-parse {id}^{tree}` calls. Go's stdlib sync.Map gives
// the lock-free-read, safe-concurrent-write property this needs without
// pulling in a third-party concurrent-map dependency (see DESIGN.md).
package treecache

import (
	"context"
	"fmt"
	"sync"
)

// Executor is the subset of gitexec.Invoker the cache needs.
type Executor interface {
	Execute(ctx context.Context, args ...string) (string, error)
}

// Cache maps commit id -> tree id for a single sync operation.
type Cache struct {
	m sync.Map
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{}
}

// GetTreeID returns the tree id for commitID, fetching and caching it via
// `git rev-parse {commitID}^{tree}` on a miss.
func (c *Cache) GetTreeID(ctx context.Context, git Executor, commitID string) (string, error) {
	if v, ok := c.m.Load(commitID); ok {
		return v.(string), nil
	}

	out, err := git.Execute(ctx, "rev-parse", commitID+"^{tree}")
	if err != nil {
		return "", fmt.Errorf("get tree id for %s: %w", commitID, err)
	}

	actual, _ := c.m.LoadOrStore(commitID, out)
	return actual.(string), nil
}

// Len reports the number of cached entries (for diagnostics/tests).
func (c *Cache) Len() int {
	n := 0
	c.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
