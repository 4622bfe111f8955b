package permission

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type cacheContextKey struct{}

type cacheKey struct {
	eventId uuid.UUID
	userId  int
}

// roleCache lives for one request. Grants and revocations made during that request
// evict the affected entry.
type roleCache struct {
	mu    sync.Mutex
	roles map[cacheKey]Role
}

// WithRoleCache attaches an empty role cache to ctx. Without it every Resolve hits the
// repository.
func WithRoleCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheContextKey{}, &roleCache{roles: make(map[cacheKey]Role)})
}

func cacheFrom(ctx context.Context) *roleCache {
	c, _ := ctx.Value(cacheContextKey{}).(*roleCache)
	return c
}

func (c *roleCache) get(eventId uuid.UUID, userId int) (Role, bool) {
	if c == nil {
		return None, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	role, ok := c.roles[cacheKey{eventId, userId}]
	return role, ok
}

func (c *roleCache) put(eventId uuid.UUID, userId int, role Role) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles[cacheKey{eventId, userId}] = role
}

func (c *roleCache) invalidate(eventId uuid.UUID, userId int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.roles, cacheKey{eventId, userId})
}
