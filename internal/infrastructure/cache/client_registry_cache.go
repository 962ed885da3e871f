// Package cache provides in-process read-through caches in front of the repositories.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/authz/internal/domain/models"
	"github.com/turtacn/authz/internal/domain/repository"
)

const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

// ObserveFunc receives "hit" or "miss" for every lookup.
type ObserveFunc func(result string)

// CachedClientRegistry is a read-through cache over a ClientRegistry. Concurrent
// misses for the same key share one backend lookup. Unregistered clients are not
// cached so a new registration becomes visible on the next request.
type CachedClientRegistry struct {
	next    repository.ClientRegistry
	cache   *gocache.Cache
	group   singleflight.Group
	observe ObserveFunc
}

// NewCachedClientRegistry wraps next with a cache whose entries live for ttl.
func NewCachedClientRegistry(next repository.ClientRegistry, ttl time.Duration, observe ObserveFunc) *CachedClientRegistry {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if observe == nil {
		observe = func(string) {}
	}
	return &CachedClientRegistry{
		next:    next,
		cache:   gocache.New(ttl, 2*ttl),
		observe: observe,
	}
}

var _ repository.ClientRegistry = (*CachedClientRegistry)(nil)

// FindByClientID returns the cached client, loading it on a miss.
func (c *CachedClientRegistry) FindByClientID(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	return c.lookup(ctx, "id:"+clientID, func(ctx context.Context) (*models.OAuthClient, error) {
		return c.next.FindByClientID(ctx, clientID)
	})
}

// FindByAudience returns the cached resource server, loading it on a miss.
func (c *CachedClientRegistry) FindByAudience(ctx context.Context, audience string) (*models.OAuthClient, error) {
	return c.lookup(ctx, "aud:"+audience, func(ctx context.Context) (*models.OAuthClient, error) {
		return c.next.FindByAudience(ctx, audience)
	})
}

// Flush drops every entry, e.g. after an administrative change.
func (c *CachedClientRegistry) Flush() {
	c.cache.Flush()
}

func (c *CachedClientRegistry) lookup(ctx context.Context, key string, load func(context.Context) (*models.OAuthClient, error)) (*models.OAuthClient, error) {
	if v, ok := c.cache.Get(key); ok {
		c.observe(ResultHit)
		return v.(*models.OAuthClient), nil
	}
	c.observe(ResultMiss)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		client, err := load(ctx)
		if err != nil || client == nil {
			return client, err
		}
		c.cache.SetDefault(key, client)
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.OAuthClient), nil
}
