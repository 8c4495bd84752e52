// Package rulescache keeps tenant pricing rules in memory with a TTL so that
// bulk repricing does not hit the database once per vehicle.
package rulescache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"dealer-pricing/internal/pricing"
	"dealer-pricing/internal/storage"
)

// Cache is a read-through cache in front of a RulesStore. Tenants without
// stored rules get the defaults.
type Cache struct {
	store  storage.RulesStore
	items  *cache.Cache
	group  singleflight.Group
	logger zerolog.Logger
}

// New builds a cache with the given TTL and cleanup interval.
func New(store storage.RulesStore, ttl, cleanup time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if cleanup <= 0 {
		cleanup = 2 * ttl
	}
	return &Cache{
		store:  store,
		items:  cache.New(ttl, cleanup),
		logger: logger.With().Str("component", "rules_cache").Logger(),
	}
}

// Get returns the tenant's rules, loading them on a miss.
func (c *Cache) Get(ctx context.Context, tenantID uuid.UUID) (pricing.PricingRules, error) {
	key := tenantID.String()
	if v, ok := c.items.Get(key); ok {
		if rules, ok := v.(pricing.PricingRules); ok {
			return rules, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		rules, err := c.load(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		c.items.SetDefault(key, rules)
		return rules, nil
	})
	if err != nil {
		return pricing.PricingRules{}, err
	}
	return v.(pricing.PricingRules), nil
}

// Invalidate drops a tenant's cached rules.
func (c *Cache) Invalidate(tenantID uuid.UUID) {
	c.items.Delete(tenantID.String())
}

// Flush drops every cached entry.
func (c *Cache) Flush() {
	c.items.Flush()
}

// Len reports the number of cached tenants, expired ones included until cleanup.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}

func (c *Cache) load(ctx context.Context, tenantID uuid.UUID) (pricing.PricingRules, error) {
	if c.store == nil {
		return pricing.DefaultPricingRules(tenantID), nil
	}
	rules, err := c.store.GetRules(ctx, tenantID)
	if errors.Is(err, storage.ErrNotFound) {
		c.logger.Debug().Str("tenant", tenantID.String()).Msg("no stored rules, using defaults")
		return pricing.DefaultPricingRules(tenantID), nil
	}
	if err != nil {
		return pricing.PricingRules{}, err
	}
	rules.TenantID = tenantID
	return rules, nil
}
