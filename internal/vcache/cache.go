// Package vcache implements the two-level validation cache: a short-lived
// in-process layer in front of the persistent nar_address_cache table.
// Validation results never change once written, so entries are never
// invalidated; only their lookup bookkeeping is updated.
package vcache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/brandonolsen23/cleo-pipeline/internal/logger"
	"github.com/brandonolsen23/cleo-pipeline/internal/metrics"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
)

const (
	localTTL    = time.Hour
	localSweep  = 10 * time.Minute
	outcomeHit  = "hit"
	outcomeMiss = "miss"
)

// Repository is the persistent side of the cache.
type Repository interface {
	// Get returns the entry under the exact key, or nil, nil.
	Get(ctx context.Context, addressNormalized string, cityHint, postalCode *string) (*models.CacheEntry, error)
	// Touch increments the entry's lookup count and stamps last_lookup_at.
	Touch(ctx context.Context, addressNormalized string, cityHint, postalCode *string) error
	// Upsert inserts the entry, or bumps lookup bookkeeping when the key
	// already exists. It reports whether a new row was created.
	Upsert(ctx context.Context, entry *models.CacheEntry) (bool, error)
	// Count returns the number of persisted entries.
	Count(ctx context.Context) (int64, error)
}

// Cache is the two-level validation cache. It satisfies the validator's
// cache interface.
type Cache struct {
	repo  Repository
	local *gocache.Cache
	log   *logger.Logger
}

// New creates a validation cache backed by the given repository.
func New(repo Repository, log *logger.Logger) *Cache {
	return &Cache{
		repo:  repo,
		local: gocache.New(localTTL, localSweep),
		log:   log.WithComponent("validation_cache"),
	}
}

// Lookup searches the cache under the specific key (address, city, postal)
// first, then a loose key with no postal code. A hit bumps the persistent
// entry's lookup bookkeeping.
func (c *Cache) Lookup(ctx context.Context, addressNormalized string, cityHint, postalCode *string) (*models.ValidationResult, error) {
	type probe struct {
		cityHint   *string
		postalCode *string
	}

	probes := make([]probe, 0, 2)
	if postalCode != nil && strings.TrimSpace(*postalCode) != "" {
		probes = append(probes, probe{cityHint: cityHint, postalCode: postalCode})
	}
	if cityHint != nil && strings.TrimSpace(*cityHint) != "" {
		probes = append(probes, probe{cityHint: cityHint, postalCode: nil})
	}

	for _, p := range probes {
		key := cacheKey(addressNormalized, p.cityHint, p.postalCode)

		if cached, ok := c.local.Get(key); ok {
			result := cached.(models.ValidationResult)
			metrics.CacheLookups.WithLabelValues(outcomeHit).Inc()
			c.touch(ctx, addressNormalized, p.cityHint, p.postalCode)
			return &result, nil
		}

		entry, err := c.repo.Get(ctx, addressNormalized, p.cityHint, p.postalCode)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}

		c.local.SetDefault(key, entry.Result)
		metrics.CacheLookups.WithLabelValues(outcomeHit).Inc()
		c.touch(ctx, addressNormalized, p.cityHint, p.postalCode)
		result := entry.Result
		return &result, nil
	}

	metrics.CacheLookups.WithLabelValues(outcomeMiss).Inc()
	return nil, nil
}

// Store persists a validation result under its key. Failures are logged and
// swallowed; a broken cache must never fail a validation.
func (c *Cache) Store(ctx context.Context, addressNormalized string, cityHint, postalCode *string, result models.ValidationResult) {
	entry := &models.CacheEntry{
		AddressNormalized: addressNormalized,
		CityHint:          cityHint,
		PostalCode:        postalCode,
		Result:            result,
		LookupCount:       1,
	}

	created, err := c.repo.Upsert(ctx, entry)
	if err != nil {
		c.log.Warn("Failed to persist validation cache entry", map[string]interface{}{
			"address": addressNormalized,
			"error":   err.Error(),
		})
		return
	}
	if created {
		metrics.CacheEntries.Inc()
	}

	c.local.SetDefault(cacheKey(addressNormalized, cityHint, postalCode), result)
}

// SyncEntryCount reconciles the cache size gauge with the persistent store.
// Called once at startup so the gauge survives restarts.
func (c *Cache) SyncEntryCount(ctx context.Context) error {
	count, err := c.repo.Count(ctx)
	if err != nil {
		return err
	}
	metrics.CacheEntries.Set(float64(count))
	return nil
}

func (c *Cache) touch(ctx context.Context, addressNormalized string, cityHint, postalCode *string) {
	if err := c.repo.Touch(ctx, addressNormalized, cityHint, postalCode); err != nil {
		c.log.Warn("Failed to update cache lookup stats", map[string]interface{}{
			"address": addressNormalized,
			"error":   err.Error(),
		})
	}
}

func cacheKey(addressNormalized string, cityHint, postalCode *string) string {
	var b strings.Builder
	b.WriteString(addressNormalized)
	b.WriteByte('|')
	if cityHint != nil {
		b.WriteString(*cityHint)
	}
	b.WriteByte('|')
	if postalCode != nil {
		b.WriteString(*postalCode)
	}
	return b.String()
}
