package profiles

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/kdev47/stakehouse/go/internal/models"
)

// Getter is the lookup the cache fronts.
type Getter interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

// Cache fronts profile lookups with a TTL. Display fields change rarely;
// balance consumers must not read through here.
type Cache struct {
	source Getter
	ttl    time.Duration
	clock  clockwork.Clock

	mu      sync.Mutex
	entries map[uuid.UUID]cacheEntry
}

type cacheEntry struct {
	profile   models.Profile
	fetchedAt time.Time
}

func NewCache(source Getter, ttl time.Duration, clock clockwork.Clock) *Cache {
	return &Cache{
		source:  source,
		ttl:     ttl,
		clock:   clock,
		entries: make(map[uuid.UUID]cacheEntry),
	}
}

// GetProfile returns the cached profile, refetching once the entry ages past
// the TTL. Lookup errors are not cached.
func (c *Cache) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	c.mu.Lock()
	entry, ok := c.entries[id]
	c.mu.Unlock()
	if ok && c.clock.Since(entry.fetchedAt) < c.ttl {
		p := entry.profile
		return &p, nil
	}

	p, err := c.source.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[id] = cacheEntry{profile: *p, fetchedAt: c.clock.Now()}
	c.mu.Unlock()
	return p, nil
}

// Invalidate drops a user's entry, forcing the next lookup through.
func (c *Cache) Invalidate(id uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}
