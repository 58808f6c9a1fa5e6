// internal/lookup/cache.go
package lookup

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bogdanrbucur/pal-e3/internal/metrics"
)

const (
	vesselsKey = "vessels"
	usersKey   = "users"
)

// Cache memoizes the vessel and user directories for the lifetime of a
// session. Entries are never refreshed automatically; call Invalidate to force
// the next read to hit the vendor again.
type Cache struct {
	source  Source
	logger  *zap.Logger
	metrics *metrics.Metrics

	group singleflight.Group

	mu      sync.RWMutex
	vessels []Vessel
	users   []User
}

// NewCache creates a cache in front of source. m may be nil.
func NewCache(source Source, logger *zap.Logger, m *metrics.Metrics) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		source:  source,
		logger:  logger.Named("lookup"),
		metrics: m,
	}
}

// Vessels returns the cached vessel directory, fetching it on first use.
// Concurrent first calls share one vendor request.
func (c *Cache) Vessels(ctx context.Context) ([]Vessel, error) {
	c.mu.RLock()
	cached := c.vessels
	c.mu.RUnlock()
	if cached != nil {
		c.metrics.CacheEvent(vesselsKey, "hit")
		return cached, nil
	}

	v, err, shared := c.group.Do(vesselsKey, func() (interface{}, error) {
		c.metrics.CacheEvent(vesselsKey, "miss")
		vessels, err := c.source.FetchVessels(ctx)
		if err != nil {
			return nil, err
		}
		if vessels == nil {
			vessels = []Vessel{}
		}
		c.mu.Lock()
		c.vessels = vessels
		c.mu.Unlock()
		c.logger.Debug("Cached vessel directory", zap.Int("count", len(vessels)))
		return vessels, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.metrics.CacheEvent(vesselsKey, "shared")
	}
	return v.([]Vessel), nil
}

// Users returns the cached user directory, fetching it on first use.
func (c *Cache) Users(ctx context.Context) ([]User, error) {
	c.mu.RLock()
	cached := c.users
	c.mu.RUnlock()
	if cached != nil {
		c.metrics.CacheEvent(usersKey, "hit")
		return cached, nil
	}

	v, err, shared := c.group.Do(usersKey, func() (interface{}, error) {
		c.metrics.CacheEvent(usersKey, "miss")
		users, err := c.source.FetchUsers(ctx)
		if err != nil {
			return nil, err
		}
		if users == nil {
			users = []User{}
		}
		c.mu.Lock()
		c.users = users
		c.mu.Unlock()
		c.logger.Debug("Cached user directory", zap.Int("count", len(users)))
		return users, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.metrics.CacheEvent(usersKey, "shared")
	}
	return v.([]User), nil
}

// Invalidate drops both directories.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vessels = nil
	c.users = nil
}

// ResolveUsers resolves name fragments against the cached user directory.
func (c *Cache) ResolveUsers(ctx context.Context, fragments []string) (ResolvedUsers, error) {
	users, err := c.Users(ctx)
	if err != nil {
		return ResolvedUsers{}, err
	}
	return ResolveUsers(users, fragments)
}

// ResolveVessel returns the cached vessel whose name matches exactly, ignoring case.
func (c *Cache) ResolveVessel(ctx context.Context, name string) (Vessel, error) {
	vessels, err := c.Vessels(ctx)
	if err != nil {
		return Vessel{}, err
	}
	matches, err := MatchVessels(vessels, []string{name})
	if err != nil {
		return Vessel{}, err
	}
	return matches[0], nil
}

// VesselIDs resolves exact vessel names into a comma separated VesselId list.
func (c *Cache) VesselIDs(ctx context.Context, names []string) (string, error) {
	vessels, err := c.Vessels(ctx)
	if err != nil {
		return "", err
	}
	matches, err := MatchVessels(vessels, names)
	if err != nil {
		return "", err
	}
	return joinIDs(matches, func(v Vessel) ID { return v.VesselID }), nil
}

// VesselObjectIDs resolves exact vessel names into a comma separated VesselObjectId list.
func (c *Cache) VesselObjectIDs(ctx context.Context, names []string) (string, error) {
	vessels, err := c.Vessels(ctx)
	if err != nil {
		return "", err
	}
	matches, err := MatchVessels(vessels, names)
	if err != nil {
		return "", err
	}
	return joinIDs(matches, func(v Vessel) ID { return v.VesselObjectID }), nil
}
