package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"tenant-quiz-service/internal/app"
	"tenant-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ClientCache caches client lookups by client_id with a TTL, so that token
// authentication does not hit the store on every request. Writes go through to the
// store and drop the cached entries they touch.
type ClientCache struct {
	app.ClientStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedClient
}

type cachedClient struct {
	client    domain.Client
	expiresAt time.Time
}

func NewClientCache(store app.ClientStore, ttl time.Duration) *ClientCache {
	return &ClientCache{
		ClientStore: store,
		ttl:         ttl,
		clock:       time.Now,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:       make(map[string]cachedClient),
	}
}

func (c *ClientCache) GetByClientID(ctx context.Context, clientID string) (domain.Client, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[clientID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.client, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(clientID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[clientID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.client, nil
		}
		c.mu.RUnlock()

		client, err := c.ClientStore.GetByClientID(ctx, clientID)
		if err != nil {
			return domain.Client{}, err
		}

		c.mu.Lock()
		c.cache[clientID] = cachedClient{client: client, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return domain.Client{}, err
	}
	return result.(domain.Client), nil
}

// Update writes through and evicts every cached alias of the client, including the
// client_id it had before a credential rotation.
func (c *ClientCache) Update(ctx context.Context, client domain.Client) error {
	if err := c.ClientStore.Update(ctx, client); err != nil {
		return err
	}
	c.mu.Lock()
	for key, entry := range c.cache {
		if entry.client.ID == client.ID {
			delete(c.cache, key)
		}
	}
	c.mu.Unlock()
	return nil
}

func (c *ClientCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
