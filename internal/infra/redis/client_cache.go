package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"tenant-quiz-service/internal/app"
	"tenant-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ClientCache caches client records in Redis, keyed by client_id, and falls back to
// the wrapped store on a miss. It lets several API instances share lookups.
// Entries are stored as: SET client:{clientID} {json}
type ClientCache struct {
	app.ClientStore
	client redis.UniversalClient
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

type cachedClient struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ClientID   string    `json:"clientId"`
	SecretHash string    `json:"secretHash"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func NewClientCache(client redis.UniversalClient, store app.ClientStore, ttl time.Duration) *ClientCache {
	return &ClientCache{
		ClientStore: store,
		client:      client,
		ttl:         ttl,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ClientCache) GetByClientID(ctx context.Context, clientID string) (domain.Client, error) {
	if client, ok := c.lookup(ctx, clientID); ok {
		return client, nil
	}

	result, err, _ := c.sf.Do(clientID, func() (interface{}, error) {
		// Re-check in case another goroutine filled it.
		if client, ok := c.lookup(ctx, clientID); ok {
			return client, nil
		}

		client, err := c.ClientStore.GetByClientID(ctx, clientID)
		if err != nil {
			return domain.Client{}, err
		}
		// A zero expiration means "keep forever" to redis; without a ttl nothing is cached.
		if c.ttl <= 0 {
			return client, nil
		}
		if body, err := json.Marshal(cachedClient(client)); err == nil {
			_ = c.client.Set(ctx, c.key(clientID), body, c.ttlWithJitter()).Err()
		}
		return client, nil
	})
	if err != nil {
		return domain.Client{}, err
	}
	return result.(domain.Client), nil
}

// Update writes through and drops the entries of both the old and new client_id.
func (c *ClientCache) Update(ctx context.Context, client domain.Client) error {
	previous, err := c.ClientStore.Get(ctx, client.ID)
	if err != nil && !errors.Is(err, domain.ErrClientNotFound) {
		return err
	}
	if err := c.ClientStore.Update(ctx, client); err != nil {
		return err
	}
	keys := []string{c.key(client.ClientID)}
	if previous.ClientID != "" && previous.ClientID != client.ClientID {
		keys = append(keys, c.key(previous.ClientID))
	}
	// best-effort; entries expire anyway
	_ = c.client.Del(ctx, keys...).Err()
	return nil
}

func (c *ClientCache) lookup(ctx context.Context, clientID string) (domain.Client, bool) {
	body, err := c.client.Get(ctx, c.key(clientID)).Bytes()
	if err != nil {
		return domain.Client{}, false
	}
	var cached cachedClient
	if err := json.Unmarshal(body, &cached); err != nil {
		return domain.Client{}, false
	}
	return domain.Client(cached), true
}

func (c *ClientCache) key(clientID string) string {
	return "client:" + clientID
}

func (c *ClientCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
