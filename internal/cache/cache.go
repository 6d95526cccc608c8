// Package cache holds the Redis-backed dashboard read-model cache and the
// change-subscription used to invalidate it. State has an explicit
// lifecycle: created at process startup, closed at shutdown — nothing here
// is an ambient singleton.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clearsight/adscope/internal/pkg/logger"
)

// TopicScores is published after any batch of suspicion-score writes.
// Subscribers drop derived read models so the next read recomputes.
const TopicScores = "adscope:invalidate:scores"

// KeyDashboardStats caches the aggregate dashboard payload.
const KeyDashboardStats = "adscope:dashboard:stats"

// Cache is a thin JSON cache over Redis plus a topic subscription. A nil
// *Cache is valid and disables caching entirely, so callers never branch
// on configuration.
type Cache struct {
	client *redis.Client
	ttl    time.Duration

	mu       sync.Mutex
	handlers map[string][]func(topic string)
	sub      *redis.PubSub
	done     chan struct{}
}

// New creates a cache with the given default TTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		client:   client,
		ttl:      ttl,
		handlers: map[string][]func(string){},
		done:     make(chan struct{}),
	}
}

// Get unmarshals the cached value into dst. Returns false on a miss or
// when the cache is disabled; Redis errors degrade to a miss because a
// cache outage must never fail a read.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil || c.client == nil {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("cache get failed", "key", key, "error", err.Error())
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		logger.Warn("cache entry corrupt, dropping", "key", key)
		c.client.Del(ctx, key)
		return false
	}
	return true
}

// Set stores v under key with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, v any) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warn("cache marshal failed", "key", key, "error", err.Error())
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("cache set failed", "key", key, "error", err.Error())
	}
}

// Invalidate deletes keys immediately (local fast path, no pub/sub hop).
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.client == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("cache invalidate failed", "error", err.Error())
	}
}

// Publish notifies every process subscribed to topic. Used by the batch
// worker after score writes so API replicas drop their read models.
func (c *Cache) Publish(ctx context.Context, topic string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Publish(ctx, topic, "1").Err(); err != nil {
		logger.Warn("invalidation publish failed", "topic", topic, "error", err.Error())
	}
}

// Subscribe registers a handler for a topic and starts the receive loop on
// first use. Handlers run on the subscription goroutine; keep them short.
func (c *Cache) Subscribe(ctx context.Context, topic string, handler func(topic string)) {
	if c == nil || c.client == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[topic] = append(c.handlers[topic], handler)
	if c.sub != nil {
		if err := c.sub.Subscribe(ctx, topic); err != nil {
			logger.Warn("topic subscribe failed", "topic", topic, "error", err.Error())
		}
		return
	}

	c.sub = c.client.Subscribe(ctx, topic)
	go c.receive()
}

func (c *Cache) receive() {
	ch := c.sub.Channel()
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			c.mu.Lock()
			handlers := append([]func(string){}, c.handlers[msg.Channel]...)
			c.mu.Unlock()
			for _, h := range handlers {
				h(msg.Channel)
			}
		}
	}
}

// Close tears down the subscription. Safe on a nil or disabled cache.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	close(c.done)
	if c.sub != nil {
		if err := c.sub.Close(); err != nil {
			return fmt.Errorf("cache: close subscription: %w", err)
		}
	}
	return nil
}
