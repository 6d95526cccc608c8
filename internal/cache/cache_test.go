package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statsPayload struct {
	Champions int `json:"champions"`
	AvgScore  float64 `json:"avg_score"`
}

func testCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := New(client, time.Minute)
	t.Cleanup(func() {
		c.Close()
		client.Close()
	})
	return c, mr
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	var got statsPayload
	require.False(t, c.Get(ctx, KeyDashboardStats, &got), "empty cache must miss")

	c.Set(ctx, KeyDashboardStats, statsPayload{Champions: 3, AvgScore: 61.5})
	require.True(t, c.Get(ctx, KeyDashboardStats, &got))
	assert.Equal(t, 3, got.Champions)
	assert.Equal(t, 61.5, got.AvgScore)
}

func TestCache_Invalidate(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	c.Set(ctx, KeyDashboardStats, statsPayload{Champions: 1})
	c.Invalidate(ctx, KeyDashboardStats)

	var got statsPayload
	assert.False(t, c.Get(ctx, KeyDashboardStats, &got))
}

func TestCache_TTLExpiry(t *testing.T) {
	c, mr := testCache(t)
	ctx := context.Background()

	c.Set(ctx, KeyDashboardStats, statsPayload{Champions: 1})
	mr.FastForward(2 * time.Minute)

	var got statsPayload
	assert.False(t, c.Get(ctx, KeyDashboardStats, &got))
}

func TestCache_CorruptEntryDropped(t *testing.T) {
	c, mr := testCache(t)
	ctx := context.Background()

	mr.Set(KeyDashboardStats, "{not json")
	var got statsPayload
	assert.False(t, c.Get(ctx, KeyDashboardStats, &got))
	assert.False(t, mr.Exists(KeyDashboardStats), "corrupt entry must be deleted")
}

func TestCache_PublishReachesSubscriber(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	var fired int32
	c.Subscribe(ctx, TopicScores, func(topic string) {
		assert.Equal(t, TopicScores, topic)
		atomic.AddInt32(&fired, 1)
	})

	// Subscription setup is asynchronous in redis pub/sub.
	require.Eventually(t, func() bool {
		c.Publish(ctx, TopicScores)
		return atomic.LoadInt32(&fired) > 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestCache_NilIsDisabled(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	var got statsPayload
	assert.False(t, c.Get(ctx, "k", &got))
	c.Set(ctx, "k", got)
	c.Publish(ctx, TopicScores)
	assert.NoError(t, c.Close())
}
