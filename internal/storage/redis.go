package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/mithril-go/miner/internal/util"
)

const (
	keyPrefix = "mithril:"

	keySubmitted = keyPrefix + "submitted"
	keyMinerID   = keyPrefix + "miner_id"
)

// Cache wraps the local Redis-backed state a restarted miner needs to
// resume without resubmitting work already accepted by the pool.
type Cache struct {
	client *redis.Client
	ctx    context.Context
}

// NewCache creates a Redis-backed cache.
func NewCache(url, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	util.Info("Connected to Redis at ", url)
	return &Cache{client: client, ctx: ctx}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// shareMember is the dedup set's member encoding for a submitted share.
func shareMember(jobID, nonce string) string {
	return jobID + ":" + nonce
}

// WasSubmitted reports whether (jobID, nonce) has already been recorded as
// submitted, guarding against resubmission after a crash-and-restart.
func (c *Cache) WasSubmitted(jobID, nonce string) (bool, error) {
	return c.client.SIsMember(c.ctx, keySubmitted, shareMember(jobID, nonce)).Result()
}

// RecordSubmitted records that (jobID, nonce) was submitted to the pool and
// prunes entries older than retention.
func (c *Cache) RecordSubmitted(jobID, nonce string, retention time.Duration) error {
	member := shareMember(jobID, nonce)
	now := time.Now()

	pipe := c.client.Pipeline()
	pipe.SAdd(c.ctx, keySubmitted, member)
	pipe.ZAdd(c.ctx, keySubmitted+":ts", &redis.Z{Score: float64(now.Unix()), Member: member})
	_, err := pipe.Exec(c.ctx)
	if err != nil {
		return err
	}

	return c.pruneSubmitted(retention)
}

func (c *Cache) pruneSubmitted(retention time.Duration) error {
	cutoff := time.Now().Add(-retention).Unix()
	stale, err := c.client.ZRangeByScore(c.ctx, keySubmitted+":ts", &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", cutoff),
	}).Result()
	if err != nil || len(stale) == 0 {
		return err
	}

	pipe := c.client.Pipeline()
	pipe.SRem(c.ctx, keySubmitted, toInterfaceSlice(stale)...)
	pipe.ZRemRangeByScore(c.ctx, keySubmitted+":ts", "-inf", fmt.Sprintf("%d", cutoff))
	_, err = pipe.Exec(c.ctx)
	return err
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// SaveMinerID persists the pool-assigned miner id so a restarted miner can
// report it as a login hint.
func (c *Cache) SaveMinerID(minerID string) error {
	return c.client.Set(c.ctx, keyMinerID, minerID, 0).Err()
}

// LoadMinerID returns the last persisted miner id, if any.
func (c *Cache) LoadMinerID() (string, bool, error) {
	id, err := c.client.Get(c.ctx, keyMinerID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}
