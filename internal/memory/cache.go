package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// AnswerCache caches synthesized answers in Redis, keyed by session and
// question. The cache is best effort: any Redis failure degrades to a
// miss and the turn proceeds uncached.
type AnswerCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Entry
}

// NewAnswerCache connects to Redis and verifies it with a short ping.
// An unreachable Redis is an error; callers typically log it and run
// without a cache.
func NewAnswerCache(addr string, ttl time.Duration) (*AnswerCache, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &AnswerCache{
		client: client,
		ttl:    ttl,
		logger: logrus.WithField("component", "answer_cache"),
	}, nil
}

// Close closes the Redis connection
func (c *AnswerCache) Close() error {
	return c.client.Close()
}

func cacheKey(sessionID, question string) string {
	sum := sha256.Sum256([]byte(sessionID + "|" + question))
	return "codescope:answer:" + hex.EncodeToString(sum[:])
}

// Get returns a cached answer and whether one was found
func (c *AnswerCache) Get(ctx context.Context, sessionID, question string) (string, bool) {
	val, err := c.client.Get(ctx, cacheKey(sessionID, question)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.WithError(err).Debug("Cache read failed, treating as miss")
		return "", false
	}
	return val, true
}

// Set stores an answer with the configured TTL
func (c *AnswerCache) Set(ctx context.Context, sessionID, question, answer string) {
	if err := c.client.Set(ctx, cacheKey(sessionID, question), answer, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Debug("Cache write failed")
	}
}
