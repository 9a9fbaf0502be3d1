package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// FeedCachePrefix is the key prefix for following-feed caches
	FeedCachePrefix = "feed:following:"

	// FeedCacheCap is the maximum number of posts to cache per user
	FeedCacheCap = 500

	// FeedCacheTTL is the idle TTL for a feed cache, refreshed on read
	FeedCacheTTL = 24 * time.Hour
)

// PostScore is a post id with its creation time in unix millis, used as the ZSET score.
type PostScore struct {
	PostID    string
	Timestamp int64
}

// FeedCache stores, per user, the ids of posts written by the accounts they
// follow, newest first. A missing key means "not cached", never "empty feed";
// callers warm it from the store on a miss. Entries only leave a cache by
// trimming to FeedCacheCap, so a cache holding fewer entries is complete.
type FeedCache interface {
	// AddPostIfCached adds a post to every listed user's feed that is
	// currently cached. Users without a cache are skipped so a partial
	// cache is never created.
	AddPostIfCached(ctx context.Context, userIDs []string, postID string, timestamp int64) error

	// GetFeed returns post ids newest first, ties by id descending. With
	// maxScore, only posts scored at or below it are returned; callers drop
	// the already-seen ties themselves.
	GetFeed(ctx context.Context, userID string, maxScore *float64, limit int) (postIDs []string, scores []float64, err error)

	// WarmCache replaces a user's feed with posts.
	WarmCache(ctx context.Context, userID string, posts []PostScore) error

	// Invalidate drops the listed users' caches.
	Invalidate(ctx context.Context, userIDs ...string) error

	// Size returns the number of posts in a user's feed cache.
	Size(ctx context.Context, userID string) (int64, error)

	// Exists checks if a user has a feed cache entry.
	Exists(ctx context.Context, userID string) (bool, error)
}

// addIfExists keeps AddPostIfCached atomic per key: the EXISTS check and the
// write cannot interleave with an expiry.
var addIfExists = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	redis.call('ZADD', KEYS[1], ARGV[1], ARGV[2])
	redis.call('ZREMRANGEBYRANK', KEYS[1], 0, -(tonumber(ARGV[3]) + 1))
	redis.call('EXPIRE', KEYS[1], ARGV[4])
	return 1
end
return 0
`)

// RedisFeedCache implements FeedCache using Redis Sorted Sets.
type RedisFeedCache struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewFeedCache creates a new FeedCache backed by Redis.
func NewFeedCache(client *redis.Client) FeedCache {
	return &RedisFeedCache{
		client: client,
		log:    log.With().Str("component", "FeedCache").Logger(),
	}
}

// feedKey returns the Redis key for a user's feed cache.
func feedKey(userID string) string {
	return FeedCachePrefix + userID
}

// AddPostIfCached runs the conditional add for each user in one pipeline.
func (c *RedisFeedCache) AddPostIfCached(ctx context.Context, userIDs []string, postID string, timestamp int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	startTime := time.Now()

	pipe := c.client.Pipeline()
	ttl := int64(FeedCacheTTL / time.Second)
	for _, userID := range userIDs {
		addIfExists.Eval(ctx, pipe, []string{feedKey(userID)}, timestamp, postID, FeedCacheCap, ttl)
	}

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		c.log.Error().Err(err).Str("post", postID).Int("users", len(userIDs)).Msg("AddPostIfCached failed")
		return fmt.Errorf("add post to feeds: %w", err)
	}

	var added int
	for _, cmd := range cmds {
		if n, _ := cmd.(*redis.Cmd).Int(); n == 1 {
			added++
		}
	}

	c.log.Debug().Str("post", postID).Int("users", len(userIDs)).Int("cached", added).
		Dur("duration", time.Since(startTime)).Msg("AddPostIfCached OK")
	return nil
}

// GetFeed uses ZREVRANGE without a bound and ZREVRANGEBYSCORE with one.
func (c *RedisFeedCache) GetFeed(ctx context.Context, userID string, maxScore *float64, limit int) ([]string, []float64, error) {
	key := feedKey(userID)
	startTime := time.Now()

	var results []redis.Z
	var err error

	if maxScore == nil {
		results, err = c.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	} else {
		results, err = c.client.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
			Min:    "-inf",
			Max:    strconv.FormatFloat(*maxScore, 'f', -1, 64),
			Offset: 0,
			Count:  int64(limit),
		}).Result()
	}

	if err != nil {
		c.log.Error().Err(err).Str("user", userID).Msg("GetFeed failed")
		return nil, nil, fmt.Errorf("get feed: %w", err)
	}

	// Refresh TTL on access
	c.client.Expire(ctx, key, FeedCacheTTL)

	postIDs := make([]string, len(results))
	scores := make([]float64, len(results))
	for i, z := range results {
		id, ok := z.Member.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected feed member %T", z.Member)
		}
		postIDs[i] = id
		scores[i] = z.Score
	}

	c.log.Debug().Str("user", userID).Int("returned", len(postIDs)).
		Dur("duration", time.Since(startTime)).Msg("GetFeed OK")
	return postIDs, scores, nil
}

// WarmCache replaces a user's feed cache using a transaction pipeline.
func (c *RedisFeedCache) WarmCache(ctx context.Context, userID string, posts []PostScore) error {
	if len(posts) == 0 {
		return nil
	}

	key := feedKey(userID)
	startTime := time.Now()

	members := make([]redis.Z, len(posts))
	for i, p := range posts {
		members[i] = redis.Z{
			Score:  float64(p.Timestamp),
			Member: p.PostID,
		}
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.ZAdd(ctx, key, members...)
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Error().Err(err).Str("user", userID).Int("posts", len(posts)).Msg("WarmCache failed")
		return fmt.Errorf("warm cache: %w", err)
	}

	c.log.Debug().Str("user", userID).Int("posts", len(posts)).
		Dur("duration", time.Since(startTime)).Msg("WarmCache OK")
	return nil
}

// Invalidate deletes the listed users' feed caches.
func (c *RedisFeedCache) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = feedKey(id)
	}

	removed, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		c.log.Error().Err(err).Int("users", len(userIDs)).Msg("Invalidate failed")
		return fmt.Errorf("invalidate feeds: %w", err)
	}

	c.log.Debug().Int("users", len(userIDs)).Int64("removed", removed).Msg("Invalidate OK")
	return nil
}

// Size returns the number of posts in a user's feed cache.
func (c *RedisFeedCache) Size(ctx context.Context, userID string) (int64, error) {
	size, err := c.client.ZCard(ctx, feedKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("get cache size: %w", err)
	}
	return size, nil
}

// Exists checks if a user has a feed cache entry.
func (c *RedisFeedCache) Exists(ctx context.Context, userID string) (bool, error) {
	exists, err := c.client.Exists(ctx, feedKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("check cache exists: %w", err)
	}
	return exists > 0, nil
}
