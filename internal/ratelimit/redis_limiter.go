package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/client"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/util"
)

const redisLimitPrefix = "rate_limit:"

// Atomic sliding window: prune expired members, count, and record the
// attempt only when under the limit.
const slidingWindowScript = `
    local key = KEYS[1]
    local now = tonumber(ARGV[1])
    local window_start = tonumber(ARGV[2])
    local limit = tonumber(ARGV[3])

    redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

    local current_count = redis.call('ZCARD', key)

    if current_count < limit then
        redis.call('ZADD', key, now, now)
        redis.call('EXPIRE', key, math.ceil(tonumber(ARGV[4])))
        return {1, current_count + 1}
    else
        return {0, current_count}
    end
`

// RedisSlidingWindow shares one attempt history across replicas. It
// fails open: when Redis is unreachable the attempt is allowed and the
// error logged.
type RedisSlidingWindow struct {
	client      *client.RedisClient
	maxAttempts int
	window      time.Duration
}

func NewRedisSlidingWindow(client *client.RedisClient, maxAttempts int, window time.Duration) *RedisSlidingWindow {
	return &RedisSlidingWindow{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

func (l *RedisSlidingWindow) Allow(identifier string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UnixMilli()
	windowStart := now - l.window.Milliseconds()

	result, err := l.client.Eval(ctx, slidingWindowScript,
		[]string{redisLimitPrefix + identifier},
		now, windowStart, l.maxAttempts, int(l.window.Seconds()))
	if err != nil {
		util.Error("Failed to execute sliding window rate limit",
			zap.String("identifier", identifier),
			zap.Error(err))
		return true
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) != 2 {
		util.Error("Unexpected result format from sliding window script",
			zap.String("identifier", identifier))
		return true
	}

	allowed := resultSlice[0].(int64) == 1

	util.Debug("Sliding window rate limit check",
		zap.String("identifier", identifier),
		zap.Bool("allowed", allowed),
		zap.Int64("current_count", resultSlice[1].(int64)),
		zap.Int("limit", l.maxAttempts))

	return allowed
}

func (l *RedisSlidingWindow) RemainingTime(identifier string) time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	oldest, err := l.client.ZRangeWithScores(ctx, redisLimitPrefix+identifier, 0, 0)
	if err != nil || len(oldest) == 0 {
		return 0
	}

	count, err := l.client.ZCard(ctx, redisLimitPrefix+identifier)
	if err != nil || count < int64(l.maxAttempts) {
		return 0
	}

	oldestAt := time.UnixMilli(int64(oldest[0].Score))
	remaining := l.window - time.Since(oldestAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
