// Package cache Redis 缓存
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/subhub/internal/model"
)

const subscriptionKeyPrefix = "user_subscription:"

// SubscriptionCache 缓存用户当前生效的订阅
type SubscriptionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSubscriptionCache(rdb *redis.Client, ttl time.Duration) *SubscriptionCache {
	return &SubscriptionCache{rdb: rdb, ttl: ttl}
}

func subscriptionKey(userID int64) string {
	return fmt.Sprintf("%s%d", subscriptionKeyPrefix, userID)
}

// Get 读取缓存，未命中返回 nil, nil
func (c *SubscriptionCache) Get(ctx context.Context, userID int64) (*model.UserSubscription, error) {
	val, err := c.rdb.Get(ctx, subscriptionKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription cache: %w", err)
	}

	var us model.UserSubscription
	if err := json.Unmarshal(val, &us); err != nil {
		// 脏数据直接丢弃
		c.rdb.Del(ctx, subscriptionKey(userID))
		return nil, nil
	}
	return &us, nil
}

// Set 写入缓存，过期时间不超过订阅到期时间
func (c *SubscriptionCache) Set(ctx context.Context, us *model.UserSubscription) error {
	data, err := json.Marshal(us)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	ttl := c.ttl
	if remain := time.Until(time.Unix(us.ExpireTime, 0)); remain < ttl {
		ttl = remain
	}
	if ttl <= 0 {
		return nil
	}

	return c.rdb.Set(ctx, subscriptionKey(us.UserID), data, ttl).Err()
}

// Invalidate 删除缓存
func (c *SubscriptionCache) Invalidate(ctx context.Context, userID int64) error {
	return c.rdb.Del(ctx, subscriptionKey(userID)).Err()
}
