package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/pkg/quota"
)

var (
	ErrSubscriptionQuotaExceeded = errors.New("订阅额度不足")
	ErrInvalidQuotaAmount        = errors.New("额度必须大于 0")
)

const quotaKeyPrefix = "subscription:quota:"

// consumeScript 依次检查三个周期，全部未超限才一起累加
// KEYS: daily, weekly, total；ARGV: amount, 三个限额, 三个 TTL(秒)
// 返回 0 表示成功，1/2/3 表示超限的周期
var consumeScript = redis.NewScript(`
local amount = tonumber(ARGV[1])
for i = 1, 3 do
  local limit = tonumber(ARGV[i + 1])
  if limit > 0 then
    local used = tonumber(redis.call('GET', KEYS[i]) or '0')
    if used + amount > limit then
      return i
    end
  end
end
for i = 1, 3 do
  redis.call('INCRBY', KEYS[i], amount)
  if redis.call('TTL', KEYS[i]) == -1 then
    redis.call('EXPIRE', KEYS[i], tonumber(ARGV[i + 4]))
  end
end
return 0
`)

// returnScript 退还额度，计数不低于 0 且保留原 TTL
var returnScript = redis.NewScript(`
local amount = tonumber(ARGV[1])
for i = 1, #KEYS do
  local cur = tonumber(redis.call('GET', KEYS[i]) or '0')
  if cur > 0 then
    local left = cur - amount
    if left < 0 then
      left = 0
    end
    redis.call('SET', KEYS[i], left, 'KEEPTTL')
  end
end
return 1
`)

// QuotaService 订阅额度计数，计数器全部在 Redis 中
type QuotaService struct {
	rdb *redis.Client
	loc *time.Location
	now func() time.Time
}

func NewQuotaService(rdb *redis.Client, loc *time.Location) *QuotaService {
	if loc == nil {
		loc = time.UTC
	}
	return &QuotaService{
		rdb: rdb,
		loc: loc,
		now: time.Now,
	}
}

// QuotaKey 周期计数器 key
func QuotaKey(userSubscriptionID int64, p quota.Period, periodKey string) string {
	return fmt.Sprintf("%s%d:%s:%s", quotaKeyPrefix, userSubscriptionID, p, periodKey)
}

func (s *QuotaService) keys(userSubscriptionID int64, now time.Time) []string {
	keys := make([]string, 0, len(quota.Periods))
	for _, p := range quota.Periods {
		keys = append(keys, QuotaKey(userSubscriptionID, p, quota.PeriodKey(p, now, s.loc)))
	}
	return keys
}

// ttls 每日/每周计数到下次重置为止，总额度计数保留到订阅到期后一天
func (s *QuotaService) ttls(us *model.UserSubscription, now time.Time) []int64 {
	ttls := make([]int64, 0, len(quota.Periods))
	for _, p := range quota.Periods {
		var sec int64
		if p == quota.PeriodTotal {
			sec = us.ExpireTime + 86400 - now.Unix()
		} else {
			sec = int64(quota.NextReset(p, now, s.loc).Sub(now).Seconds())
		}
		if sec <= 0 {
			sec = 86400
		}
		ttls = append(ttls, sec)
	}
	return ttls
}

// Consume 原子地检查并扣减订阅额度，超限时返回 ErrSubscriptionQuotaExceeded
func (s *QuotaService) Consume(ctx context.Context, us *model.UserSubscription, limits quota.PeriodValues, amount int64) error {
	if amount <= 0 {
		return ErrInvalidQuotaAmount
	}

	now := s.now()
	args := []interface{}{amount}
	for _, p := range quota.Periods {
		args = append(args, limits.Get(p))
	}
	for _, ttl := range s.ttls(us, now) {
		args = append(args, ttl)
	}

	res, err := consumeScript.Run(ctx, s.rdb, s.keys(us.ID, now), args...).Int()
	if err != nil {
		return fmt.Errorf("failed to consume subscription quota: %w", err)
	}
	if res > 0 && res <= len(quota.Periods) {
		return fmt.Errorf("%w: %s", ErrSubscriptionQuotaExceeded, quota.Periods[res-1].Label())
	}
	return nil
}

// Return 退还当前周期的订阅额度
func (s *QuotaService) Return(ctx context.Context, userSubscriptionID int64, amount int64) error {
	if amount <= 0 {
		return ErrInvalidQuotaAmount
	}
	err := returnScript.Run(ctx, s.rdb, s.keys(userSubscriptionID, s.now()), amount).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to return subscription quota: %w", err)
	}
	return nil
}

// GetUsage 读取当前周期的已用量
func (s *QuotaService) GetUsage(ctx context.Context, userSubscriptionID int64) (quota.PeriodValues, error) {
	vals, err := s.rdb.MGet(ctx, s.keys(userSubscriptionID, s.now())...).Result()
	if err != nil {
		return quota.PeriodValues{}, fmt.Errorf("failed to read quota usage: %w", err)
	}

	var used quota.PeriodValues
	for i, v := range vals {
		n := parseCounter(v)
		switch quota.Periods[i] {
		case quota.PeriodDaily:
			used.Daily = n
		case quota.PeriodWeekly:
			used.Weekly = n
		case quota.PeriodTotal:
			used.Total = n
		}
	}
	return used, nil
}

// FillUsage 给订阅列表补上用量字段
func (s *QuotaService) FillUsage(ctx context.Context, list []*model.UserSubscription) error {
	for _, us := range list {
		used, err := s.GetUsage(ctx, us.ID)
		if err != nil {
			return err
		}
		us.DailyQuotaUsed = used.Daily
		us.WeeklyQuotaUsed = used.Weekly
		us.TotalQuotaUsed = used.Total
	}
	return nil
}

// ResetAt 每日、每周周期的下次重置时间（unix 秒）
func (s *QuotaService) ResetAt(p quota.Period) int64 {
	t := quota.NextReset(p, s.now(), s.loc)
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func parseCounter(v interface{}) int64 {
	str, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
