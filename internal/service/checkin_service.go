package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/qs3c/subhub/config"
	"github.com/qs3c/subhub/internal/metrics"
	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/logger"
	"github.com/qs3c/subhub/internal/pkg/quota"
	"github.com/qs3c/subhub/internal/repository"
)

var (
	ErrCheckinDisabled          = errors.New("签到功能未开启")
	ErrAlreadyCheckedIn         = errors.New("今天已经签到过了")
	ErrCheckinQuotaInsufficient = errors.New("签到额度不足")
	ErrInvalidCheckinConfig     = errors.New("签到额度不能为负")
)

const defaultCheckinGroup = "free"

// checkinConsumeScript 余额足够时扣减，返回扣减后余额；不足返回 -1
var checkinConsumeScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
if cur < amount then
  return -1
end
return redis.call('DECRBY', KEYS[1], amount)
`)

// checkinReturnScript 仅在当天额度还存在时退还
var checkinReturnScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('INCRBY', KEYS[1], ARGV[1])
return 1
`)

// CheckinService 每日签到，签到额度当天有效
type CheckinService struct {
	rdb        *redis.Client
	optionRepo *repository.OptionRepository
	logRepo    *repository.LogRepository
	defaults   config.CheckinConfig
	loc        *time.Location
	log        *logrus.Entry
	now        func() time.Time
}

func NewCheckinService(
	rdb *redis.Client,
	optionRepo *repository.OptionRepository,
	logRepo *repository.LogRepository,
	defaults config.CheckinConfig,
	loc *time.Location,
) *CheckinService {
	if loc == nil {
		loc = time.UTC
	}
	return &CheckinService{
		rdb:        rdb,
		optionRepo: optionRepo,
		logRepo:    logRepo,
		defaults:   defaults,
		loc:        loc,
		log:        logger.WithComponent("checkin"),
		now:        time.Now,
	}
}

func (s *CheckinService) quotaKey(userID int64, day string) string {
	return fmt.Sprintf("checkin:quota:%d:%s", userID, day)
}

func (s *CheckinService) recordKey(userID int64, day string) string {
	return fmt.Sprintf("checkin:record:%d:%s", userID, day)
}

// today 当天日期与到次日零点的剩余时长
func (s *CheckinService) today() (string, time.Time, time.Duration) {
	now := s.now()
	midnight := quota.NextReset(quota.PeriodDaily, now, s.loc)
	return quota.PeriodKey(quota.PeriodDaily, now, s.loc), midnight, midnight.Sub(now)
}

// Config 读取签到配置，设置表中没有时使用配置文件默认值
func (s *CheckinService) Config() (dto.CheckinConfig, error) {
	cfg := dto.CheckinConfig{
		Enabled:     s.defaults.Enabled,
		QuotaAmount: s.defaults.QuotaAmount,
		Group:       s.defaults.Group,
	}

	raw, ok, err := s.optionRepo.Get(model.OptionCheckinConfig)
	if err != nil {
		return cfg, err
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			s.log.WithError(err).Warn("invalid checkin config option, using defaults")
		}
	}
	if cfg.Group == "" {
		cfg.Group = defaultCheckinGroup
	}
	return cfg, nil
}

// SetConfig 保存签到配置
func (s *CheckinService) SetConfig(cfg dto.CheckinConfig) (dto.CheckinConfig, error) {
	if cfg.QuotaAmount < 0 {
		return cfg, ErrInvalidCheckinConfig
	}
	cfg.Group = strings.TrimSpace(cfg.Group)
	if cfg.Group == "" {
		cfg.Group = defaultCheckinGroup
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return cfg, err
	}
	if err := s.optionRepo.Set(model.OptionCheckinConfig, string(data)); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Status 当天签到状态
func (s *CheckinService) Status(ctx context.Context, userID int64) (*dto.CheckinStatus, error) {
	day, midnight, _ := s.today()
	status := &dto.CheckinStatus{ExpiresAt: midnight.Unix()}

	vals, err := s.rdb.MGet(ctx, s.recordKey(userID, day), s.quotaKey(userID, day)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read checkin status: %w", err)
	}
	if v, ok := vals[0].(string); ok {
		status.CheckedIn = true
		status.CheckinTime, _ = strconv.ParseInt(v, 10, 64)
	}
	status.QuotaRemaining = parseCounter(vals[1])
	return status, nil
}

// Checkin 签到，每个自然日一次
func (s *CheckinService) Checkin(ctx context.Context, userID int64) (*dto.CheckinStatus, error) {
	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, ErrCheckinDisabled
	}

	day, midnight, ttl := s.today()
	now := s.now().Unix()

	ok, err := s.rdb.SetNX(ctx, s.recordKey(userID, day), now, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to record checkin: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyCheckedIn
	}

	if err := s.rdb.Set(ctx, s.quotaKey(userID, day), cfg.QuotaAmount, ttl).Err(); err != nil {
		// 额度写入失败时撤销签到记录，允许重试
		s.rdb.Del(ctx, s.recordKey(userID, day))
		return nil, fmt.Errorf("failed to grant checkin quota: %w", err)
	}

	metrics.CheckinsTotal.Inc()
	entry := &model.Log{
		UserID:    userID,
		CreatedAt: now,
		Type:      model.LogTypeCheckin,
		Content:   fmt.Sprintf("签到获得 %s 临时额度，当天有效", quota.ToDisplay(cfg.QuotaAmount, quota.ModeDollars)),
		Quota:     cfg.QuotaAmount,
		Group:     cfg.Group,
	}
	if err := s.logRepo.Create(entry); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to record checkin log")
	}

	return &dto.CheckinStatus{
		CheckedIn:      true,
		QuotaRemaining: cfg.QuotaAmount,
		CheckinTime:    now,
		ExpiresAt:      midnight.Unix(),
	}, nil
}

// Consume 扣减当天签到额度
func (s *CheckinService) Consume(ctx context.Context, userID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidQuotaAmount
	}
	day, _, _ := s.today()
	left, err := checkinConsumeScript.Run(ctx, s.rdb, []string{s.quotaKey(userID, day)}, amount).Int64()
	if err != nil {
		return fmt.Errorf("failed to consume checkin quota: %w", err)
	}
	if left < 0 {
		return ErrCheckinQuotaInsufficient
	}
	return nil
}

// Return 退还签到额度，跨天后额度已失效不再退还
func (s *CheckinService) Return(ctx context.Context, userID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidQuotaAmount
	}
	day, _, _ := s.today()
	if err := checkinReturnScript.Run(ctx, s.rdb, []string{s.quotaKey(userID, day)}, amount).Err(); err != nil {
		return fmt.Errorf("failed to return checkin quota: %w", err)
	}
	return nil
}

// Group 签到额度适用的分组
func (s *CheckinService) Group() string {
	cfg, err := s.Config()
	if err != nil || cfg.Group == "" {
		return defaultCheckinGroup
	}
	return cfg.Group
}
