package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/pkg/subscription"
)

var seq int64

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	n := nextSeq()
	user := &model.User{
		Username:      fmt.Sprintf("testuser_%d", n),
		DisplayName:   fmt.Sprintf("Test User %d", n),
		Role:          model.RoleCommonUser,
		Status:        model.UserStatusEnabled,
		Group:         "default",
		Quota:         0,
		DiscountRatio: 1,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithRole 设置角色
func WithRole(role int) func(*model.User) {
	return func(u *model.User) {
		u.Role = role
	}
}

// WithQuota 设置余额
func WithQuota(quota int64) func(*model.User) {
	return func(u *model.User) {
		u.Quota = quota
	}
}

// WithDiscount 设置折扣
func WithDiscount(ratio float64) func(*model.User) {
	return func(u *model.User) {
		u.DiscountRatio = ratio
	}
}

// TestPlan 创建测试套餐
func TestPlan(t *testing.T, db *gorm.DB, opts ...func(*model.Subscription)) *model.Subscription {
	t.Helper()

	plan := &model.Subscription{
		Name:             fmt.Sprintf("Plan %d", nextSeq()),
		Description:      "test plan",
		DailyQuotaLimit:  1000000,
		WeeklyQuotaLimit: 5000000,
		TotalQuotaLimit:  20000000,
		DurationDays:     30,
		AllowedGroups:    model.StringArray{"default"},
		Status:           subscription.PlanEnabled,
	}

	for _, opt := range opts {
		opt(plan)
	}

	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("Failed to create test plan: %v", err)
	}

	return plan
}

// WithExclusive 开启专属分组
func WithExclusive() func(*model.Subscription) {
	return func(p *model.Subscription) {
		p.EnableExclusiveGroup = true
	}
}

// WithLimits 设置三个周期限额
func WithLimits(daily, weekly, total int64) func(*model.Subscription) {
	return func(p *model.Subscription) {
		p.DailyQuotaLimit = daily
		p.WeeklyQuotaLimit = weekly
		p.TotalQuotaLimit = total
	}
}

// WithPlanStatus 设置套餐状态
func WithPlanStatus(status subscription.PlanStatus) func(*model.Subscription) {
	return func(p *model.Subscription) {
		p.Status = status
	}
}

// WithGroups 设置允许的分组
func WithGroups(groups ...string) func(*model.Subscription) {
	return func(p *model.Subscription) {
		p.AllowedGroups = groups
	}
}

// TestUserSubscription 创建测试用户订阅（默认激活，30 天后到期）
func TestUserSubscription(t *testing.T, db *gorm.DB, userID, planID int64, opts ...func(*model.UserSubscription)) *model.UserSubscription {
	t.Helper()

	now := time.Now().Unix()
	us := &model.UserSubscription{
		UserID:         userID,
		SubscriptionID: planID,
		Status:         subscription.StatusActive,
		StartTime:      now,
		ExpireTime:     now + 30*24*3600,
		Source:         model.SubscriptionSourceAdmin,
	}

	for _, opt := range opts {
		opt(us)
	}

	if err := db.Omit("SubscriptionInfo").Create(us).Error; err != nil {
		t.Fatalf("Failed to create test user subscription: %v", err)
	}

	return us
}

// WithStatus 设置订阅状态
func WithStatus(status subscription.Status) func(*model.UserSubscription) {
	return func(us *model.UserSubscription) {
		us.Status = status
	}
}

// WithExpireTime 设置到期时间
func WithExpireTime(expire int64) func(*model.UserSubscription) {
	return func(us *model.UserSubscription) {
		us.ExpireTime = expire
	}
}

// TestRedemption 创建测试兑换码
func TestRedemption(t *testing.T, db *gorm.DB, opts ...func(*model.Redemption)) *model.Redemption {
	t.Helper()

	r := &model.Redemption{
		Key:    strings.ReplaceAll(uuid.NewString(), "-", ""),
		Name:   "test",
		Type:   model.RedemptionTypeQuota,
		Status: model.RedemptionStatusEnabled,
		Quota:  500000,
	}

	for _, opt := range opts {
		opt(r)
	}

	if err := db.Create(r).Error; err != nil {
		t.Fatalf("Failed to create test redemption: %v", err)
	}

	return r
}

// WithPlanCode 设置为订阅兑换码
func WithPlanCode(planID int64) func(*model.Redemption) {
	return func(r *model.Redemption) {
		r.Type = model.RedemptionTypeSubscription
		r.Quota = 0
		r.SubscriptionID = planID
	}
}

// WithCodeExpiredTime 设置兑换码过期时间
func WithCodeExpiredTime(expired int64) func(*model.Redemption) {
	return func(r *model.Redemption) {
		r.ExpiredTime = expired
	}
}

// WithCodeStatus 设置兑换码状态
func WithCodeStatus(status int) func(*model.Redemption) {
	return func(r *model.Redemption) {
		r.Status = status
	}
}

// TestChannel 创建测试渠道
func TestChannel(t *testing.T, db *gorm.DB, opts ...func(*model.Channel)) *model.Channel {
	t.Helper()

	ch := &model.Channel{
		Name:   fmt.Sprintf("channel_%d", nextSeq()),
		Status: model.ChannelStatusEnabled,
		Group:  "default",
		Models: "gpt-4o,gpt-4o-mini",
	}

	for _, opt := range opts {
		opt(ch)
	}

	if err := db.Create(ch).Error; err != nil {
		t.Fatalf("Failed to create test channel: %v", err)
	}

	return ch
}

// WithChannelGroup 设置渠道分组
func WithChannelGroup(group string) func(*model.Channel) {
	return func(c *model.Channel) {
		c.Group = group
	}
}

// WithSticky 开启粘性会话
func WithSticky(maxCount, ttlMinutes, dailyLimit int) func(*model.Channel) {
	return func(c *model.Channel) {
		c.StickySessionEnabled = true
		c.StickySessionMaxCount = maxCount
		c.StickySessionTTLMinutes = ttlMinutes
		c.StickySessionDailyBindLimit = dailyLimit
	}
}

// TestLog 创建测试日志
func TestLog(t *testing.T, db *gorm.DB, opts ...func(*model.Log)) *model.Log {
	t.Helper()

	l := &model.Log{
		CreatedAt: time.Now().Unix(),
		Type:      model.LogTypeError,
		Username:  "testuser",
		ModelName: "gpt-4o",
		Content:   "upstream error",
	}

	for _, opt := range opts {
		opt(l)
	}

	if err := db.Create(l).Error; err != nil {
		t.Fatalf("Failed to create test log: %v", err)
	}

	return l
}
