package model

import (
	"github.com/qs3c/subhub/internal/pkg/quota"
	"github.com/qs3c/subhub/internal/pkg/subscription"
)

// Subscription 订阅套餐
type Subscription struct {
	ID                   int64                   `gorm:"primaryKey" json:"id"`
	Name                 string                  `gorm:"size:64;not null" json:"name"`
	Description          string                  `gorm:"type:text" json:"description"`
	DailyQuotaLimit      int64                   `json:"daily_quota_limit"`
	WeeklyQuotaLimit     int64                   `json:"weekly_quota_limit"`
	TotalQuotaLimit      int64                   `json:"total_quota_limit"` // 订阅周期内不重置
	DurationDays         int                     `gorm:"default:30" json:"duration_days"`
	AllowedGroups        StringArray             `gorm:"type:text" json:"allowed_groups"`
	Status               subscription.PlanStatus `gorm:"default:1;index" json:"status"`
	EnableExclusiveGroup bool                    `json:"enable_exclusive_group"`
	CreatedTime          int64                   `gorm:"autoCreateTime" json:"created_time"`
	UpdatedTime          int64                   `gorm:"autoUpdateTime" json:"updated_time"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// Limits 三个周期的限额，0 表示不限制
func (s *Subscription) Limits() quota.PeriodValues {
	return quota.PeriodValues{
		Daily:  s.DailyQuotaLimit,
		Weekly: s.WeeklyQuotaLimit,
		Total:  s.TotalQuotaLimit,
	}
}

// AllowsGroup 套餐是否覆盖该分组
func (s *Subscription) AllowsGroup(group string) bool {
	return s.AllowedGroups.Contains(group)
}

// UserSubscription 用户订阅记录
type UserSubscription struct {
	ID             int64               `gorm:"primaryKey" json:"id"`
	UserID         int64               `gorm:"not null;index" json:"user_id"`
	SubscriptionID int64               `gorm:"not null;index" json:"subscription_id"`
	Status         subscription.Status `gorm:"default:1;index" json:"status"`
	StartTime      int64               `gorm:"not null" json:"start_time"`
	ExpireTime     int64               `gorm:"not null;index" json:"expire_time"`
	Source         string              `gorm:"size:20" json:"source"` // redemption, admin
	CreatedTime    int64               `gorm:"autoCreateTime" json:"created_time"`
	UpdatedTime    int64               `gorm:"autoUpdateTime" json:"updated_time"`

	SubscriptionInfo *Subscription `gorm:"foreignKey:SubscriptionID" json:"subscription_info,omitempty"`

	// 以下字段来自 Redis 计数器，不落库
	DailyQuotaUsed  int64 `gorm:"-" json:"daily_quota_used"`
	WeeklyQuotaUsed int64 `gorm:"-" json:"weekly_quota_used"`
	TotalQuotaUsed  int64 `gorm:"-" json:"total_quota_used"`
}

func (UserSubscription) TableName() string {
	return "user_subscriptions"
}

// Used 三个周期的已用量
func (us *UserSubscription) Used() quota.PeriodValues {
	return quota.PeriodValues{
		Daily:  us.DailyQuotaUsed,
		Weekly: us.WeeklyQuotaUsed,
		Total:  us.TotalQuotaUsed,
	}
}

// IsExpiredAt 到期时间已过
func (us *UserSubscription) IsExpiredAt(now int64) bool {
	return us.ExpireTime <= now
}

const (
	SubscriptionSourceRedemption = "redemption"
	SubscriptionSourceAdmin      = "admin"
)
