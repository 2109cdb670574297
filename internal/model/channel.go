package model

import (
	"strings"
	"time"
)

const (
	ChannelStatusEnabled  = 1
	ChannelStatusDisabled = 2
)

// Channel 上游渠道
type Channel struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:100;index" json:"name"`
	Type        int    `gorm:"default:0" json:"type"`
	Status      int    `gorm:"default:1" json:"status"`
	Group       string `gorm:"column:group;size:255;default:default" json:"group"` // 逗号分隔
	Models      string `gorm:"type:text" json:"models"`
	Priority    int64  `gorm:"default:0" json:"priority"`
	CreatedTime int64  `gorm:"autoCreateTime" json:"created_time"`

	// 粘性会话设置，数量和次数为 0 表示不限
	StickySessionEnabled        bool `gorm:"default:false" json:"sticky_session_enabled"`
	StickySessionMaxCount       int  `gorm:"default:0" json:"sticky_session_max_count"`
	StickySessionTTLMinutes     int  `gorm:"default:0" json:"sticky_session_ttl_minutes"`
	StickySessionDailyBindLimit int  `gorm:"default:0" json:"sticky_session_daily_bind_limit"`
}

const defaultStickyTTLMinutes = 60

// StickyTTLMinutes 未配置时默认 60 分钟
func (c *Channel) StickyTTLMinutes() int {
	if c.StickySessionTTLMinutes <= 0 {
		return defaultStickyTTLMinutes
	}
	return c.StickySessionTTLMinutes
}

func (c *Channel) StickyTTL() time.Duration {
	return time.Duration(c.StickyTTLMinutes()) * time.Minute
}

func (Channel) TableName() string {
	return "channels"
}

// Groups 拆分渠道分组
func (c *Channel) Groups() []string {
	var groups []string
	for _, g := range strings.Split(c.Group, ",") {
		g = strings.TrimSpace(g)
		if g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// HasGroup 渠道是否属于分组
func (c *Channel) HasGroup(group string) bool {
	for _, g := range c.Groups() {
		if g == group {
			return true
		}
	}
	return false
}

// AddGroup 返回追加分组后的分组串，已存在时原样返回
func (c *Channel) AddGroup(group string) string {
	if c.HasGroup(group) {
		return c.Group
	}
	return strings.Join(append(c.Groups(), group), ",")
}

// RemoveGroup 返回移除分组后的分组串
func (c *Channel) RemoveGroup(group string) string {
	kept := make([]string, 0)
	for _, g := range c.Groups() {
		if g != group {
			kept = append(kept, g)
		}
	}
	return strings.Join(kept, ",")
}

// UserSubscriptionChannel 用户专属渠道绑定
type UserSubscriptionChannel struct {
	ID                 int64 `gorm:"primaryKey" json:"id"`
	UserID             int64 `gorm:"not null;index:idx_user_channel,unique" json:"user_id"`
	ChannelID          int64 `gorm:"not null;index:idx_user_channel,unique" json:"channel_id"`
	UserSubscriptionID int64 `gorm:"not null;index" json:"user_subscription_id"`
	CreatedTime        int64 `gorm:"autoCreateTime" json:"created_time"`

	ChannelInfo *Channel `gorm:"foreignKey:ChannelID" json:"channel_info,omitempty"`
}

func (UserSubscriptionChannel) TableName() string {
	return "user_subscription_channels"
}
