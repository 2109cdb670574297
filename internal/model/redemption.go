package model

const (
	RedemptionTypeQuota        = 1 // 额度充值码
	RedemptionTypeSubscription = 2 // 订阅兑换码
)

const (
	RedemptionStatusEnabled  = 1
	RedemptionStatusDisabled = 2
	RedemptionStatusUsed     = 3
)

// Redemption 兑换码
type Redemption struct {
	ID             int64  `gorm:"primaryKey" json:"id"`
	UserID         int64  `gorm:"index" json:"user_id"` // 创建者
	Key            string `gorm:"column:key;type:char(32);uniqueIndex" json:"key"`
	Name           string `gorm:"size:64;index" json:"name"`
	Type           int    `gorm:"default:1" json:"type"`
	Status         int    `gorm:"default:1;index" json:"status"`
	Quota          int64  `gorm:"default:0" json:"quota"`
	SubscriptionID int64  `gorm:"index" json:"subscription_id"`
	UsedUserID     int64  `json:"used_user_id"`
	RedeemedTime   int64  `json:"redeemed_time"`
	ExpiredTime    int64  `json:"expired_time"` // 0 表示永不过期
	CreatedTime    int64  `gorm:"autoCreateTime" json:"created_time"`
}

func (Redemption) TableName() string {
	return "redemptions"
}

// IsExpiredAt 兑换码是否已过期
func (r *Redemption) IsExpiredAt(now int64) bool {
	return r.ExpiredTime != 0 && r.ExpiredTime < now
}
