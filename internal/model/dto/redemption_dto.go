package dto

// GenerateRedemptionRequest 生成订阅兑换码请求
type GenerateRedemptionRequest struct {
	Name           string `json:"name" binding:"required,max=20"`
	SubscriptionID int64  `json:"subscription_id" binding:"required,gt=0"`
	Count          int    `json:"count" binding:"required,min=1,max=100"`
	ExpiredTime    int64  `json:"expired_time" binding:"min=0"`
}

// GenerateQuotaCodeRequest 生成额度充值码请求
type GenerateQuotaCodeRequest struct {
	Name        string `json:"name" binding:"required,max=20"`
	Quota       int64  `json:"quota" binding:"required,gt=0"`
	Count       int    `json:"count" binding:"required,min=1,max=100"`
	ExpiredTime int64  `json:"expired_time" binding:"min=0"`
}

// TopUpRequest 兑换请求
type TopUpRequest struct {
	Key           string `json:"key" binding:"required"`
	ForceOverride bool   `json:"force_override"`
}

// TopUpResponse 兑换结果
type TopUpResponse struct {
	Type               int    `json:"type"`
	Quota              int64  `json:"quota,omitempty"`
	UserSubscriptionID int64  `json:"user_subscription_id,omitempty"`
	SubscriptionName   string `json:"subscription_name,omitempty"`
	ExpireTime         int64  `json:"expire_time,omitempty"`
	Superseded         int    `json:"superseded,omitempty"` // 被替换的订阅数
}

// ConflictInfo 冲突时返回的现有订阅信息
type ConflictInfo struct {
	UserSubscriptionID int64  `json:"user_subscription_id"`
	SubscriptionID     int64  `json:"subscription_id"`
	SubscriptionName   string `json:"subscription_name"`
	ExpireTime         int64  `json:"expire_time"`
}
