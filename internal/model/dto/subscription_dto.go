package dto

// PlanRequest 创建/更新套餐请求
type PlanRequest struct {
	Name                 string   `json:"name" binding:"required,max=64"`
	Description          string   `json:"description" binding:"max=2000"`
	DailyQuotaLimit      int64    `json:"daily_quota_limit" binding:"min=0"`
	WeeklyQuotaLimit     int64    `json:"weekly_quota_limit" binding:"min=0"`
	TotalQuotaLimit      int64    `json:"total_quota_limit" binding:"required,gt=0"`
	DurationDays         int      `json:"duration_days" binding:"min=0,max=3650"`
	AllowedGroups        []string `json:"allowed_groups" binding:"required,min=1,dive,required,max=64"`
	Status               int      `json:"status" binding:"omitempty,oneof=1 2"`
	EnableExclusiveGroup bool     `json:"enable_exclusive_group"`
}

// QuotaPeriod 单个周期的已用/限额
type QuotaPeriod struct {
	Used    int64 `json:"used"`
	Limit   int64 `json:"limit"`
	ResetAt int64 `json:"reset_at,omitempty"`
}

// QuotaStatusResponse 订阅额度状态
type QuotaStatusResponse struct {
	UserSubscriptionID int64       `json:"user_subscription_id"`
	Status             int         `json:"status"`
	ExpireTime         int64       `json:"expire_time"`
	Daily              QuotaPeriod `json:"daily"`
	Weekly             QuotaPeriod `json:"weekly"`
	Total              QuotaPeriod `json:"total"`
}

// GrantSubscriptionRequest 管理员为用户开通订阅
type GrantSubscriptionRequest struct {
	SubscriptionID int64 `json:"subscription_id" binding:"required,gt=0"`
	DurationDays   int   `json:"duration_days" binding:"min=0,max=3650"`
}

// UpdateUserSubscriptionRequest 管理员修改用户订阅，字段为空表示不修改
type UpdateUserSubscriptionRequest struct {
	SubscriptionID *int64 `json:"subscription_id,omitempty"`
	ExpireTime     *int64 `json:"expire_time,omitempty"`
}
