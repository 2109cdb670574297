package dto

// BindChannelRequest 绑定专属渠道
type BindChannelRequest struct {
	ChannelID int64 `json:"channel_id" binding:"required,gt=0"`
}

// ExclusiveSelfResponse 当前用户的专属分组状态
type ExclusiveSelfResponse struct {
	HasPermission bool   `json:"has_permission"`
	HasChannels   bool   `json:"has_channels"`
	GroupName     string `json:"group_name"`
}

// ExclusiveUser 拥有专属分组权限的用户
type ExclusiveUser struct {
	UserID             int64  `json:"user_id"`
	Username           string `json:"username"`
	DisplayName        string `json:"display_name"`
	UserSubscriptionID int64  `json:"user_subscription_id"`
	SubscriptionName   string `json:"subscription_name"`
	ExpireTime         int64  `json:"expire_time"`
	GroupName          string `json:"group_name"`
	ChannelCount       int64  `json:"channel_count"`
}
