package dto

// 额度来源
const (
	SourceSubscription = "subscription"
	SourceBalance      = "balance"
	SourceCheckin      = "checkin"
)

// ConsumeRequest 额度消费请求（由转发层调用）
type ConsumeRequest struct {
	UserID    int64  `json:"user_id" binding:"required,gt=0"`
	Quota     int64  `json:"quota" binding:"required,gt=0"`
	Group     string `json:"group" binding:"required,max=64"`
	ModelName string `json:"model_name" binding:"max=100"`
	ChannelID int64  `json:"channel_id"`
	TokenName string `json:"token_name" binding:"max=100"`
	IP        string `json:"ip" binding:"max=64"`
	// 会话标识（metadata.user_id 或首条用户消息），非空且渠道开启粘性会话时绑定
	SessionID string `json:"session_id" binding:"max=4096"`
}

// ConsumeResponse 消费结果
type ConsumeResponse struct {
	Source             string `json:"source"`
	Quota              int64  `json:"quota"` // 折扣后实际扣减
	UserSubscriptionID int64  `json:"user_subscription_id,omitempty"`
	StickyBound        bool   `json:"sticky_bound,omitempty"`
}

// ReturnRequest 退还额度
type ReturnRequest struct {
	UserID             int64  `json:"user_id" binding:"required,gt=0"`
	Quota              int64  `json:"quota" binding:"required,gt=0"`
	Source             string `json:"source" binding:"required,oneof=subscription balance checkin"`
	UserSubscriptionID int64  `json:"user_subscription_id"`
}
