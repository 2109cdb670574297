package model

const (
	LogTypeUnknown = 0
	LogTypeTopup   = 1
	LogTypeConsume = 2
	LogTypeManage  = 3
	LogTypeSystem  = 4
	LogTypeError   = 5
	LogTypeCheckin = 6
)

// Log 使用/错误日志
type Log struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	UserID     int64  `gorm:"index" json:"user_id"`
	CreatedAt  int64  `gorm:"index" json:"created_at"`
	Type       int    `gorm:"index" json:"type"`
	Content    string `gorm:"type:text" json:"content"`
	Username   string `gorm:"size:50;index" json:"username"`
	TokenName  string `gorm:"size:100;index" json:"token_name"`
	ModelName  string `gorm:"size:100;index" json:"model_name"`
	Quota      int64  `json:"quota"`
	ChannelID  int64  `gorm:"index" json:"channel"`
	Group      string `gorm:"column:group;size:64" json:"group"`
	IP         string `gorm:"size:64" json:"ip"`
	ErrorCode  string `gorm:"size:64" json:"error_code"`
	ErrorType  string `gorm:"size:64" json:"error_type"`
	StatusCode int    `json:"status_code"`
	Other      string `gorm:"type:text" json:"other"` // 详情 JSON
}

func (Log) TableName() string {
	return "logs"
}

// SubscriptionLog 订阅额度消费记录
type SubscriptionLog struct {
	ID                 int64  `gorm:"primaryKey" json:"id"`
	UserID             int64  `gorm:"not null;index" json:"user_id"`
	UserSubscriptionID int64  `gorm:"not null;index" json:"user_subscription_id"`
	Quota              int64  `json:"quota"`
	ModelName          string `gorm:"size:100" json:"model_name"`
	TokenName          string `gorm:"size:100" json:"token_name"`
	Group              string `gorm:"column:group;size:64" json:"group"`
	CreatedAt          int64  `gorm:"index" json:"created_at"`
}

func (SubscriptionLog) TableName() string {
	return "subscription_logs"
}
