package model

const (
	OptionSubscriptionPageHTML = "SubscriptionPageHTML"
	OptionCheckinConfig        = "CheckinConfig"
)

// Option 系统设置键值对
type Option struct {
	Key   string `gorm:"column:key;primaryKey;size:64" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}

func (Option) TableName() string {
	return "options"
}
