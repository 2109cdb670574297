// Package subscription 订阅状态与界面门控规则
package subscription

import "fmt"

// Status 用户订阅状态
type Status int

const (
	StatusActive     Status = 1
	StatusExpired    Status = 2
	StatusCancelled  Status = 3
	StatusSuperseded Status = 4
)

// StatusLabel 状态展示标签
type StatusLabel struct {
	Text  string `json:"text"`
	Color string `json:"color"`
	Known bool   `json:"known"`
}

// Label 状态到标签的完整映射，新增状态必须在这里补一个分支
func Label(s Status) StatusLabel {
	switch s {
	case StatusActive:
		return StatusLabel{Text: "激活中", Color: "green", Known: true}
	case StatusExpired:
		return StatusLabel{Text: "已过期", Color: "grey", Known: true}
	case StatusCancelled:
		return StatusLabel{Text: "已取消", Color: "red", Known: true}
	case StatusSuperseded:
		return StatusLabel{Text: "已替换", Color: "orange", Known: true}
	default:
		return StatusLabel{Text: "未知", Color: "grey", Known: false}
	}
}

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusExpired:
		return "expired"
	case StatusCancelled:
		return "cancelled"
	case StatusSuperseded:
		return "superseded"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Valid 是否为已定义的状态
func (s Status) Valid() bool {
	return Label(s).Known
}

// Terminal 终态，进入后不再变化
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusCancelled || s == StatusSuperseded
}

// CanTransition 只允许 Active 流转到终态
func CanTransition(from, to Status) bool {
	return from == StatusActive && to.Terminal()
}

// ShowUsagePanel 仅激活中的订阅展示用量面板
func ShowUsagePanel(s Status) bool {
	return s == StatusActive
}

// ShowExpiredBanner 仅已过期的订阅展示过期提示
func ShowExpiredBanner(s Status) bool {
	return s == StatusExpired
}

// ShowExclusiveBanner 仅激活中的订阅展示专属渠道提示
func ShowExclusiveBanner(s Status) bool {
	return s == StatusActive
}

// PlanStatus 套餐状态
type PlanStatus int

const (
	PlanEnabled  PlanStatus = 1
	PlanDisabled PlanStatus = 2
)

func (p PlanStatus) Valid() bool {
	return p == PlanEnabled || p == PlanDisabled
}

// ExclusiveGroupName 用户专属分组名
func ExclusiveGroupName(userID int64) string {
	return fmt.Sprintf("sub_user_%d", userID)
}

// ParseExclusiveGroup 从分组名解析用户 ID，不是专属分组时返回 false
func ParseExclusiveGroup(group string) (int64, bool) {
	var id int64
	n, err := fmt.Sscanf(group, "sub_user_%d", &id)
	if err != nil || n != 1 || ExclusiveGroupName(id) != group {
		return 0, false
	}
	return id, true
}
