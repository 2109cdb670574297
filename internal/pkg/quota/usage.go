package quota

import (
	"fmt"
	"time"
)

// Period 额度统计周期
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
	PeriodTotal  Period = "total"
)

// Periods 固定的展示顺序
var Periods = []Period{PeriodDaily, PeriodWeekly, PeriodTotal}

// Tier 用量颜色档位
type Tier string

const (
	TierBase    Tier = "base"
	TierWarning Tier = "warning"
	TierAlert   Tier = "alert"
)

const (
	warningThreshold = 70
	alertThreshold   = 90
)

// BaseColor 每个周期的基础色，用于区分不同序列
func (p Period) BaseColor() string {
	switch p {
	case PeriodDaily:
		return "blue"
	case PeriodWeekly:
		return "cyan"
	case PeriodTotal:
		return "violet"
	default:
		return "grey"
	}
}

// Label 周期中文名
func (p Period) Label() string {
	switch p {
	case PeriodDaily:
		return "每日"
	case PeriodWeekly:
		return "每周"
	case PeriodTotal:
		return "总额度"
	default:
		return string(p)
	}
}

// Usage 单个周期的用量百分比；Unlimited 为 true 时 Percent 无意义
type Usage struct {
	Percent   float64
	Unlimited bool
}

// UsagePercent 计算用量百分比
// limit == 0 表示不限制，不做除法；超出限额时截断为 100
func UsagePercent(used, limit int64) Usage {
	if limit <= 0 {
		return Usage{Unlimited: true}
	}
	if used <= 0 {
		return Usage{}
	}
	if used >= limit {
		return Usage{Percent: 100}
	}
	return Usage{Percent: float64(used) / float64(limit) * 100}
}

// TierOf 根据百分比确定颜色档位
func TierOf(u Usage) Tier {
	if u.Unlimited {
		return TierBase
	}
	switch {
	case u.Percent > alertThreshold:
		return TierAlert
	case u.Percent > warningThreshold:
		return TierWarning
	default:
		return TierBase
	}
}

// Color 周期 + 用量对应的展示颜色
func Color(p Period, u Usage) string {
	switch TierOf(u) {
	case TierAlert:
		return "red"
	case TierWarning:
		return "orange"
	default:
		return p.BaseColor()
	}
}

// PeriodValues 三个周期的数值（限额或已用量）
type PeriodValues struct {
	Daily  int64 `json:"daily"`
	Weekly int64 `json:"weekly"`
	Total  int64 `json:"total"`
}

// Get 取指定周期的值
func (v PeriodValues) Get(p Period) int64 {
	switch p {
	case PeriodDaily:
		return v.Daily
	case PeriodWeekly:
		return v.Weekly
	case PeriodTotal:
		return v.Total
	}
	return 0
}

// PeriodUsage 单个周期的聚合结果
type PeriodUsage struct {
	Period Period
	Used   int64
	Limit  int64
	Usage  Usage
	Tier   Tier
	Color  string
}

// Aggregate 逐周期聚合用量；limits 为 nil 时所有周期视为不限制
func Aggregate(limits *PeriodValues, used PeriodValues) []PeriodUsage {
	result := make([]PeriodUsage, 0, len(Periods))
	for _, p := range Periods {
		var limit int64
		if limits != nil {
			limit = limits.Get(p)
		}
		u := UsagePercent(used.Get(p), limit)
		result = append(result, PeriodUsage{
			Period: p,
			Used:   used.Get(p),
			Limit:  limit,
			Usage:  u,
			Tier:   TierOf(u),
			Color:  Color(p, u),
		})
	}
	return result
}

// PeriodKey 计算周期计数器的 key 后缀
// daily: 2006-01-02，weekly: ISO 周 2006-W01，total: all
func PeriodKey(p Period, now time.Time, loc *time.Location) string {
	t := now.In(loc)
	switch p {
	case PeriodDaily:
		return t.Format("2006-01-02")
	case PeriodWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	default:
		return "all"
	}
}

// NextReset 周期的下一个重置时间；total 周期不重置，返回零值
func NextReset(p Period, now time.Time, loc *time.Location) time.Time {
	t := now.In(loc)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	switch p {
	case PeriodDaily:
		return midnight.AddDate(0, 0, 1)
	case PeriodWeekly:
		// 周一 00:00 重置
		offset := (8 - int(t.Weekday())) % 7
		if offset == 0 {
			offset = 7
		}
		return midnight.AddDate(0, 0, offset)
	default:
		return time.Time{}
	}
}
