package console

import (
	"fmt"
	"time"

	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/pkg/quota"
	"github.com/qs3c/subhub/internal/pkg/subscription"
)

const (
	unknownPlanName = "未知套餐"
	unlimitedText   = "不限"
	timeLayout      = "2006-01-02 15:04"
)

// UsagePanel 单个周期的用量条
type UsagePanel struct {
	Period    quota.Period
	Label     string
	Used      string
	Limit     string
	Percent   float64
	Unlimited bool
	Color     string
}

// Text 例如 "每日 1.2K / 10.0K (12.0%)"
func (p UsagePanel) Text() string {
	if p.Unlimited {
		return fmt.Sprintf("%s %s / %s", p.Label, p.Used, p.Limit)
	}
	return fmt.Sprintf("%s %s / %s (%.1f%%)", p.Label, p.Used, p.Limit, p.Percent)
}

// SubscriptionCard 订阅卡片
type SubscriptionCard struct {
	ID                  int64
	PlanName            string
	Description         string
	Status              subscription.Status
	Label               subscription.StatusLabel
	StartTime           string
	ExpireTime          string
	ShowExpiredBanner   bool
	ShowExclusiveBanner bool
	ExclusiveGroup      string
	// 只有激活中的订阅有用量条
	Panels []UsagePanel
}

// PlanView 订阅快照缺失时按字段给默认值：名称为未知套餐，限额不限
type PlanView struct {
	Name        string
	Description string
	Limits      quota.PeriodValues
	Exclusive   bool
}

func planView(us *model.UserSubscription) PlanView {
	if us.SubscriptionInfo == nil {
		return PlanView{Name: unknownPlanName}
	}
	plan := us.SubscriptionInfo
	view := PlanView{
		Name:        plan.Name,
		Description: plan.Description,
		Limits:      plan.Limits(),
		Exclusive:   plan.EnableExclusiveGroup,
	}
	if view.Name == "" {
		view.Name = unknownPlanName
	}
	return view
}

// NewSubscriptionCard 组装卡片，mode 决定额度显示为 token 数还是美元
func NewSubscriptionCard(us *model.UserSubscription, mode quota.Mode, loc *time.Location) SubscriptionCard {
	if loc == nil {
		loc = time.Local
	}
	plan := planView(us)
	card := SubscriptionCard{
		ID:                us.ID,
		PlanName:          plan.Name,
		Description:       plan.Description,
		Status:            us.Status,
		Label:             subscription.Label(us.Status),
		StartTime:         formatUnix(us.StartTime, loc),
		ExpireTime:        formatUnix(us.ExpireTime, loc),
		ShowExpiredBanner: subscription.ShowExpiredBanner(us.Status),
	}

	if plan.Exclusive && subscription.ShowExclusiveBanner(us.Status) {
		card.ShowExclusiveBanner = true
		card.ExclusiveGroup = subscription.ExclusiveGroupName(us.UserID)
	}

	if subscription.ShowUsagePanel(us.Status) {
		limits := plan.Limits
		for _, pu := range quota.Aggregate(&limits, us.Used()) {
			card.Panels = append(card.Panels, newUsagePanel(pu, mode))
		}
	}
	return card
}

func newUsagePanel(pu quota.PeriodUsage, mode quota.Mode) UsagePanel {
	panel := UsagePanel{
		Period:    pu.Period,
		Label:     pu.Period.Label(),
		Used:      quota.ToDisplay(pu.Used, mode),
		Limit:     unlimitedText,
		Percent:   pu.Usage.Percent,
		Unlimited: pu.Usage.Unlimited,
		Color:     pu.Color,
	}
	if !pu.Usage.Unlimited {
		panel.Limit = quota.ToDisplay(pu.Limit, mode)
	}
	return panel
}

// NewSubscriptionCards 按列表顺序组装
func NewSubscriptionCards(subs []*model.UserSubscription, mode quota.Mode, loc *time.Location) []SubscriptionCard {
	cards := make([]SubscriptionCard, 0, len(subs))
	for _, us := range subs {
		if us == nil {
			continue
		}
		cards = append(cards, NewSubscriptionCard(us, mode, loc))
	}
	return cards
}

func formatUnix(ts int64, loc *time.Location) string {
	if ts <= 0 {
		return "-"
	}
	return time.Unix(ts, 0).In(loc).Format(timeLayout)
}
