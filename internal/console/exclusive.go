package console

import (
	"context"
	"errors"
	"sort"

	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/pkg/subscription"
)

// ErrChannelAlreadyBound 渠道已在本地绑定列表中
var ErrChannelAlreadyBound = errors.New("该渠道已绑定")

// HasExclusiveAffordance 是否展示专属分组入口：存在激活中且套餐开启专属分组的订阅
func HasExclusiveAffordance(subs []*model.UserSubscription) bool {
	for _, us := range subs {
		if us == nil || us.Status != subscription.StatusActive {
			continue
		}
		if us.SubscriptionInfo != nil && us.SubscriptionInfo.EnableExclusiveGroup {
			return true
		}
	}
	return false
}

// BindingSet 客户端已知的绑定集合，只用于交互提示，服务端仍会校验
type BindingSet struct {
	byChannel map[int64]*model.UserSubscriptionChannel
}

func NewBindingSet(bindings []*model.UserSubscriptionChannel) BindingSet {
	set := BindingSet{byChannel: make(map[int64]*model.UserSubscriptionChannel, len(bindings))}
	for _, b := range bindings {
		if b != nil {
			set.byChannel[b.ChannelID] = b
		}
	}
	return set
}

func (s BindingSet) Contains(channelID int64) bool {
	_, ok := s.byChannel[channelID]
	return ok
}

func (s BindingSet) Len() int {
	return len(s.byChannel)
}

// Bindings 按渠道 ID 升序
func (s BindingSet) Bindings() []*model.UserSubscriptionChannel {
	out := make([]*model.UserSubscriptionChannel, 0, len(s.byChannel))
	for _, b := range s.byChannel {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}

// ExclusiveAPI 专属渠道管理需要的服务端接口
type ExclusiveAPI interface {
	UserChannels(ctx context.Context, userID int64) ([]*model.UserSubscriptionChannel, error)
	BindChannel(ctx context.Context, userID, channelID int64) error
	UnbindChannel(ctx context.Context, userID, channelID int64) error
}

// ExclusiveManager 单个用户的专属渠道管理，每次变更后整体重新拉取
type ExclusiveManager struct {
	api      ExclusiveAPI
	userID   int64
	bindings BindingSet
}

func NewExclusiveManager(api ExclusiveAPI, userID int64) *ExclusiveManager {
	return &ExclusiveManager{
		api:      api,
		userID:   userID,
		bindings: NewBindingSet(nil),
	}
}

func (m *ExclusiveManager) UserID() int64 {
	return m.userID
}

func (m *ExclusiveManager) GroupName() string {
	return subscription.ExclusiveGroupName(m.userID)
}

func (m *ExclusiveManager) Bindings() BindingSet {
	return m.bindings
}

// Refresh 重新拉取绑定列表
func (m *ExclusiveManager) Refresh(ctx context.Context) error {
	list, err := m.api.UserChannels(ctx, m.userID)
	if err != nil {
		return err
	}
	m.bindings = NewBindingSet(list)
	return nil
}

// Add 绑定渠道，本地已存在时不发请求
func (m *ExclusiveManager) Add(ctx context.Context, channelID int64) error {
	if m.bindings.Contains(channelID) {
		return ErrChannelAlreadyBound
	}
	if err := m.api.BindChannel(ctx, m.userID, channelID); err != nil {
		return err
	}
	return m.Refresh(ctx)
}

// Remove 解绑渠道，不做本地校验
func (m *ExclusiveManager) Remove(ctx context.Context, channelID int64) error {
	if err := m.api.UnbindChannel(ctx, m.userID, channelID); err != nil {
		return err
	}
	return m.Refresh(ctx)
}
