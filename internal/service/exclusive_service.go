package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/subscription"
	"github.com/qs3c/subhub/internal/repository"
)

var (
	ErrExclusiveNotAllowed = errors.New("用户没有开启专属分组的生效订阅")
	ErrChannelNotFound     = errors.New("渠道不存在")
	ErrChannelDisabled     = errors.New("渠道已禁用")
	ErrChannelAlreadyBound = errors.New("该渠道已绑定")
)

// ExclusiveService 专属渠道绑定
type ExclusiveService struct {
	usRepo      *repository.UserSubscriptionRepository
	userRepo    *repository.UserRepository
	channelRepo *repository.ChannelRepository
	subSvc      *SubscriptionService
	now         func() time.Time
}

func NewExclusiveService(
	usRepo *repository.UserSubscriptionRepository,
	userRepo *repository.UserRepository,
	channelRepo *repository.ChannelRepository,
	subSvc *SubscriptionService,
) *ExclusiveService {
	return &ExclusiveService{
		usRepo:      usRepo,
		userRepo:    userRepo,
		channelRepo: channelRepo,
		subSvc:      subSvc,
		now:         time.Now,
	}
}

// SelfStatus 当前用户的专属分组状态
func (s *ExclusiveService) SelfStatus(ctx context.Context, userID int64) (*dto.ExclusiveSelfResponse, error) {
	resp := &dto.ExclusiveSelfResponse{GroupName: subscription.ExclusiveGroupName(userID)}

	us, err := s.subSvc.GetActiveSubscription(ctx, userID)
	if err != nil && !errors.Is(err, ErrNoActiveSubscription) {
		return nil, err
	}
	resp.HasPermission = us != nil && us.SubscriptionInfo != nil && us.SubscriptionInfo.EnableExclusiveGroup

	count, err := s.channelRepo.CountBindingsByUser(userID)
	if err != nil {
		return nil, err
	}
	resp.HasChannels = count > 0
	return resp, nil
}

// ListUsers 拥有专属分组权限的用户
func (s *ExclusiveService) ListUsers() ([]*dto.ExclusiveUser, error) {
	subs, err := s.usRepo.ListActiveExclusive(s.now().Unix())
	if err != nil {
		return nil, err
	}

	// 每个用户只取最新一条
	seen := make(map[int64]bool)
	var latest []*model.UserSubscription
	var ids []int64
	for _, us := range subs {
		if seen[us.UserID] {
			continue
		}
		seen[us.UserID] = true
		latest = append(latest, us)
		ids = append(ids, us.UserID)
	}

	users, err := s.userRepo.ListByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	result := make([]*dto.ExclusiveUser, 0, len(latest))
	for _, us := range latest {
		count, err := s.channelRepo.CountBindingsByUser(us.UserID)
		if err != nil {
			return nil, err
		}
		item := &dto.ExclusiveUser{
			UserID:             us.UserID,
			UserSubscriptionID: us.ID,
			ExpireTime:         us.ExpireTime,
			GroupName:          subscription.ExclusiveGroupName(us.UserID),
			ChannelCount:       count,
		}
		if u, ok := byID[us.UserID]; ok {
			item.Username = u.Username
			item.DisplayName = u.DisplayName
		}
		if us.SubscriptionInfo != nil {
			item.SubscriptionName = us.SubscriptionInfo.Name
		}
		result = append(result, item)
	}
	return result, nil
}

// ListUserChannels 用户已绑定的渠道
func (s *ExclusiveService) ListUserChannels(userID int64) ([]*model.UserSubscriptionChannel, error) {
	return s.channelRepo.ListBindingsByUser(userID)
}

// AvailableChannels 可绑定的渠道（全部启用渠道）
func (s *ExclusiveService) AvailableChannels() ([]*model.Channel, error) {
	return s.channelRepo.ListEnabled()
}

// Bind 绑定渠道：写入绑定记录并把专属分组加入渠道分组
func (s *ExclusiveService) Bind(ctx context.Context, userID, channelID int64) (*model.UserSubscriptionChannel, error) {
	us, err := s.usRepo.GetActiveByUserID(userID, s.now().Unix())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExclusiveNotAllowed
		}
		return nil, err
	}
	if us.SubscriptionInfo == nil || !us.SubscriptionInfo.EnableExclusiveGroup {
		return nil, ErrExclusiveNotAllowed
	}

	var binding *model.UserSubscriptionChannel
	err = s.channelRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.channelRepo.WithTx(tx)

		ch, err := repo.GetByID(channelID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChannelNotFound
			}
			return err
		}
		if ch.Status != model.ChannelStatusEnabled {
			return ErrChannelDisabled
		}

		exists, err := repo.BindingExists(userID, channelID)
		if err != nil {
			return err
		}
		if exists {
			return ErrChannelAlreadyBound
		}

		binding = &model.UserSubscriptionChannel{
			UserID:             userID,
			ChannelID:          channelID,
			UserSubscriptionID: us.ID,
		}
		if err := repo.CreateBinding(binding); err != nil {
			return err
		}

		group := subscription.ExclusiveGroupName(userID)
		if ch.HasGroup(group) {
			return nil
		}
		return repo.UpdateGroup(ch.ID, ch.AddGroup(group))
	})
	if err != nil {
		return nil, err
	}
	return binding, nil
}

// Unbind 解绑渠道，没有绑定时也视为成功
func (s *ExclusiveService) Unbind(ctx context.Context, userID, channelID int64) error {
	return s.channelRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.channelRepo.WithTx(tx)
		if _, err := repo.DeleteBinding(userID, channelID); err != nil {
			return err
		}
		return removeChannelGroup(repo, channelID, subscription.ExclusiveGroupName(userID))
	})
}
