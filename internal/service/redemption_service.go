package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/qs3c/subhub/internal/metrics"
	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/cache"
	"github.com/qs3c/subhub/internal/pkg/logger"
	"github.com/qs3c/subhub/internal/pkg/pubsub"
	"github.com/qs3c/subhub/internal/pkg/quota"
	"github.com/qs3c/subhub/internal/pkg/subscription"
	"github.com/qs3c/subhub/internal/repository"
)

var (
	ErrRedemptionNotFound   = errors.New("无效的兑换码")
	ErrRedemptionUsed       = errors.New("兑换码已被使用")
	ErrRedemptionDisabled   = errors.New("兑换码已禁用")
	ErrRedemptionExpired    = errors.New("兑换码已过期")
	ErrInvalidCodeName      = errors.New("兑换码名称长度必须在 1-20 之间")
	ErrInvalidCodeCount     = errors.New("生成数量必须在 1-100 之间")
	ErrInvalidCodeExpiry    = errors.New("过期时间不能早于当前时间")
	ErrSubscriptionConflict = errors.New("您已有生效中的订阅，兑换新订阅将替换当前订阅")
)

const maxCodesPerBatch = 100

// SubscriptionConflictError 兑换订阅码时已有生效订阅，带上现有订阅供前端确认
type SubscriptionConflictError struct {
	Existing *model.UserSubscription
}

func (e *SubscriptionConflictError) Error() string {
	return ErrSubscriptionConflict.Error()
}

func (e *SubscriptionConflictError) Is(target error) bool {
	return target == ErrSubscriptionConflict
}

// Info 冲突详情
func (e *SubscriptionConflictError) Info() *dto.ConflictInfo {
	info := &dto.ConflictInfo{
		UserSubscriptionID: e.Existing.ID,
		SubscriptionID:     e.Existing.SubscriptionID,
		ExpireTime:         e.Existing.ExpireTime,
	}
	if e.Existing.SubscriptionInfo != nil {
		info.SubscriptionName = e.Existing.SubscriptionInfo.Name
	}
	return info
}

type RedemptionService struct {
	redemptionRepo *repository.RedemptionRepository
	planRepo       *repository.SubscriptionRepository
	usRepo         *repository.UserSubscriptionRepository
	userRepo       *repository.UserRepository
	channelRepo    *repository.ChannelRepository
	logRepo        *repository.LogRepository
	cache          *cache.SubscriptionCache
	publisher      *pubsub.Publisher
	log            *logrus.Entry
	now            func() time.Time
}

func NewRedemptionService(
	redemptionRepo *repository.RedemptionRepository,
	planRepo *repository.SubscriptionRepository,
	usRepo *repository.UserSubscriptionRepository,
	userRepo *repository.UserRepository,
	channelRepo *repository.ChannelRepository,
	logRepo *repository.LogRepository,
	subCache *cache.SubscriptionCache,
	publisher *pubsub.Publisher,
) *RedemptionService {
	return &RedemptionService{
		redemptionRepo: redemptionRepo,
		planRepo:       planRepo,
		usRepo:         usRepo,
		userRepo:       userRepo,
		channelRepo:    channelRepo,
		logRepo:        logRepo,
		cache:          subCache,
		publisher:      publisher,
		log:            logger.WithComponent("redemption"),
		now:            time.Now,
	}
}

func newCodeKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *RedemptionService) validateBatch(name string, count int, expiredTime int64) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > 20 {
		return "", ErrInvalidCodeName
	}
	if count < 1 || count > maxCodesPerBatch {
		return "", ErrInvalidCodeCount
	}
	if expiredTime != 0 && expiredTime < s.now().Unix() {
		return "", ErrInvalidCodeExpiry
	}
	return name, nil
}

// GenerateSubscriptionCodes 批量生成订阅兑换码，返回兑换码列表
func (s *RedemptionService) GenerateSubscriptionCodes(adminID int64, req *dto.GenerateRedemptionRequest) ([]string, error) {
	name, err := s.validateBatch(req.Name, req.Count, req.ExpiredTime)
	if err != nil {
		return nil, err
	}

	plan, err := s.planRepo.GetByID(req.SubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if plan.Status != subscription.PlanEnabled {
		return nil, ErrPlanDisabled
	}

	return s.createBatch(req.Count, func() *model.Redemption {
		return &model.Redemption{
			UserID:         adminID,
			Key:            newCodeKey(),
			Name:           name,
			Type:           model.RedemptionTypeSubscription,
			Status:         model.RedemptionStatusEnabled,
			SubscriptionID: plan.ID,
			ExpiredTime:    req.ExpiredTime,
		}
	})
}

// GenerateQuotaCodes 批量生成余额充值码
func (s *RedemptionService) GenerateQuotaCodes(adminID int64, req *dto.GenerateQuotaCodeRequest) ([]string, error) {
	name, err := s.validateBatch(req.Name, req.Count, req.ExpiredTime)
	if err != nil {
		return nil, err
	}
	if req.Quota <= 0 {
		return nil, ErrInvalidQuotaAmount
	}

	return s.createBatch(req.Count, func() *model.Redemption {
		return &model.Redemption{
			UserID:      adminID,
			Key:         newCodeKey(),
			Name:        name,
			Type:        model.RedemptionTypeQuota,
			Status:      model.RedemptionStatusEnabled,
			Quota:       req.Quota,
			ExpiredTime: req.ExpiredTime,
		}
	})
}

func (s *RedemptionService) createBatch(count int, build func() *model.Redemption) ([]string, error) {
	items := make([]*model.Redemption, 0, count)
	keys := make([]string, 0, count)
	for i := 0; i < count; i++ {
		item := build()
		items = append(items, item)
		keys = append(keys, item.Key)
	}
	if err := s.redemptionRepo.CreateBatch(items); err != nil {
		return nil, fmt.Errorf("failed to create redemption codes: %w", err)
	}
	return keys, nil
}

func (s *RedemptionService) List(keyword string, page, pageSize int) ([]*model.Redemption, int64, error) {
	return s.redemptionRepo.List(strings.TrimSpace(keyword), page, pageSize)
}

// DeleteInvalid 清理已使用、已禁用、已过期的兑换码
func (s *RedemptionService) DeleteInvalid() (int64, error) {
	return s.redemptionRepo.DeleteInvalid(s.now().Unix())
}

// Redeem 兑换。订阅码遇到已生效订阅时，未确认覆盖返回 *SubscriptionConflictError 且不做任何修改
func (s *RedemptionService) Redeem(ctx context.Context, userID int64, req *dto.TopUpRequest) (*dto.TopUpResponse, error) {
	key := strings.TrimSpace(req.Key)
	if key == "" {
		return nil, ErrRedemptionNotFound
	}

	now := s.now()
	var (
		resp     dto.TopUpResponse
		events   []*pubsub.SubscriptionEvent
		codeType = model.RedemptionTypeQuota
	)

	err := s.usRepo.Transaction(func(tx *gorm.DB) error {
		code, err := s.redemptionRepo.WithTx(tx).GetByKeyForUpdate(key)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRedemptionNotFound
			}
			return err
		}
		codeType = code.Type

		switch code.Status {
		case model.RedemptionStatusUsed:
			return ErrRedemptionUsed
		case model.RedemptionStatusDisabled:
			return ErrRedemptionDisabled
		}
		if code.IsExpiredAt(now.Unix()) {
			return ErrRedemptionExpired
		}

		resp.Type = code.Type
		switch code.Type {
		case model.RedemptionTypeSubscription:
			evts, err := s.redeemPlan(tx, userID, code, req.ForceOverride, now, &resp)
			if err != nil {
				return err
			}
			events = evts
		default:
			if err := s.userRepo.WithTx(tx).IncreaseQuota(userID, code.Quota); err != nil {
				return err
			}
			resp.Quota = code.Quota
		}

		ok, err := s.redemptionRepo.WithTx(tx).MarkUsed(code.ID, userID, now.Unix())
		if err != nil {
			return err
		}
		if !ok {
			return ErrRedemptionUsed
		}
		return nil
	})

	typeLabel := redemptionTypeLabel(codeType)
	if err != nil {
		result := "failed"
		if errors.Is(err, ErrSubscriptionConflict) {
			result = "conflict"
		}
		metrics.RedemptionsTotal.WithLabelValues(typeLabel, result).Inc()
		return nil, err
	}
	metrics.RedemptionsTotal.WithLabelValues(typeLabel, "success").Inc()

	s.recordTopup(userID, &resp, now)
	if resp.Type == model.RedemptionTypeSubscription {
		invalidateAndPublish(ctx, s.cache, s.publisher, s.log, userID, events)
	}
	return &resp, nil
}

func (s *RedemptionService) redeemPlan(tx *gorm.DB, userID int64, code *model.Redemption, force bool, now time.Time, resp *dto.TopUpResponse) ([]*pubsub.SubscriptionEvent, error) {
	plan, err := s.planRepo.WithTx(tx).GetByID(code.SubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if plan.Status != subscription.PlanEnabled {
		return nil, ErrPlanDisabled
	}

	usRepo := s.usRepo.WithTx(tx)
	active, err := usRepo.ListActiveByUserIDForUpdate(userID)
	if err != nil {
		return nil, err
	}
	if !force {
		for _, us := range active {
			if us.IsExpiredAt(now.Unix()) {
				continue
			}
			existing, err := usRepo.GetByID(us.ID)
			if err != nil {
				return nil, err
			}
			return nil, &SubscriptionConflictError{Existing: existing}
		}
	}

	events, err := closeActive(tx, s.usRepo, s.channelRepo, userID, now.Unix())
	if err != nil {
		return nil, err
	}
	for _, evt := range events {
		if evt.Type == pubsub.EventSuperseded {
			resp.Superseded++
		}
	}

	created, err := activate(tx, s.usRepo, userID, plan, plan.DurationDays, model.SubscriptionSourceRedemption, now)
	if err != nil {
		return nil, err
	}

	resp.UserSubscriptionID = created.ID
	resp.SubscriptionName = plan.Name
	resp.ExpireTime = created.ExpireTime
	return append(events, newEvent(pubsub.EventRedeemed, created, now)), nil
}

func (s *RedemptionService) recordTopup(userID int64, resp *dto.TopUpResponse, now time.Time) {
	content := fmt.Sprintf("兑换订阅 %s，到期时间 %s", resp.SubscriptionName,
		time.Unix(resp.ExpireTime, 0).Format("2006-01-02 15:04:05"))
	if resp.Type != model.RedemptionTypeSubscription {
		content = fmt.Sprintf("通过兑换码充值 %s", quota.ToDisplay(resp.Quota, quota.ModeDollars))
	}

	entry := &model.Log{
		UserID:    userID,
		CreatedAt: now.Unix(),
		Type:      model.LogTypeTopup,
		Content:   content,
		Quota:     resp.Quota,
	}
	if err := s.logRepo.Create(entry); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to record topup log")
	}
}

func redemptionTypeLabel(t int) string {
	if t == model.RedemptionTypeSubscription {
		return "subscription"
	}
	return "quota"
}
