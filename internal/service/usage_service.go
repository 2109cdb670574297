package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/qs3c/subhub/internal/metrics"
	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/logger"
	"github.com/qs3c/subhub/internal/pkg/queue"
	"github.com/qs3c/subhub/internal/pkg/subscription"
	"github.com/qs3c/subhub/internal/repository"
)

var (
	ErrInsufficientBalance    = errors.New("用户余额不足")
	ErrExclusiveGroupMismatch = errors.New("专属分组不属于该用户")
	ErrGroupNotCovered        = errors.New("当前订阅不支持该分组")
	ErrInvalidQuotaSource     = errors.New("未知的额度来源")
)

// UsageService 按分组路由额度扣减：
// 签到分组只扣签到额度，专属分组只扣订阅额度，其余分组先订阅后余额
type UsageService struct {
	subSvc     *SubscriptionService
	quotaSvc   *QuotaService
	checkinSvc *CheckinService
	userRepo   *repository.UserRepository
	usRepo     *repository.UserSubscriptionRepository
	logSvc     *LogService
	usageQueue *queue.Queue
	sticky     *StickySessionService
	log        *logrus.Entry
	now        func() time.Time
}

func NewUsageService(
	subSvc *SubscriptionService,
	quotaSvc *QuotaService,
	checkinSvc *CheckinService,
	userRepo *repository.UserRepository,
	usRepo *repository.UserSubscriptionRepository,
	logSvc *LogService,
	usageQueue *queue.Queue,
	sticky *StickySessionService,
) *UsageService {
	return &UsageService{
		subSvc:     subSvc,
		quotaSvc:   quotaSvc,
		checkinSvc: checkinSvc,
		userRepo:   userRepo,
		usRepo:     usRepo,
		logSvc:     logSvc,
		usageQueue: usageQueue,
		sticky:     sticky,
		log:        logger.WithComponent("usage"),
		now:        time.Now,
	}
}

// ApplyDiscount 按折扣比例计算实际扣减额度，向上取整且至少为 1
func ApplyDiscount(amount int64, ratio float64) int64 {
	if amount <= 0 || ratio <= 0 || ratio >= 1 {
		return amount
	}
	n := decimal.NewFromInt(amount).Mul(decimal.NewFromFloat(ratio)).Ceil().IntPart()
	if n < 1 {
		n = 1
	}
	return n
}

// Consume 扣减额度，失败时写一条错误日志
func (s *UsageService) Consume(ctx context.Context, req *dto.ConsumeRequest) (*dto.ConsumeResponse, error) {
	resp, err := s.consume(ctx, req)
	if err != nil {
		metrics.QuotaRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		s.logSvc.RecordError(&model.Log{
			UserID:    req.UserID,
			Type:      model.LogTypeError,
			Content:   fmt.Sprintf("额度扣减失败: %v", err),
			ModelName: req.ModelName,
			TokenName: req.TokenName,
			Quota:     req.Quota,
			ChannelID: req.ChannelID,
			Group:     req.Group,
			IP:        req.IP,
			ErrorType: "quota",
			ErrorCode: rejectReason(err),
		})
		return nil, err
	}

	metrics.QuotaConsumedTotal.WithLabelValues(resp.Source).Add(float64(resp.Quota))

	if s.sticky != nil && req.SessionID != "" {
		bound, err := s.sticky.Bind(ctx, req)
		if err != nil {
			s.log.WithError(err).WithField("channel_id", req.ChannelID).Warn("failed to bind sticky session")
		}
		resp.StickyBound = bound
	}
	return resp, nil
}

func (s *UsageService) consume(ctx context.Context, req *dto.ConsumeRequest) (*dto.ConsumeResponse, error) {
	if req.Quota <= 0 {
		return nil, ErrInvalidQuotaAmount
	}

	user, err := s.userRepo.GetByID(req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	amount := ApplyDiscount(req.Quota, user.DiscountRatio)

	if req.Group == s.checkinSvc.Group() {
		if err := s.checkinSvc.Consume(ctx, user.ID, amount); err != nil {
			return nil, err
		}
		return &dto.ConsumeResponse{Source: dto.SourceCheckin, Quota: amount}, nil
	}

	if ownerID, ok := subscription.ParseExclusiveGroup(req.Group); ok {
		if ownerID != user.ID {
			return nil, ErrExclusiveGroupMismatch
		}
		return s.consumeSubscription(ctx, req, amount, true)
	}

	resp, err := s.consumeSubscription(ctx, req, amount, false)
	if err == nil {
		return resp, nil
	}
	if !errors.Is(err, ErrNoActiveSubscription) && !errors.Is(err, ErrGroupNotCovered) &&
		!errors.Is(err, ErrSubscriptionQuotaExceeded) {
		return nil, err
	}

	ok, err := s.userRepo.DecreaseQuota(user.ID, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInsufficientBalance
	}
	return &dto.ConsumeResponse{Source: dto.SourceBalance, Quota: amount}, nil
}

// consumeSubscription exclusive 为 true 时专属分组不检查套餐分组
func (s *UsageService) consumeSubscription(ctx context.Context, req *dto.ConsumeRequest, amount int64, exclusive bool) (*dto.ConsumeResponse, error) {
	us, err := s.subSvc.GetActiveSubscription(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if us.SubscriptionInfo == nil {
		return nil, ErrPlanNotFound
	}
	if exclusive && !us.SubscriptionInfo.EnableExclusiveGroup {
		return nil, ErrExclusiveNotAllowed
	}
	if !exclusive && !us.SubscriptionInfo.AllowsGroup(req.Group) {
		return nil, ErrGroupNotCovered
	}

	if err := s.quotaSvc.Consume(ctx, us, us.SubscriptionInfo.Limits(), amount); err != nil {
		return nil, err
	}

	if s.usageQueue != nil {
		msg := &queue.UsageMessage{
			UserID:             req.UserID,
			UserSubscriptionID: us.ID,
			Quota:              amount,
			ModelName:          req.ModelName,
			TokenName:          req.TokenName,
			Group:              req.Group,
			CreatedAt:          s.now().Unix(),
		}
		if err := s.usageQueue.Push(ctx, msg); err != nil {
			s.log.WithError(err).WithField("user_subscription_id", us.ID).Warn("failed to enqueue usage log")
		}
	}

	return &dto.ConsumeResponse{
		Source:             dto.SourceSubscription,
		Quota:              amount,
		UserSubscriptionID: us.ID,
	}, nil
}

// Return 把额度退回到扣减时的来源
func (s *UsageService) Return(ctx context.Context, req *dto.ReturnRequest) error {
	if req.Quota <= 0 {
		return ErrInvalidQuotaAmount
	}

	switch req.Source {
	case dto.SourceSubscription:
		us, err := s.usRepo.GetByID(req.UserSubscriptionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserSubscriptionNotFound
			}
			return err
		}
		if us.UserID != req.UserID {
			return ErrUserSubscriptionNotFound
		}
		return s.quotaSvc.Return(ctx, us.ID, req.Quota)
	case dto.SourceBalance:
		if _, err := s.userRepo.GetByID(req.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return s.userRepo.IncreaseQuota(req.UserID, req.Quota)
	case dto.SourceCheckin:
		return s.checkinSvc.Return(ctx, req.UserID, req.Quota)
	default:
		return ErrInvalidQuotaSource
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrSubscriptionQuotaExceeded):
		return "subscription_exceeded"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrCheckinQuotaInsufficient):
		return "checkin_exhausted"
	case errors.Is(err, ErrNoActiveSubscription):
		return "no_subscription"
	case errors.Is(err, ErrExclusiveGroupMismatch), errors.Is(err, ErrExclusiveNotAllowed):
		return "exclusive_denied"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	default:
		return "other"
	}
}
