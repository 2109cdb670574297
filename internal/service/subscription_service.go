package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/qs3c/subhub/config"
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
	ErrPlanNotFound             = errors.New("套餐不存在")
	ErrPlanDisabled             = errors.New("套餐已禁用")
	ErrPlanInUse                = errors.New("套餐仍有生效中的订阅，无法删除")
	ErrInvalidPlanName          = errors.New("套餐名称长度必须在 1-64 之间")
	ErrInvalidPlanQuota         = errors.New("总额度必须大于 0，周期额度不能为负")
	ErrInvalidPlanGroups        = errors.New("至少需要一个允许的分组")
	ErrInvalidPlanDuration      = errors.New("订阅天数必须大于 0")
	ErrUserSubscriptionNotFound = errors.New("订阅记录不存在")
	ErrSubscriptionNotActive    = errors.New("只能操作激活中的订阅")
	ErrInvalidExpireTime        = errors.New("到期时间必须晚于当前时间和开始时间")
	ErrNothingToUpdate          = errors.New("没有需要更新的内容")
	ErrNoActiveSubscription     = errors.New("当前没有生效的订阅")
)

const expireBatchSize = 100

type SubscriptionService struct {
	planRepo    *repository.SubscriptionRepository
	usRepo      *repository.UserSubscriptionRepository
	userRepo    *repository.UserRepository
	channelRepo *repository.ChannelRepository
	logRepo     *repository.LogRepository
	quotaSvc    *QuotaService
	cache       *cache.SubscriptionCache
	publisher   *pubsub.Publisher
	cfg         *config.Config
	log         *logrus.Entry
	now         func() time.Time
	async       func(func())
}

func NewSubscriptionService(
	planRepo *repository.SubscriptionRepository,
	usRepo *repository.UserSubscriptionRepository,
	userRepo *repository.UserRepository,
	channelRepo *repository.ChannelRepository,
	logRepo *repository.LogRepository,
	quotaSvc *QuotaService,
	subCache *cache.SubscriptionCache,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *SubscriptionService {
	return &SubscriptionService{
		planRepo:    planRepo,
		usRepo:      usRepo,
		userRepo:    userRepo,
		channelRepo: channelRepo,
		logRepo:     logRepo,
		quotaSvc:    quotaSvc,
		cache:       subCache,
		publisher:   publisher,
		cfg:         cfg,
		log:         logger.WithComponent("subscription"),
		now:         time.Now,
		async:       func(fn func()) { go fn() },
	}
}

// ---------- 套餐 ----------

func (s *SubscriptionService) defaultDuration() int {
	if s.cfg != nil && s.cfg.Quota.DefaultDurationDay > 0 {
		return s.cfg.Quota.DefaultDurationDay
	}
	return 30
}

func (s *SubscriptionService) applyPlan(plan *model.Subscription, req *dto.PlanRequest) error {
	name := strings.TrimSpace(req.Name)
	if n := utf8.RuneCountInString(name); n == 0 || n > 64 {
		return ErrInvalidPlanName
	}
	if req.TotalQuotaLimit <= 0 || req.DailyQuotaLimit < 0 || req.WeeklyQuotaLimit < 0 {
		return ErrInvalidPlanQuota
	}

	groups := make(model.StringArray, 0, len(req.AllowedGroups))
	for _, g := range req.AllowedGroups {
		if g = strings.TrimSpace(g); g != "" && !groups.Contains(g) {
			groups = append(groups, g)
		}
	}
	if len(groups) == 0 {
		return ErrInvalidPlanGroups
	}

	duration := req.DurationDays
	if duration == 0 {
		duration = s.defaultDuration()
	}
	if duration < 0 {
		return ErrInvalidPlanDuration
	}

	status := subscription.PlanStatus(req.Status)
	if req.Status == 0 {
		status = subscription.PlanEnabled
	}

	plan.Name = name
	plan.Description = req.Description
	plan.DailyQuotaLimit = req.DailyQuotaLimit
	plan.WeeklyQuotaLimit = req.WeeklyQuotaLimit
	plan.TotalQuotaLimit = req.TotalQuotaLimit
	plan.DurationDays = duration
	plan.AllowedGroups = groups
	plan.Status = status
	plan.EnableExclusiveGroup = req.EnableExclusiveGroup
	return nil
}

// CreatePlan 创建套餐
func (s *SubscriptionService) CreatePlan(req *dto.PlanRequest) (*model.Subscription, error) {
	plan := &model.Subscription{}
	if err := s.applyPlan(plan, req); err != nil {
		return nil, err
	}
	if err := s.planRepo.Create(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// UpdatePlan 更新套餐，已开通的订阅按新限额计算
func (s *SubscriptionService) UpdatePlan(id int64, req *dto.PlanRequest) (*model.Subscription, error) {
	plan, err := s.GetPlan(id)
	if err != nil {
		return nil, err
	}
	if err := s.applyPlan(plan, req); err != nil {
		return nil, err
	}
	if err := s.planRepo.Update(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *SubscriptionService) GetPlan(id int64) (*model.Subscription, error) {
	plan, err := s.planRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

// DeletePlan 删除套餐，仍有激活订阅时拒绝
func (s *SubscriptionService) DeletePlan(id int64) error {
	if _, err := s.GetPlan(id); err != nil {
		return err
	}
	count, err := s.usRepo.CountActiveByPlan(id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrPlanInUse
	}
	return s.planRepo.Delete(id)
}

// ListPlans status 为 0 时不过滤
func (s *SubscriptionService) ListPlans(status subscription.PlanStatus, page, pageSize int) ([]*model.Subscription, int64, error) {
	return s.planRepo.List(status, page, pageSize)
}

// ---------- 用户订阅 ----------

// ListUserSubscriptions 用户订阅列表，附带当前周期用量
// 已到期但仍为激活状态的记录按已过期返回，并异步落库
func (s *SubscriptionService) ListUserSubscriptions(ctx context.Context, userID int64, page, pageSize int) ([]*model.UserSubscription, int64, error) {
	list, total, err := s.usRepo.ListByUserID(userID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	now := s.now().Unix()
	var due []*model.UserSubscription
	for _, us := range list {
		if us.Status == subscription.StatusActive && us.IsExpiredAt(now) {
			due = append(due, &model.UserSubscription{ID: us.ID, UserID: us.UserID, SubscriptionID: us.SubscriptionID})
			us.Status = subscription.StatusExpired
		}
	}
	if len(due) > 0 {
		s.async(func() {
			for _, us := range due {
				if _, err := s.expire(context.Background(), us); err != nil {
					s.log.WithError(err).WithField("user_subscription_id", us.ID).Warn("failed to persist expiry")
				}
			}
		})
	}

	if err := s.quotaSvc.FillUsage(ctx, list); err != nil {
		s.log.WithError(err).Warn("failed to read quota usage")
	}
	return list, total, nil
}

// GetActiveSubscription 用户当前生效的订阅，优先读缓存
func (s *SubscriptionService) GetActiveSubscription(ctx context.Context, userID int64) (*model.UserSubscription, error) {
	now := s.now().Unix()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.log.WithError(err).Warn("subscription cache read failed")
		} else if cached != nil && cached.Status == subscription.StatusActive && !cached.IsExpiredAt(now) {
			return cached, nil
		}
	}

	us, err := s.usRepo.GetActiveByUserID(userID, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, us); err != nil {
			s.log.WithError(err).Warn("subscription cache write failed")
		}
	}
	return us, nil
}

// GetQuotaStatus 某条订阅的周期用量与限额
func (s *SubscriptionService) GetQuotaStatus(ctx context.Context, userID, userSubscriptionID int64) (*dto.QuotaStatusResponse, error) {
	us, err := s.getOwned(s.usRepo, userID, userSubscriptionID)
	if err != nil {
		return nil, err
	}

	used, err := s.quotaSvc.GetUsage(ctx, us.ID)
	if err != nil {
		return nil, err
	}

	var limits quota.PeriodValues
	if us.SubscriptionInfo != nil {
		limits = us.SubscriptionInfo.Limits()
	}

	status := us.Status
	if status == subscription.StatusActive && us.IsExpiredAt(s.now().Unix()) {
		status = subscription.StatusExpired
	}

	return &dto.QuotaStatusResponse{
		UserSubscriptionID: us.ID,
		Status:             int(status),
		ExpireTime:         us.ExpireTime,
		Daily:              dto.QuotaPeriod{Used: used.Daily, Limit: limits.Daily, ResetAt: s.quotaSvc.ResetAt(quota.PeriodDaily)},
		Weekly:             dto.QuotaPeriod{Used: used.Weekly, Limit: limits.Weekly, ResetAt: s.quotaSvc.ResetAt(quota.PeriodWeekly)},
		Total:              dto.QuotaPeriod{Used: used.Total, Limit: limits.Total},
	}, nil
}

func (s *SubscriptionService) getOwned(repo *repository.UserSubscriptionRepository, userID, userSubscriptionID int64) (*model.UserSubscription, error) {
	us, err := repo.GetByID(userSubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserSubscriptionNotFound
		}
		return nil, err
	}
	if us.UserID != userID {
		return nil, ErrUserSubscriptionNotFound
	}
	return us, nil
}

// ---------- 管理员操作 ----------

// AdminGrant 为用户开通订阅，现有激活订阅被替换
func (s *SubscriptionService) AdminGrant(ctx context.Context, userID int64, req *dto.GrantSubscriptionRequest) (*model.UserSubscription, error) {
	if _, err := s.userRepo.GetByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var (
		created *model.UserSubscription
		events  []*pubsub.SubscriptionEvent
	)
	now := s.now()

	err := s.usRepo.Transaction(func(tx *gorm.DB) error {
		plan, err := s.planRepo.WithTx(tx).GetByID(req.SubscriptionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlanNotFound
			}
			return err
		}
		if plan.Status != subscription.PlanEnabled {
			return ErrPlanDisabled
		}

		closed, err := closeActive(tx, s.usRepo, s.channelRepo, userID, now.Unix())
		if err != nil {
			return err
		}
		events = append(events, closed...)

		duration := req.DurationDays
		if duration <= 0 {
			duration = plan.DurationDays
		}
		created, err = activate(tx, s.usRepo, userID, plan, duration, model.SubscriptionSourceAdmin, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	events = append(events, newEvent(pubsub.EventGranted, created, now))
	s.audit(userID, now, fmt.Sprintf("管理员开通订阅 #%d：套餐 %d，到期时间 %s", created.ID, created.SubscriptionID, s.formatAuditTime(created.ExpireTime)))
	s.afterChange(ctx, userID, events)
	return created, nil
}

// AdminUpdate 修改激活中的订阅：更换套餐和/或调整到期时间
func (s *SubscriptionService) AdminUpdate(ctx context.Context, userID, userSubscriptionID int64, req *dto.UpdateUserSubscriptionRequest) (*model.UserSubscription, error) {
	now := s.now()
	var changes []string

	err := s.usRepo.Transaction(func(tx *gorm.DB) error {
		usRepo := s.usRepo.WithTx(tx)
		us, err := usRepo.GetByIDForUpdate(userSubscriptionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserSubscriptionNotFound
			}
			return err
		}
		if us.UserID != userID {
			return ErrUserSubscriptionNotFound
		}
		if us.Status != subscription.StatusActive {
			return ErrSubscriptionNotActive
		}

		fields := map[string]interface{}{}
		if req.SubscriptionID != nil && *req.SubscriptionID != us.SubscriptionID {
			plan, err := s.planRepo.WithTx(tx).GetByID(*req.SubscriptionID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrPlanNotFound
				}
				return err
			}
			if plan.Status != subscription.PlanEnabled {
				return ErrPlanDisabled
			}
			fields["subscription_id"] = plan.ID
			changes = append(changes, fmt.Sprintf("套餐 %d -> %d", us.SubscriptionID, plan.ID))
			// 新套餐不带专属分组时收回已绑定的渠道
			if !plan.EnableExclusiveGroup {
				if err := releaseBindings(tx, s.channelRepo, us.UserID, us.ID); err != nil {
					return err
				}
			}
		}
		if req.ExpireTime != nil && *req.ExpireTime != us.ExpireTime {
			if *req.ExpireTime <= now.Unix() || *req.ExpireTime <= us.StartTime {
				return ErrInvalidExpireTime
			}
			fields["expire_time"] = *req.ExpireTime
			changes = append(changes, fmt.Sprintf("到期时间 %s -> %s", s.formatAuditTime(us.ExpireTime), s.formatAuditTime(*req.ExpireTime)))
		}
		if len(fields) == 0 {
			return ErrNothingToUpdate
		}

		return usRepo.UpdateFields(us.ID, fields)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.usRepo.GetByID(userSubscriptionID)
	if err != nil {
		return nil, err
	}
	s.audit(userID, now, fmt.Sprintf("管理员修改订阅 #%d：%s", updated.ID, strings.Join(changes, "，")))
	s.afterChange(ctx, userID, []*pubsub.SubscriptionEvent{newEvent(pubsub.EventUpdated, updated, now)})
	return updated, nil
}

// AdminCancel 取消激活中的订阅
func (s *SubscriptionService) AdminCancel(ctx context.Context, userID, userSubscriptionID int64) error {
	now := s.now()
	var cancelled *model.UserSubscription

	err := s.usRepo.Transaction(func(tx *gorm.DB) error {
		usRepo := s.usRepo.WithTx(tx)
		us, err := usRepo.GetByIDForUpdate(userSubscriptionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserSubscriptionNotFound
			}
			return err
		}
		if us.UserID != userID {
			return ErrUserSubscriptionNotFound
		}
		if !subscription.CanTransition(us.Status, subscription.StatusCancelled) {
			return ErrSubscriptionNotActive
		}

		ok, err := usRepo.TransitionStatus(us.ID, subscription.StatusActive, subscription.StatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSubscriptionNotActive
		}
		us.Status = subscription.StatusCancelled
		cancelled = us
		return releaseBindings(tx, s.channelRepo, us.UserID, us.ID)
	})
	if err != nil {
		return err
	}

	s.audit(userID, now, fmt.Sprintf("管理员取消订阅 #%d", cancelled.ID))
	s.afterChange(ctx, userID, []*pubsub.SubscriptionEvent{newEvent(pubsub.EventCancelled, cancelled, now)})
	return nil
}

// audit 记录管理员操作的系统日志，写入失败只告警
func (s *SubscriptionService) audit(userID int64, now time.Time, content string) {
	if s.logRepo == nil {
		return
	}
	entry := &model.Log{
		UserID:    userID,
		CreatedAt: now.Unix(),
		Type:      model.LogTypeSystem,
		Content:   content,
	}
	if err := s.logRepo.Create(entry); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("failed to record admin audit log")
	}
}

func (s *SubscriptionService) formatAuditTime(ts int64) string {
	loc := time.Local
	if s.cfg != nil {
		loc = s.cfg.Quota.Location()
	}
	return time.Unix(ts, 0).In(loc).Format("2006-01-02 15:04:05")
}

// ---------- 过期 ----------

// ExpireDue 把已到期的激活订阅置为已过期，返回处理条数
func (s *SubscriptionService) ExpireDue(ctx context.Context) (int, error) {
	count := 0
	for {
		due, err := s.usRepo.ListDueForExpiry(s.now().Unix(), expireBatchSize)
		if err != nil {
			return count, err
		}
		if len(due) == 0 {
			return count, nil
		}

		progressed := false
		for _, us := range due {
			ok, err := s.expire(ctx, us)
			if err != nil {
				return count, err
			}
			if ok {
				count++
				progressed = true
			}
		}
		if !progressed {
			return count, nil
		}
	}
}

// expire 单条订阅过期并回收专属渠道；已被其他流程处理时返回 false
func (s *SubscriptionService) expire(ctx context.Context, us *model.UserSubscription) (bool, error) {
	var ok bool
	err := s.usRepo.Transaction(func(tx *gorm.DB) error {
		var err error
		ok, err = s.usRepo.WithTx(tx).TransitionStatus(us.ID, subscription.StatusActive, subscription.StatusExpired)
		if err != nil || !ok {
			return err
		}
		return releaseBindings(tx, s.channelRepo, us.UserID, us.ID)
	})
	if err != nil || !ok {
		return false, err
	}

	us.Status = subscription.StatusExpired
	s.afterChange(ctx, us.UserID, []*pubsub.SubscriptionEvent{newEvent(pubsub.EventExpired, us, s.now())})
	return true, nil
}

// afterChange 事务提交后失效缓存并发布事件
func (s *SubscriptionService) afterChange(ctx context.Context, userID int64, events []*pubsub.SubscriptionEvent) {
	invalidateAndPublish(ctx, s.cache, s.publisher, s.log, userID, events)
}

// ---------- 事务内的共用步骤 ----------

// closeActive 关闭用户所有激活订阅：已到期的置为已过期，其余置为已替换
func closeActive(tx *gorm.DB, usRepo *repository.UserSubscriptionRepository, channelRepo *repository.ChannelRepository, userID, now int64) ([]*pubsub.SubscriptionEvent, error) {
	repo := usRepo.WithTx(tx)
	active, err := repo.ListActiveByUserIDForUpdate(userID)
	if err != nil {
		return nil, err
	}

	var events []*pubsub.SubscriptionEvent
	for _, us := range active {
		to, eventType := subscription.StatusSuperseded, pubsub.EventSuperseded
		if us.IsExpiredAt(now) {
			to, eventType = subscription.StatusExpired, pubsub.EventExpired
		}

		ok, err := repo.TransitionStatus(us.ID, subscription.StatusActive, to)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := releaseBindings(tx, channelRepo, userID, us.ID); err != nil {
			return nil, err
		}
		us.Status = to
		events = append(events, newEvent(eventType, us, time.Unix(now, 0)))
	}
	return events, nil
}

// activate 按套餐创建一条新的激活订阅
func activate(tx *gorm.DB, usRepo *repository.UserSubscriptionRepository, userID int64, plan *model.Subscription, durationDays int, source string, now time.Time) (*model.UserSubscription, error) {
	if durationDays <= 0 {
		durationDays = 30
	}
	us := &model.UserSubscription{
		UserID:         userID,
		SubscriptionID: plan.ID,
		Status:         subscription.StatusActive,
		StartTime:      now.Unix(),
		ExpireTime:     now.AddDate(0, 0, durationDays).Unix(),
		Source:         source,
	}
	if err := usRepo.WithTx(tx).Create(us); err != nil {
		return nil, err
	}
	us.SubscriptionInfo = plan
	return us, nil
}

// releaseBindings 删除订阅下的专属渠道绑定，并从渠道分组中移除该用户的专属分组
func releaseBindings(tx *gorm.DB, channelRepo *repository.ChannelRepository, userID, userSubscriptionID int64) error {
	repo := channelRepo.WithTx(tx)
	bindings, err := repo.ListBindingsBySubscription(userSubscriptionID)
	if err != nil {
		return err
	}

	group := subscription.ExclusiveGroupName(userID)
	for _, b := range bindings {
		if _, err := repo.DeleteBinding(b.UserID, b.ChannelID); err != nil {
			return err
		}
		if err := removeChannelGroup(repo, b.ChannelID, group); err != nil {
			return err
		}
	}
	return nil
}

func removeChannelGroup(repo *repository.ChannelRepository, channelID int64, group string) error {
	ch, err := repo.GetByID(channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if !ch.HasGroup(group) {
		return nil
	}
	return repo.UpdateGroup(ch.ID, ch.RemoveGroup(group))
}

func newEvent(eventType string, us *model.UserSubscription, now time.Time) *pubsub.SubscriptionEvent {
	return &pubsub.SubscriptionEvent{
		Type:               eventType,
		UserID:             us.UserID,
		UserSubscriptionID: us.ID,
		SubscriptionID:     us.SubscriptionID,
		Status:             int(us.Status),
		Timestamp:          now.Unix(),
	}
}

func invalidateAndPublish(ctx context.Context, c *cache.SubscriptionCache, p *pubsub.Publisher, log *logrus.Entry, userID int64, events []*pubsub.SubscriptionEvent) {
	if c != nil {
		if err := c.Invalidate(ctx, userID); err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("failed to invalidate subscription cache")
		}
	}
	for _, evt := range events {
		metrics.SubscriptionTransitionsTotal.WithLabelValues(evt.Type).Inc()
		if err := p.Publish(ctx, evt); err != nil {
			log.WithError(err).WithField("event", evt.Type).Warn("failed to publish subscription event")
		}
	}
}
