package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/qs3c/subhub/internal/metrics"
	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/logger"
	"github.com/qs3c/subhub/internal/pkg/sticky"
	"github.com/qs3c/subhub/internal/repository"
)

var ErrInvalidSessionHash = errors.New("会话哈希不能为空")

// StickySessionService 渠道粘性会话的绑定、查询和释放
type StickySessionService struct {
	channelRepo *repository.ChannelRepository
	logRepo     *repository.LogRepository
	store       *sticky.Store
	log         *logrus.Entry
	now         func() time.Time
}

func NewStickySessionService(
	channelRepo *repository.ChannelRepository,
	logRepo *repository.LogRepository,
	store *sticky.Store,
) *StickySessionService {
	return &StickySessionService{
		channelRepo: channelRepo,
		logRepo:     logRepo,
		store:       store,
		log:         logger.WithComponent("sticky"),
		now:         time.Now,
	}
}

func (s *StickySessionService) channel(id int64) (*model.Channel, error) {
	ch, err := s.channelRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	return ch, nil
}

func stickyInfo(ch *model.Channel) *dto.StickySessionInfo {
	info := &dto.StickySessionInfo{
		ChannelID:   ch.ID,
		ChannelName: ch.Name,
		Enabled:     ch.StickySessionEnabled,
	}
	if ch.StickySessionEnabled {
		info.MaxCount = ch.StickySessionMaxCount
		info.TTLMinutes = ch.StickyTTLMinutes()
		info.DailyBindLimit = ch.StickySessionDailyBindLimit
	}
	return info
}

// List 单个渠道的会话列表，未开启时返回空列表
func (s *StickySessionService) List(ctx context.Context, channelID int64) (*dto.StickySessionInfo, error) {
	ch, err := s.channel(channelID)
	if err != nil {
		return nil, err
	}

	info := stickyInfo(ch)
	info.Sessions = []*sticky.Session{}
	if !ch.StickySessionEnabled {
		return info, nil
	}

	sessions, err := s.store.List(ctx, ch.ID)
	if err != nil {
		return nil, err
	}
	info.Sessions = sessions
	info.SessionCount = len(sessions)

	if info.DailyBindCount, err = s.store.DailyBindCount(ctx, ch.ID); err != nil {
		return nil, err
	}
	return info, nil
}

// Stats 所有开启粘性会话的渠道概况
func (s *StickySessionService) Stats(ctx context.Context) ([]*dto.StickySessionInfo, error) {
	channels, err := s.channelRepo.ListStickyEnabled()
	if err != nil {
		return nil, err
	}

	stats := make([]*dto.StickySessionInfo, 0, len(channels))
	for _, ch := range channels {
		info := stickyInfo(ch)
		if info.SessionCount, err = s.store.Count(ctx, ch.ID); err != nil {
			return nil, err
		}
		if info.DailyBindCount, err = s.store.DailyBindCount(ctx, ch.ID); err != nil {
			return nil, err
		}
		stats = append(stats, info)
	}
	return stats, nil
}

// Release 释放一条会话，会话不存在时也返回成功
func (s *StickySessionService) Release(ctx context.Context, adminID, channelID int64, sessionHash string) error {
	sessionHash = strings.TrimSpace(sessionHash)
	if sessionHash == "" {
		return ErrInvalidSessionHash
	}
	ch, err := s.channel(channelID)
	if err != nil {
		return err
	}

	ok, err := s.store.Release(ctx, ch.ID, sessionHash)
	if err != nil {
		return err
	}
	if ok {
		s.audit(adminID, fmt.Sprintf("释放渠道 %s(#%d) 的粘性会话 %s", ch.Name, ch.ID, sessionHash))
	}
	return nil
}

// ReleaseAll 释放渠道的全部会话，返回释放条数
func (s *StickySessionService) ReleaseAll(ctx context.Context, adminID, channelID int64) (int, error) {
	ch, err := s.channel(channelID)
	if err != nil {
		return 0, err
	}

	n, err := s.store.ReleaseAll(ctx, ch.ID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.audit(adminID, fmt.Sprintf("释放渠道 %s(#%d) 的全部粘性会话，共 %d 条", ch.Name, ch.ID, n))
	}
	return n, nil
}

// Resolve 会话当前绑定的可用渠道，返回 0 表示需要重新选择
// 绑定的渠道已禁用或关闭了粘性会话时顺带释放绑定
func (s *StickySessionService) Resolve(ctx context.Context, group, modelName, sessionID string) (int64, error) {
	hash := sticky.SessionHash(sessionID)
	if hash == "" {
		return 0, nil
	}

	sess, err := s.store.Get(ctx, group, modelName, hash)
	if err != nil || sess == nil {
		return 0, err
	}

	ch, err := s.channel(sess.ChannelID)
	if err != nil && !errors.Is(err, ErrChannelNotFound) {
		return 0, err
	}
	if ch == nil || ch.Status != model.ChannelStatusEnabled || !ch.StickySessionEnabled {
		if _, err := s.store.Release(ctx, sess.ChannelID, hash); err != nil {
			return 0, err
		}
		return 0, nil
	}

	if err := s.store.Renew(ctx, group, modelName, hash, ch.StickyTTL()); err != nil {
		s.log.WithError(err).WithField("channel_id", ch.ID).Warn("failed to renew sticky session")
	}
	return ch.ID, nil
}

// Bind 扣费成功后把会话绑定到本次使用的渠道，达到渠道上限时不绑定
func (s *StickySessionService) Bind(ctx context.Context, req *dto.ConsumeRequest) (bool, error) {
	hash := sticky.SessionHash(req.SessionID)
	if hash == "" || req.ChannelID <= 0 {
		return false, nil
	}

	ch, err := s.channel(req.ChannelID)
	if err != nil {
		return false, err
	}
	if ch.Status != model.ChannelStatusEnabled || !ch.StickySessionEnabled {
		return false, nil
	}

	err = s.store.Bind(ctx, &sticky.Session{
		SessionHash: hash,
		ChannelID:   ch.ID,
		Group:       req.Group,
		Model:       req.ModelName,
		UserID:      req.UserID,
		TokenName:   req.TokenName,
	}, sticky.Limits{
		MaxCount:       ch.StickySessionMaxCount,
		DailyBindLimit: ch.StickySessionDailyBindLimit,
		TTL:            ch.StickyTTL(),
	})
	if errors.Is(err, sticky.ErrSessionLimit) || errors.Is(err, sticky.ErrDailyBindLimit) {
		metrics.StickyBindRejectedTotal.Inc()
		return false, nil
	}
	if err != nil {
		return false, err
	}
	metrics.StickyBindsTotal.Inc()
	return true, nil
}

// audit 管理操作日志，写入失败只告警
func (s *StickySessionService) audit(adminID int64, content string) {
	if s.logRepo == nil {
		return
	}
	entry := &model.Log{
		UserID:    adminID,
		CreatedAt: s.now().Unix(),
		Type:      model.LogTypeManage,
		Content:   content,
	}
	if err := s.logRepo.Create(entry); err != nil {
		s.log.WithError(err).Warn("failed to record sticky session audit log")
	}
}
