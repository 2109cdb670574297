package cron

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/subhub/internal/pkg/logger"
)

// Expirer 把到期的激活订阅标记为已过期
type Expirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// Purger 清理失效的兑换码
type Purger interface {
	DeleteInvalid() (int64, error)
}

type Service struct {
	expirer        Expirer
	purger         Purger
	expireInterval time.Duration
	purgeInterval  time.Duration
	log            *logrus.Entry
	stopChan       chan struct{}
}

func NewService(
	expirer Expirer,
	purger Purger,
	expireInterval time.Duration,
	purgeInterval time.Duration,
) *Service {
	if expireInterval <= 0 {
		expireInterval = 5 * time.Minute
	}
	if purgeInterval <= 0 {
		purgeInterval = 24 * time.Hour
	}
	return &Service{
		expirer:        expirer,
		purger:         purger,
		expireInterval: expireInterval,
		purgeInterval:  purgeInterval,
		log:            logger.WithComponent("cron"),
		stopChan:       make(chan struct{}),
	}
}

// Start 启动定时任务，启动时先跑一次过期扫描
func (s *Service) Start() {
	go s.runExpire()
	go s.runPurge()
	s.log.WithFields(logrus.Fields{
		"expire_interval": s.expireInterval.String(),
		"purge_interval":  s.purgeInterval.String(),
	}).Info("Cron service started")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	s.log.Info("Cron service stopped")
}

func (s *Service) runExpire() {
	s.expireSubscriptions()

	ticker := time.NewTicker(s.expireInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.expireSubscriptions()
		}
	}
}

func (s *Service) runPurge() {
	ticker := time.NewTicker(s.purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.purgeCodes()
		}
	}
}

// expireSubscriptions 返回本次过期的订阅数
func (s *Service) expireSubscriptions() int {
	if s.expirer == nil {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.expireInterval)
	defer cancel()

	n, err := s.expirer.ExpireDue(ctx)
	if err != nil {
		s.log.WithError(err).Error("Failed to expire subscriptions")
	}
	if n > 0 {
		s.log.WithField("count", n).Info("Expired subscriptions")
	}
	return n
}

// purgeCodes 返回删除的兑换码数
func (s *Service) purgeCodes() int64 {
	if s.purger == nil {
		return 0
	}

	n, err := s.purger.DeleteInvalid()
	if err != nil {
		s.log.WithError(err).Error("Failed to purge redemption codes")
		return 0
	}
	if n > 0 {
		s.log.WithField("count", n).Info("Purged invalid redemption codes")
	}
	return n
}

// RunNow 立即执行一轮（用于测试或手动触发）
func (s *Service) RunNow() (expired int, purged int64) {
	return s.expireSubscriptions(), s.purgeCodes()
}
