package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/subhub/internal/metrics"
	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/pkg/logger"
	"github.com/qs3c/subhub/internal/pkg/queue"
	"github.com/qs3c/subhub/internal/repository"
)

var ErrInvalidMessage = errors.New("invalid usage message")

// Processor 消费订阅用量队列并写入 subscription_logs
type Processor struct {
	logRepo      *repository.LogRepository
	log          *logrus.Entry
	popTimeout   time.Duration
	retryBackoff time.Duration
}

// NewProcessor 创建任务处理器
func NewProcessor(logRepo *repository.LogRepository) *Processor {
	return &Processor{
		logRepo:      logRepo,
		log:          logger.WithComponent("worker"),
		popTimeout:   5 * time.Second,
		retryBackoff: time.Second,
	}
}

// Process 写入一条订阅消费记录
func (p *Processor) Process(ctx context.Context, msg *queue.UsageMessage) error {
	if msg == nil || msg.UserID <= 0 || msg.UserSubscriptionID <= 0 || msg.Quota <= 0 {
		metrics.UsageLogsTotal.WithLabelValues("failed").Inc()
		return ErrInvalidMessage
	}

	createdAt := msg.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}

	entry := &model.SubscriptionLog{
		UserID:             msg.UserID,
		UserSubscriptionID: msg.UserSubscriptionID,
		Quota:              msg.Quota,
		ModelName:          msg.ModelName,
		TokenName:          msg.TokenName,
		Group:              msg.Group,
		CreatedAt:          createdAt,
	}
	if err := p.logRepo.CreateSubscriptionLog(entry); err != nil {
		metrics.UsageLogsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to write subscription log: %w", err)
	}

	metrics.UsageLogsTotal.WithLabelValues("ok").Inc()
	return nil
}

// Run 循环取队列消息直到 ctx 结束
func (p *Processor) Run(ctx context.Context, q *queue.Queue, workerID int) {
	log := p.log.WithField("worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			log.Info("Worker shutting down")
			return
		default:
		}

		msg, err := q.Pop(ctx, p.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("Failed to pop usage message")
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.retryBackoff):
			}
			continue
		}

		if msg == nil {
			continue // 超时，继续等待
		}

		if err := p.Process(ctx, msg); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"user_id":              msg.UserID,
				"user_subscription_id": msg.UserSubscriptionID,
			}).Error("Failed to process usage message")
		}
	}
}
