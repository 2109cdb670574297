package service

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/pkg/logger"
	"github.com/qs3c/subhub/internal/repository"
)

var ErrLogNotFound = errors.New("日志不存在")

type LogService struct {
	logRepo *repository.LogRepository
	log     *logrus.Entry
	now     func() time.Time
}

func NewLogService(logRepo *repository.LogRepository) *LogService {
	return &LogService{
		logRepo: logRepo,
		log:     logger.WithComponent("log"),
		now:     time.Now,
	}
}

func (s *LogService) List(f repository.LogFilter, page, pageSize int) ([]*model.Log, int64, error) {
	return s.logRepo.List(f, page, pageSize)
}

func (s *LogService) Delete(id int64) error {
	ok, err := s.logRepo.Delete(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLogNotFound
	}
	return nil
}

// DeleteBatch 返回删除条数
func (s *LogService) DeleteBatch(ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.logRepo.DeleteBatch(ids)
}

// ClearErrors 清空全部错误日志
func (s *LogService) ClearErrors() (int64, error) {
	return s.logRepo.DeleteByType(model.LogTypeError)
}

// RecordError 写错误日志，写失败只打日志不影响调用方
func (s *LogService) RecordError(entry *model.Log) {
	entry.Type = model.LogTypeError
	if entry.CreatedAt == 0 {
		entry.CreatedAt = s.now().Unix()
	}
	if err := s.logRepo.Create(entry); err != nil {
		s.log.WithError(err).WithField("user_id", entry.UserID).Error("failed to record error log")
	}
}

// ListSubscriptionLogs 用户的订阅消费记录
func (s *LogService) ListSubscriptionLogs(userID int64, page, pageSize int) ([]*model.SubscriptionLog, int64, error) {
	return s.logRepo.ListSubscriptionLogs(userID, page, pageSize)
}
