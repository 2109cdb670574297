package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/subhub/internal/model"
)

// LogFilter 日志查询条件，零值字段不参与过滤
type LogFilter struct {
	Type           int
	UserID         int64
	Username       string
	TokenName      string
	ModelName      string
	StartTimestamp int64
	EndTimestamp   int64
	ChannelID      int64
	Group          string
	IP             string
	ErrorCode      string
	ErrorType      string
	StatusCode     int
	Content        string
}

type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Create(log *model.Log) error {
	return r.db.Create(log).Error
}

func (r *LogRepository) applyFilter(query *gorm.DB, f LogFilter) *gorm.DB {
	if f.Type != model.LogTypeUnknown {
		query = query.Where("type = ?", f.Type)
	}
	if f.UserID != 0 {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.Username != "" {
		query = query.Where("username = ?", f.Username)
	}
	if f.TokenName != "" {
		query = query.Where("token_name = ?", f.TokenName)
	}
	if f.ModelName != "" {
		query = query.Where("model_name LIKE ?", "%"+f.ModelName+"%")
	}
	if f.StartTimestamp != 0 {
		query = query.Where("created_at >= ?", f.StartTimestamp)
	}
	if f.EndTimestamp != 0 {
		query = query.Where("created_at <= ?", f.EndTimestamp)
	}
	if f.ChannelID != 0 {
		query = query.Where("channel_id = ?", f.ChannelID)
	}
	if f.Group != "" {
		query = query.Where("`group` = ?", f.Group)
	}
	if f.IP != "" {
		query = query.Where("ip = ?", f.IP)
	}
	if f.ErrorCode != "" {
		query = query.Where("error_code = ?", f.ErrorCode)
	}
	if f.ErrorType != "" {
		query = query.Where("error_type = ?", f.ErrorType)
	}
	if f.StatusCode != 0 {
		query = query.Where("status_code = ?", f.StatusCode)
	}
	if f.Content != "" {
		query = query.Where("content LIKE ?", "%"+f.Content+"%")
	}
	return query
}

// List 按条件分页查询日志，最新的在前
func (r *LogRepository) List(f LogFilter, page, pageSize int) ([]*model.Log, int64, error) {
	var logs []*model.Log
	var total int64

	query := r.applyFilter(r.db.Model(&model.Log{}), f)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// Delete 删除单条日志
func (r *LogRepository) Delete(id int64) (bool, error) {
	result := r.db.Delete(&model.Log{}, id)
	return result.RowsAffected > 0, result.Error
}

// DeleteBatch 批量删除，返回删除条数
func (r *LogRepository) DeleteBatch(ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Where("id IN ?", ids).Delete(&model.Log{})
	return result.RowsAffected, result.Error
}

// DeleteByType 清空某类日志
func (r *LogRepository) DeleteByType(logType int) (int64, error) {
	result := r.db.Where("type = ?", logType).Delete(&model.Log{})
	return result.RowsAffected, result.Error
}

// CreateSubscriptionLog 记录订阅额度消费
func (r *LogRepository) CreateSubscriptionLog(log *model.SubscriptionLog) error {
	return r.db.Create(log).Error
}

// ListSubscriptionLogs 用户的订阅消费记录
func (r *LogRepository) ListSubscriptionLogs(userID int64, page, pageSize int) ([]*model.SubscriptionLog, int64, error) {
	var logs []*model.SubscriptionLog
	var total int64

	query := r.db.Model(&model.SubscriptionLog{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
