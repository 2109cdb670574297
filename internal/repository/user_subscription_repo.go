package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/pkg/subscription"
)

type UserSubscriptionRepository struct {
	db *gorm.DB
}

func NewUserSubscriptionRepository(db *gorm.DB) *UserSubscriptionRepository {
	return &UserSubscriptionRepository{db: db}
}

func (r *UserSubscriptionRepository) WithTx(tx *gorm.DB) *UserSubscriptionRepository {
	return &UserSubscriptionRepository{db: tx}
}

// Transaction 开启事务
func (r *UserSubscriptionRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func (r *UserSubscriptionRepository) Create(us *model.UserSubscription) error {
	return r.db.Omit("SubscriptionInfo").Create(us).Error
}

func (r *UserSubscriptionRepository) GetByID(id int64) (*model.UserSubscription, error) {
	var us model.UserSubscription
	if err := r.db.Preload("SubscriptionInfo").Where("id = ?", id).First(&us).Error; err != nil {
		return nil, err
	}
	return &us, nil
}

// GetByIDForUpdate 加行锁读取
func (r *UserSubscriptionRepository) GetByIDForUpdate(id int64) (*model.UserSubscription, error) {
	var us model.UserSubscription
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&us).Error
	if err != nil {
		return nil, err
	}
	return &us, nil
}

// GetActiveByUserID 用户当前生效的订阅（激活且未到期）
func (r *UserSubscriptionRepository) GetActiveByUserID(userID, now int64) (*model.UserSubscription, error) {
	var us model.UserSubscription
	err := r.db.Preload("SubscriptionInfo").
		Where("user_id = ? AND status = ? AND expire_time > ?", userID, subscription.StatusActive, now).
		Order("id DESC").First(&us).Error
	if err != nil {
		return nil, err
	}
	return &us, nil
}

// ListActiveByUserIDForUpdate 锁定用户所有激活中的订阅
func (r *UserSubscriptionRepository) ListActiveByUserIDForUpdate(userID int64) ([]*model.UserSubscription, error) {
	var list []*model.UserSubscription
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND status = ?", userID, subscription.StatusActive).
		Find(&list).Error
	return list, err
}

// ListByUserID 分页列出用户订阅，最新的在前
func (r *UserSubscriptionRepository) ListByUserID(userID int64, page, pageSize int) ([]*model.UserSubscription, int64, error) {
	var list []*model.UserSubscription
	var total int64

	query := r.db.Model(&model.UserSubscription{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Preload("SubscriptionInfo").Order("id DESC").Offset(offset).Limit(pageSize).Find(&list).Error
	if err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

// TransitionStatus 仅当当前状态为 from 时更新为 to，返回是否更新成功
func (r *UserSubscriptionRepository) TransitionStatus(id int64, from, to subscription.Status) (bool, error) {
	result := r.db.Model(&model.UserSubscription{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *UserSubscriptionRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.UserSubscription{}).Where("id = ?", id).Updates(fields).Error
}

// ListDueForExpiry 已到期但仍为激活状态的订阅
func (r *UserSubscriptionRepository) ListDueForExpiry(now int64, limit int) ([]*model.UserSubscription, error) {
	var list []*model.UserSubscription
	err := r.db.Where("status = ? AND expire_time <= ?", subscription.StatusActive, now).
		Order("id ASC").Limit(limit).Find(&list).Error
	return list, err
}

// CountActiveByPlan 套餐下激活中的订阅数
func (r *UserSubscriptionRepository) CountActiveByPlan(planID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.UserSubscription{}).
		Where("subscription_id = ? AND status = ?", planID, subscription.StatusActive).
		Count(&count).Error
	return count, err
}

// ListActiveExclusive 开启专属分组的激活订阅，附带套餐
func (r *UserSubscriptionRepository) ListActiveExclusive(now int64) ([]*model.UserSubscription, error) {
	var list []*model.UserSubscription
	err := r.db.Preload("SubscriptionInfo").
		Select("user_subscriptions.*").
		Joins("JOIN subscriptions ON subscriptions.id = user_subscriptions.subscription_id").
		Where("user_subscriptions.status = ? AND user_subscriptions.expire_time > ? AND subscriptions.enable_exclusive_group = ?",
			subscription.StatusActive, now, true).
		Order("user_subscriptions.id DESC").
		Find(&list).Error
	return list, err
}
