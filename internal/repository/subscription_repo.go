package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/pkg/subscription"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) WithTx(tx *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: tx}
}

func (r *SubscriptionRepository) Create(plan *model.Subscription) error {
	return r.db.Create(plan).Error
}

func (r *SubscriptionRepository) GetByID(id int64) (*model.Subscription, error) {
	var plan model.Subscription
	if err := r.db.Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *SubscriptionRepository) Update(plan *model.Subscription) error {
	return r.db.Save(plan).Error
}

func (r *SubscriptionRepository) Delete(id int64) error {
	return r.db.Delete(&model.Subscription{}, id).Error
}

// List 分页列出套餐；status 为 0 时不过滤
func (r *SubscriptionRepository) List(status subscription.PlanStatus, page, pageSize int) ([]*model.Subscription, int64, error) {
	var plans []*model.Subscription
	var total int64

	query := r.db.Model(&model.Subscription{})
	if status != 0 {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&plans).Error; err != nil {
		return nil, 0, err
	}

	return plans, total, nil
}
