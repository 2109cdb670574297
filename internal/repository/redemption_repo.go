package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/subhub/internal/model"
)

type RedemptionRepository struct {
	db *gorm.DB
}

func NewRedemptionRepository(db *gorm.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

func (r *RedemptionRepository) WithTx(tx *gorm.DB) *RedemptionRepository {
	return &RedemptionRepository{db: tx}
}

// CreateBatch 批量创建兑换码
func (r *RedemptionRepository) CreateBatch(items []*model.Redemption) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.Create(items).Error
}

func (r *RedemptionRepository) GetByKey(key string) (*model.Redemption, error) {
	var item model.Redemption
	if err := r.db.Where("`key` = ?", key).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// GetByKeyForUpdate 加行锁读取兑换码
func (r *RedemptionRepository) GetByKeyForUpdate(key string) (*model.Redemption, error) {
	var item model.Redemption
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("`key` = ?", key).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// MarkUsed 仅在兑换码仍可用时标记为已使用
func (r *RedemptionRepository) MarkUsed(id, userID, now int64) (bool, error) {
	result := r.db.Model(&model.Redemption{}).
		Where("id = ? AND status = ?", id, model.RedemptionStatusEnabled).
		Updates(map[string]interface{}{
			"status":        model.RedemptionStatusUsed,
			"used_user_id":  userID,
			"redeemed_time": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// List 分页列出兑换码，最新的在前
func (r *RedemptionRepository) List(keyword string, page, pageSize int) ([]*model.Redemption, int64, error) {
	var items []*model.Redemption
	var total int64

	query := r.db.Model(&model.Redemption{})
	if keyword != "" {
		query = query.Where("name LIKE ? OR `key` = ?", "%"+keyword+"%", keyword)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *RedemptionRepository) invalidScope(now int64) *gorm.DB {
	return r.db.Model(&model.Redemption{}).Where("status IN ? OR (expired_time != 0 AND expired_time < ?)",
		[]int{model.RedemptionStatusUsed, model.RedemptionStatusDisabled}, now)
}

// DeleteInvalid 删除已使用、已禁用或已过期的兑换码
func (r *RedemptionRepository) DeleteInvalid(now int64) (int64, error) {
	result := r.invalidScope(now).Delete(&model.Redemption{})
	return result.RowsAffected, result.Error
}

// CountInvalid 统计可清理的兑换码，用于 dry-run
func (r *RedemptionRepository) CountInvalid(now int64) (int64, error) {
	var count int64
	err := r.invalidScope(now).Count(&count).Error
	return count, err
}
