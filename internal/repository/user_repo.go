package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/subhub/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx 在事务中使用
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

// IncreaseQuota 增加用户余额
func (r *UserRepository) IncreaseQuota(id int64, amount int64) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("quota", gorm.Expr("quota + ?", amount)).Error
}

// DecreaseQuota 扣减用户余额，余额不足时不扣减并返回 false
func (r *UserRepository) DecreaseQuota(id int64, amount int64) (bool, error) {
	result := r.db.Model(&model.User{}).Where("id = ? AND quota >= ?", id, amount).
		Updates(map[string]interface{}{
			"quota":      gorm.Expr("quota - ?", amount),
			"used_quota": gorm.Expr("used_quota + ?", amount),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListByDiscount 按用户名/显示名搜索；hasDiscount 非空时按是否有折扣过滤
func (r *UserRepository) ListByDiscount(keyword string, hasDiscount *bool, page, pageSize int) ([]*model.User, int64, error) {
	var users []*model.User
	var total int64

	query := r.db.Model(&model.User{})
	if keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("username LIKE ? OR display_name LIKE ?", like, like)
	}
	if hasDiscount != nil {
		if *hasDiscount {
			query = query.Where("discount_ratio < ?", 1)
		} else {
			query = query.Where("discount_ratio >= ?", 1)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// BatchUpdateDiscount 批量设置折扣，返回影响行数
func (r *UserRepository) BatchUpdateDiscount(ids []int64, ratio float64) (int64, error) {
	result := r.db.Model(&model.User{}).Where("id IN ?", ids).Update("discount_ratio", ratio)
	return result.RowsAffected, result.Error
}

func (r *UserRepository) ListByIDs(ids []int64) ([]*model.User, error) {
	var users []*model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.Where("id IN ?", ids).Find(&users).Error
	return users, err
}
