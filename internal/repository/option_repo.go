package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/subhub/internal/model"
)

type OptionRepository struct {
	db *gorm.DB
}

func NewOptionRepository(db *gorm.DB) *OptionRepository {
	return &OptionRepository{db: db}
}

// Get 读取设置，不存在时返回 ok=false
func (r *OptionRepository) Get(key string) (string, bool, error) {
	var opt model.Option
	err := r.db.Where("`key` = ?", key).First(&opt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return opt.Value, true, nil
}

// Set 写入设置（存在则覆盖）
func (r *OptionRepository) Set(key, value string) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&model.Option{Key: key, Value: value}).Error
}

func (r *OptionRepository) All() ([]*model.Option, error) {
	var opts []*model.Option
	err := r.db.Order("`key` ASC").Find(&opts).Error
	return opts, err
}
