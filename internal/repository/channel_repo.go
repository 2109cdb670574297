package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/subhub/internal/model"
)

type ChannelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

func (r *ChannelRepository) WithTx(tx *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: tx}
}

// Transaction 开启事务
func (r *ChannelRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func (r *ChannelRepository) Create(channel *model.Channel) error {
	return r.db.Create(channel).Error
}

func (r *ChannelRepository) GetByID(id int64) (*model.Channel, error) {
	var channel model.Channel
	if err := r.db.Where("id = ?", id).First(&channel).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

// ListEnabled 所有启用的渠道
func (r *ChannelRepository) ListEnabled() ([]*model.Channel, error) {
	var channels []*model.Channel
	err := r.db.Where("status = ?", model.ChannelStatusEnabled).Order("priority DESC, id ASC").Find(&channels).Error
	return channels, err
}

// ListStickyEnabled 开启了粘性会话的渠道，包括已禁用的
func (r *ChannelRepository) ListStickyEnabled() ([]*model.Channel, error) {
	var channels []*model.Channel
	err := r.db.Where("sticky_session_enabled = ?", true).Order("id ASC").Find(&channels).Error
	return channels, err
}

func (r *ChannelRepository) UpdateGroup(id int64, group string) error {
	return r.db.Model(&model.Channel{}).Where("id = ?", id).Update("group", group).Error
}

// CreateBinding 创建专属渠道绑定
func (r *ChannelRepository) CreateBinding(binding *model.UserSubscriptionChannel) error {
	return r.db.Omit("ChannelInfo").Create(binding).Error
}

// BindingExists 用户是否已绑定该渠道
func (r *ChannelRepository) BindingExists(userID, channelID int64) (bool, error) {
	var count int64
	err := r.db.Model(&model.UserSubscriptionChannel{}).
		Where("user_id = ? AND channel_id = ?", userID, channelID).
		Count(&count).Error
	return count > 0, err
}

// ListBindingsByUser 用户的全部绑定，附带渠道信息
func (r *ChannelRepository) ListBindingsByUser(userID int64) ([]*model.UserSubscriptionChannel, error) {
	var bindings []*model.UserSubscriptionChannel
	err := r.db.Preload("ChannelInfo").Where("user_id = ?", userID).Order("id ASC").Find(&bindings).Error
	return bindings, err
}

// ListBindingsBySubscription 某条订阅下的绑定
func (r *ChannelRepository) ListBindingsBySubscription(userSubscriptionID int64) ([]*model.UserSubscriptionChannel, error) {
	var bindings []*model.UserSubscriptionChannel
	err := r.db.Where("user_subscription_id = ?", userSubscriptionID).Find(&bindings).Error
	return bindings, err
}

// DeleteBinding 删除绑定，返回是否删除了记录
func (r *ChannelRepository) DeleteBinding(userID, channelID int64) (bool, error) {
	result := r.db.Where("user_id = ? AND channel_id = ?", userID, channelID).Delete(&model.UserSubscriptionChannel{})
	return result.RowsAffected > 0, result.Error
}

// CountBindingsByUser 用户的绑定数
func (r *ChannelRepository) CountBindingsByUser(userID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.UserSubscriptionChannel{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
