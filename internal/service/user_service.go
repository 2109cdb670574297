package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/repository"
)

var ErrUserNotFound = errors.New("用户不存在")

type UserService struct {
	userRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetProfile 获取用户详情
func (s *UserService) GetProfile(userID int64) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &dto.UserInfo{
		ID:            user.ID,
		Username:      user.Username,
		DisplayName:   user.DisplayName,
		Role:          user.Role,
		Group:         user.Group,
		Quota:         user.Quota,
		UsedQuota:     user.UsedQuota,
		DiscountRatio: user.DiscountRatio,
	}, nil
}
