package service

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/repository"
)

var ErrInvalidDiscount = errors.New("折扣比例必须大于 0 且不超过 1")

// DiscountService 用户折扣，1 表示无折扣
type DiscountService struct {
	userRepo *repository.UserRepository
}

func NewDiscountService(userRepo *repository.UserRepository) *DiscountService {
	return &DiscountService{userRepo: userRepo}
}

func validateDiscount(ratio float64) error {
	if ratio <= 0 || ratio > 1 {
		return ErrInvalidDiscount
	}
	return nil
}

// List hasDiscount 为 nil 时不过滤
func (s *DiscountService) List(keyword string, hasDiscount *bool, page, pageSize int) ([]*dto.DiscountUser, int64, error) {
	users, total, err := s.userRepo.ListByDiscount(strings.TrimSpace(keyword), hasDiscount, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.DiscountUser, 0, len(users))
	for _, u := range users {
		items = append(items, &dto.DiscountUser{
			ID:            u.ID,
			Username:      u.Username,
			DisplayName:   u.DisplayName,
			Group:         u.Group,
			DiscountRatio: u.DiscountRatio,
		})
	}
	return items, total, nil
}

// BatchSet 批量设置折扣，返回更新的用户数
func (s *DiscountService) BatchSet(userIDs []int64, ratio float64) (int64, error) {
	if err := validateDiscount(ratio); err != nil {
		return 0, err
	}
	if len(userIDs) == 0 {
		return 0, nil
	}
	return s.userRepo.BatchUpdateDiscount(userIDs, ratio)
}

func (s *DiscountService) Set(userID int64, ratio float64) error {
	if err := validateDiscount(ratio); err != nil {
		return err
	}
	if _, err := s.Get(userID); err != nil {
		return err
	}
	return s.userRepo.UpdateFields(userID, map[string]interface{}{"discount_ratio": ratio})
}

func (s *DiscountService) Get(userID int64) (float64, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return user.DiscountRatio, nil
}
