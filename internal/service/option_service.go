package service

import (
	"errors"
	"strings"

	"github.com/qs3c/subhub/internal/repository"
)

var ErrInvalidOptionKey = errors.New("设置项名称不能为空")

// OptionService 键值设置。值原样保存，包括订阅页面的 HTML
type OptionService struct {
	optionRepo *repository.OptionRepository
}

func NewOptionService(optionRepo *repository.OptionRepository) *OptionService {
	return &OptionService{optionRepo: optionRepo}
}

// Get 不存在时返回空字符串
func (s *OptionService) Get(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidOptionKey
	}
	value, _, err := s.optionRepo.Get(key)
	return value, err
}

func (s *OptionService) Set(key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrInvalidOptionKey
	}
	return s.optionRepo.Set(key, value)
}

// All 全部设置项
func (s *OptionService) All() (map[string]string, error) {
	opts, err := s.optionRepo.All()
	if err != nil {
		return nil, err
	}
	result := make(map[string]string, len(opts))
	for _, o := range opts {
		result[o.Key] = o.Value
	}
	return result, nil
}
