package dto

// BatchDiscountRequest 批量设置折扣
type BatchDiscountRequest struct {
	UserIDs       []int64 `json:"user_ids" binding:"required,min=1,dive,gt=0"`
	DiscountRatio float64 `json:"discount_ratio"`
}

// SetDiscountRequest 设置单个用户折扣
type SetDiscountRequest struct {
	DiscountRatio float64 `json:"discount_ratio"`
}

// DiscountUser 折扣列表项
type DiscountUser struct {
	ID            int64   `json:"id"`
	Username      string  `json:"username"`
	DisplayName   string  `json:"display_name"`
	Group         string  `json:"group"`
	DiscountRatio float64 `json:"discount_ratio"`
}
