package dto

// UserInfo 当前用户信息
type UserInfo struct {
	ID            int64   `json:"id"`
	Username      string  `json:"username"`
	DisplayName   string  `json:"display_name"`
	Role          int     `json:"role"`
	Group         string  `json:"group"`
	Quota         int64   `json:"quota"`
	UsedQuota     int64   `json:"used_quota"`
	DiscountRatio float64 `json:"discount_ratio"`
}
