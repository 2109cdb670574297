package dto

// CheckinConfig 签到配置
type CheckinConfig struct {
	Enabled     bool   `json:"enabled"`
	QuotaAmount int64  `json:"quota_amount" binding:"min=0"`
	Group       string `json:"group" binding:"max=64"`
}

// CheckinStatus 用户当日签到状态
type CheckinStatus struct {
	CheckedIn      bool  `json:"checked_in"`
	QuotaRemaining int64 `json:"quota_remaining"`
	CheckinTime    int64 `json:"checkin_time,omitempty"`
	ExpiresAt      int64 `json:"expires_at"`
}

// CheckinInfoResponse GET /api/user/checkin
type CheckinInfoResponse struct {
	Config CheckinConfig `json:"config"`
	Status CheckinStatus `json:"status"`
}
