package dto

import "github.com/qs3c/subhub/internal/pkg/sticky"

// StickySessionInfo 渠道粘性会话概况，Sessions 只在单渠道查询时返回
type StickySessionInfo struct {
	ChannelID      int64             `json:"channel_id"`
	ChannelName    string            `json:"channel_name"`
	Enabled        bool              `json:"enabled"`
	SessionCount   int               `json:"session_count"`
	MaxCount       int               `json:"max_count"`
	TTLMinutes     int               `json:"ttl_minutes"`
	DailyBindLimit int               `json:"daily_bind_limit"`
	DailyBindCount int64             `json:"daily_bind_count"`
	Sessions       []*sticky.Session `json:"sessions,omitempty"`
}

// StickyReleaseResponse 释放结果
type StickyReleaseResponse struct {
	Released int `json:"released"`
}

// StickyResolveResponse 会话当前绑定的渠道，0 表示未绑定
type StickyResolveResponse struct {
	ChannelID int64 `json:"channel_id"`
}
