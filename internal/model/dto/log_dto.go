package dto

// DeleteLogsRequest 批量删除日志
type DeleteLogsRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1,dive,gt=0"`
}

// LogQuery 日志查询参数
type LogQuery struct {
	Type           int    `form:"type"`
	Username       string `form:"username"`
	TokenName      string `form:"token_name"`
	ModelName      string `form:"model_name"`
	StartTimestamp int64  `form:"start_timestamp"`
	EndTimestamp   int64  `form:"end_timestamp"`
	Channel        int64  `form:"channel"`
	Group          string `form:"group"`
	IP             string `form:"ip"`
	ErrorCode      string `form:"error_code"`
	StatusCode     int    `form:"status_code"`
	ErrorType      string `form:"error_type"`
	Content        string `form:"content"`
}
