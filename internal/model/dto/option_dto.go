package dto

// UpdateOptionRequest 更新设置
type UpdateOptionRequest struct {
	Key   string `json:"key" binding:"required,max=64"`
	Value string `json:"value"`
}
