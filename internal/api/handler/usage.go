package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/response"
	"github.com/qs3c/subhub/internal/service"
)

type UsageHandler struct {
	usageService *service.UsageService
}

func NewUsageHandler(usageService *service.UsageService) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
	}
}

// Consume 扣减额度，返回实际使用的额度来源
// POST /api/usage/consume
func (h *UsageHandler) Consume(c *gin.Context) {
	var req dto.ConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	result, err := h.usageService.Consume(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, result)
}

// Return 退还额度
// POST /api/usage/return
func (h *UsageHandler) Return(c *gin.Context) {
	var req dto.ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.usageService.Return(c.Request.Context(), &req); err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "已退还", nil)
}
