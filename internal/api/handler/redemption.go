package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/subhub/internal/api/middleware"
	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/response"
	"github.com/qs3c/subhub/internal/service"
)

type RedemptionHandler struct {
	redemptionService *service.RedemptionService
}

func NewRedemptionHandler(redemptionService *service.RedemptionService) *RedemptionHandler {
	return &RedemptionHandler{
		redemptionService: redemptionService,
	}
}

// GenerateSubscription 生成套餐兑换码
// POST /api/subscription/redemption
func (h *RedemptionHandler) GenerateSubscription(c *gin.Context) {
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.GenerateRedemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	keys, err := h.redemptionService.GenerateSubscriptionCodes(adminID, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "生成成功", keys)
}

// GenerateQuota 生成余额兑换码
// POST /api/redemption/
func (h *RedemptionHandler) GenerateQuota(c *gin.Context) {
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.GenerateQuotaCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	keys, err := h.redemptionService.GenerateQuotaCodes(adminID, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "生成成功", keys)
}

// List 兑换码列表
// GET /api/redemption/
func (h *RedemptionHandler) List(c *gin.Context) {
	page, size := getPage(c)

	codes, total, err := h.redemptionService.List(c.Query("keyword"), page, size)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessPage(c, total, page, size, codes)
}

// DeleteInvalid 清理已使用、已禁用和已过期的兑换码
// DELETE /api/redemption/invalid
func (h *RedemptionHandler) DeleteInvalid(c *gin.Context) {
	n, err := h.redemptionService.DeleteInvalid()
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": n})
}

// TopUp 兑换。已有生效订阅且未确认覆盖时返回 SUBSCRIPTION_CONFLICT，data 为现有订阅
// POST /api/user/topup
func (h *RedemptionHandler) TopUp(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	result, err := h.redemptionService.Redeem(c.Request.Context(), userID, &req)
	if err != nil {
		var conflict *service.SubscriptionConflictError
		if errors.As(err, &conflict) {
			response.ConflictError(c, conflict.Error(), conflict.Info())
			return
		}
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "兑换成功", result)
}
