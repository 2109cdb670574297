package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/subhub/internal/api/middleware"
	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/response"
	"github.com/qs3c/subhub/internal/pkg/subscription"
	"github.com/qs3c/subhub/internal/service"
)

type SubscriptionHandler struct {
	subService *service.SubscriptionService
	logService *service.LogService
}

func NewSubscriptionHandler(subService *service.SubscriptionService, logService *service.LogService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subService: subService,
		logService: logService,
	}
}

// ListPlans 套餐列表
// GET /api/subscription/
func (h *SubscriptionHandler) ListPlans(c *gin.Context) {
	page, size := getPage(c)
	status, _ := strconv.Atoi(c.Query("status"))

	plans, total, err := h.subService.ListPlans(subscription.PlanStatus(status), page, size)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessPage(c, total, page, size, plans)
}

// GetPlan 套餐详情
// GET /api/subscription/:id
func (h *SubscriptionHandler) GetPlan(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	plan, err := h.subService.GetPlan(id)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, plan)
}

// CreatePlan 创建套餐
// POST /api/subscription/
func (h *SubscriptionHandler) CreatePlan(c *gin.Context) {
	var req dto.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	plan, err := h.subService.CreatePlan(&req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "创建成功", plan)
}

// UpdatePlan 更新套餐
// PUT /api/subscription/:id
func (h *SubscriptionHandler) UpdatePlan(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	plan, err := h.subService.UpdatePlan(id, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "更新成功", plan)
}

// DeletePlan 删除套餐，仍有生效订阅时拒绝
// DELETE /api/subscription/:id
func (h *SubscriptionHandler) DeletePlan(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.subService.DeletePlan(id); err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// ListSelf 当前用户的订阅记录
// GET /api/subscription/user/
func (h *SubscriptionHandler) ListSelf(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, size := getPage(c)
	list, total, err := h.subService.ListUserSubscriptions(c.Request.Context(), userID, page, size)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessPage(c, total, page, size, list)
}

// GetActive 当前生效订阅，没有时 data 为 null
// GET /api/subscription/user/active
func (h *SubscriptionHandler) GetActive(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	us, err := h.subService.GetActiveSubscription(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, us)
}

// GetQuota 订阅各周期用量
// GET /api/subscription/user/:id/quota
func (h *SubscriptionHandler) GetQuota(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	usID, ok := parseID(c, "id")
	if !ok {
		return
	}

	status, err := h.subService.GetQuotaStatus(c.Request.Context(), userID, usID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, status)
}

// ListLogs 订阅消费记录
// GET /api/subscription/user/logs
func (h *SubscriptionHandler) ListLogs(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, size := getPage(c)
	logs, total, err := h.logService.ListSubscriptionLogs(userID, page, size)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessPage(c, total, page, size, logs)
}

// AdminList 管理员查看用户订阅
// GET /api/user/:id/subscriptions
func (h *SubscriptionHandler) AdminList(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}

	page, size := getPage(c)
	list, total, err := h.subService.ListUserSubscriptions(c.Request.Context(), userID, page, size)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessPage(c, total, page, size, list)
}

// AdminGrant 管理员直接开通订阅，替换当前生效订阅
// POST /api/user/:id/subscription
func (h *SubscriptionHandler) AdminGrant(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.GrantSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	us, err := h.subService.AdminGrant(c.Request.Context(), userID, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "开通成功", us)
}

// AdminUpdate 修改订阅套餐或到期时间
// PUT /api/user/:id/subscription/:subId
func (h *SubscriptionHandler) AdminUpdate(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}
	usID, ok := parseID(c, "subId")
	if !ok {
		return
	}

	var req dto.UpdateUserSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	us, err := h.subService.AdminUpdate(c.Request.Context(), userID, usID, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "更新成功", us)
}

// AdminCancel 取消订阅
// DELETE /api/user/:id/subscription/:subId
func (h *SubscriptionHandler) AdminCancel(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}
	usID, ok := parseID(c, "subId")
	if !ok {
		return
	}

	if err := h.subService.AdminCancel(c.Request.Context(), userID, usID); err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "已取消", nil)
}
