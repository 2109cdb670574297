package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/subhub/internal/api/middleware"
	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/response"
	"github.com/qs3c/subhub/internal/service"
)

type CheckinHandler struct {
	checkinService *service.CheckinService
}

func NewCheckinHandler(checkinService *service.CheckinService) *CheckinHandler {
	return &CheckinHandler{
		checkinService: checkinService,
	}
}

// Info 签到配置和当日状态
// GET /api/user/checkin
func (h *CheckinHandler) Info(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	cfg, err := h.checkinService.Config()
	if err != nil {
		handleError(c, err)
		return
	}
	status, err := h.checkinService.Status(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, dto.CheckinInfoResponse{Config: cfg, Status: *status})
}

// Checkin 签到
// POST /api/user/checkin
func (h *CheckinHandler) Checkin(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	status, err := h.checkinService.Checkin(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "签到成功", status)
}

// GetConfig 签到配置
// GET /api/option/checkin
func (h *CheckinHandler) GetConfig(c *gin.Context) {
	cfg, err := h.checkinService.Config()
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, cfg)
}

// SetConfig 修改签到配置
// PUT /api/option/checkin
func (h *CheckinHandler) SetConfig(c *gin.Context) {
	var req dto.CheckinConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	cfg, err := h.checkinService.SetConfig(req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "保存成功", cfg)
}
