package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/subhub/internal/api/middleware"
	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/response"
	"github.com/qs3c/subhub/internal/service"
)

type ExclusiveHandler struct {
	exclusiveService *service.ExclusiveService
}

func NewExclusiveHandler(exclusiveService *service.ExclusiveService) *ExclusiveHandler {
	return &ExclusiveHandler{
		exclusiveService: exclusiveService,
	}
}

// Self 当前用户的专属分组状态
// GET /api/subscription/exclusive/self
func (h *ExclusiveHandler) Self(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	status, err := h.exclusiveService.SelfStatus(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, status)
}

// ListUsers 拥有专属分组权限的用户
// GET /api/subscription/exclusive/users
func (h *ExclusiveHandler) ListUsers(c *gin.Context) {
	users, err := h.exclusiveService.ListUsers()
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, users)
}

// ListUserChannels 用户已绑定的渠道
// GET /api/subscription/exclusive/user/:userId/channels
func (h *ExclusiveHandler) ListUserChannels(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}

	channels, err := h.exclusiveService.ListUserChannels(userID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, channels)
}

// AvailableChannels 可绑定的渠道
// GET /api/subscription/exclusive/available_channels
func (h *ExclusiveHandler) AvailableChannels(c *gin.Context) {
	channels, err := h.exclusiveService.AvailableChannels()
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, channels)
}

// Bind 绑定渠道
// POST /api/subscription/exclusive/user/:userId/channel
func (h *ExclusiveHandler) Bind(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}

	var req dto.BindChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	binding, err := h.exclusiveService.Bind(c.Request.Context(), userID, req.ChannelID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "绑定成功", binding)
}

// Unbind 解绑渠道，未绑定时也返回成功
// DELETE /api/subscription/exclusive/user/:userId/channel/:channelId
func (h *ExclusiveHandler) Unbind(c *gin.Context) {
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	channelID, ok := parseID(c, "channelId")
	if !ok {
		return
	}

	if err := h.exclusiveService.Unbind(c.Request.Context(), userID, channelID); err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "解绑成功", nil)
}
