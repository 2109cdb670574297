package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/subhub/internal/api/middleware"
	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/response"
	"github.com/qs3c/subhub/internal/service"
)

type StickySessionHandler struct {
	stickyService *service.StickySessionService
}

func NewStickySessionHandler(stickyService *service.StickySessionService) *StickySessionHandler {
	return &StickySessionHandler{
		stickyService: stickyService,
	}
}

// List 渠道的粘性会话
// GET /api/channel/:id/sticky_sessions
func (h *StickySessionHandler) List(c *gin.Context) {
	channelID, ok := parseID(c, "id")
	if !ok {
		return
	}

	info, err := h.stickyService.List(c.Request.Context(), channelID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, info)
}

// Stats GET /api/channel/sticky_sessions/stats
func (h *StickySessionHandler) Stats(c *gin.Context) {
	stats, err := h.stickyService.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, stats)
}

// Release 释放一条会话
// DELETE /api/channel/:id/sticky_sessions/:session_hash
func (h *StickySessionHandler) Release(c *gin.Context) {
	channelID, ok := parseID(c, "id")
	if !ok {
		return
	}
	adminID, _ := middleware.GetUserID(c)

	if err := h.stickyService.Release(c.Request.Context(), adminID, channelID, c.Param("session_hash")); err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "已释放", nil)
}

// ReleaseAll 释放渠道的全部会话
// DELETE /api/channel/:id/sticky_sessions
func (h *StickySessionHandler) ReleaseAll(c *gin.Context) {
	channelID, ok := parseID(c, "id")
	if !ok {
		return
	}
	adminID, _ := middleware.GetUserID(c)

	n, err := h.stickyService.ReleaseAll(c.Request.Context(), adminID, channelID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "已释放", &dto.StickyReleaseResponse{Released: n})
}

// Resolve 会话当前绑定的渠道，channel_id 为 0 表示未绑定
// GET /api/usage/sticky_session?group=&model=&session_id=
func (h *StickySessionHandler) Resolve(c *gin.Context) {
	channelID, err := h.stickyService.Resolve(c.Request.Context(),
		c.Query("group"), c.Query("model"), c.Query("session_id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, &dto.StickyResolveResponse{ChannelID: channelID})
}
