package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/response"
	"github.com/qs3c/subhub/internal/repository"
	"github.com/qs3c/subhub/internal/service"
)

type LogHandler struct {
	logService *service.LogService
}

func NewLogHandler(logService *service.LogService) *LogHandler {
	return &LogHandler{
		logService: logService,
	}
}

// List 日志列表
// GET /api/log/
func (h *LogHandler) List(c *gin.Context) {
	var q dto.LogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	page, size := getPage(c)

	filter := repository.LogFilter{
		Type:           q.Type,
		Username:       q.Username,
		TokenName:      q.TokenName,
		ModelName:      q.ModelName,
		StartTimestamp: q.StartTimestamp,
		EndTimestamp:   q.EndTimestamp,
		ChannelID:      q.Channel,
		Group:          q.Group,
		IP:             q.IP,
		ErrorCode:      q.ErrorCode,
		StatusCode:     q.StatusCode,
		ErrorType:      q.ErrorType,
		Content:        q.Content,
	}

	logs, total, err := h.logService.List(filter, page, size)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessPage(c, total, page, size, logs)
}

// Delete 删除单条日志
// DELETE /api/log/:id
func (h *LogHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.logService.Delete(id); err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// DeleteBatch 批量删除
// DELETE /api/log/batch
func (h *LogHandler) DeleteBatch(c *gin.Context) {
	var req dto.DeleteLogsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	n, err := h.logService.DeleteBatch(req.IDs)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": n})
}

// ClearErrors 清空错误日志
// DELETE /api/log/error/clear
func (h *LogHandler) ClearErrors(c *gin.Context) {
	n, err := h.logService.ClearErrors()
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": n})
}
