package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/response"
	"github.com/qs3c/subhub/internal/service"
)

type OptionHandler struct {
	optionService *service.OptionService
}

func NewOptionHandler(optionService *service.OptionService) *OptionHandler {
	return &OptionHandler{
		optionService: optionService,
	}
}

// Get 读取单个设置项，不存在时返回空字符串
// GET /api/option/:key
func (h *OptionHandler) Get(c *gin.Context) {
	value, err := h.optionService.Get(c.Param("key"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, value)
}

// List 全部设置项
// GET /api/option/
func (h *OptionHandler) List(c *gin.Context) {
	options, err := h.optionService.All()
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, options)
}

// Update 写入设置项，值原样保存
// PUT /api/option/
func (h *OptionHandler) Update(c *gin.Context) {
	var req dto.UpdateOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.optionService.Set(req.Key, req.Value); err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "保存成功", nil)
}
