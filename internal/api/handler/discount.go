package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/subhub/internal/api/middleware"
	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/response"
	"github.com/qs3c/subhub/internal/service"
)

type DiscountHandler struct {
	discountService *service.DiscountService
}

func NewDiscountHandler(discountService *service.DiscountService) *DiscountHandler {
	return &DiscountHandler{
		discountService: discountService,
	}
}

// List 用户折扣列表
// GET /api/discount/users
func (h *DiscountHandler) List(c *gin.Context) {
	page, size := getPage(c)

	var hasDiscount *bool
	if v := c.Query("has_discount"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.ParamError(c, "has_discount 必须是布尔值")
			return
		}
		hasDiscount = &b
	}

	users, total, err := h.discountService.List(c.Query("keyword"), hasDiscount, page, size)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessPage(c, total, page, size, users)
}

// BatchSet 批量设置折扣
// POST /api/discount/batch
func (h *DiscountHandler) BatchSet(c *gin.Context) {
	var req dto.BatchDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	n, err := h.discountService.BatchSet(req.UserIDs, req.DiscountRatio)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "设置成功", gin.H{"updated": n})
}

// Set 设置单个用户折扣
// POST /api/discount/user/:id
func (h *DiscountHandler) Set(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.SetDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.discountService.Set(userID, req.DiscountRatio); err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "设置成功", nil)
}

// Self 当前用户折扣
// GET /api/discount/self
func (h *DiscountHandler) Self(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	ratio, err := h.discountService.Get(userID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{"discount_ratio": ratio})
}
