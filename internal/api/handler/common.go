package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/subhub/internal/pkg/response"
	"github.com/qs3c/subhub/internal/service"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// getPage 解析分页参数，页码参数为 p，页大小兼容 page_size 和 size
func getPage(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("p"))
	if page < 1 {
		page = 1
	}

	sizeParam := c.Query("page_size")
	if sizeParam == "" {
		sizeParam = c.Query("size")
	}
	size, _ := strconv.Atoi(sizeParam)
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// parseID 解析路径中的正整数 id，失败时直接写参数错误
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "无效的 "+name)
		return 0, false
	}
	return id, true
}

var (
	notFoundErrors = []error{
		service.ErrPlanNotFound,
		service.ErrUserSubscriptionNotFound,
		service.ErrUserNotFound,
		service.ErrRedemptionNotFound,
		service.ErrChannelNotFound,
		service.ErrLogNotFound,
		service.ErrNoActiveSubscription,
	}
	quotaErrors = []error{
		service.ErrSubscriptionQuotaExceeded,
		service.ErrInsufficientBalance,
		service.ErrCheckinQuotaInsufficient,
	}
	duplicateErrors = []error{
		service.ErrAlreadyCheckedIn,
		service.ErrChannelAlreadyBound,
		service.ErrRedemptionUsed,
	}
	paramErrors = []error{
		service.ErrPlanDisabled,
		service.ErrPlanInUse,
		service.ErrInvalidPlanName,
		service.ErrInvalidPlanQuota,
		service.ErrInvalidPlanGroups,
		service.ErrInvalidPlanDuration,
		service.ErrSubscriptionNotActive,
		service.ErrInvalidExpireTime,
		service.ErrNothingToUpdate,
		service.ErrRedemptionDisabled,
		service.ErrRedemptionExpired,
		service.ErrInvalidCodeName,
		service.ErrInvalidCodeCount,
		service.ErrInvalidCodeExpiry,
		service.ErrExclusiveNotAllowed,
		service.ErrChannelDisabled,
		service.ErrCheckinDisabled,
		service.ErrInvalidCheckinConfig,
		service.ErrInvalidDiscount,
		service.ErrInvalidOptionKey,
		service.ErrInvalidQuotaAmount,
		service.ErrExclusiveGroupMismatch,
		service.ErrGroupNotCovered,
		service.ErrInvalidQuotaSource,
		service.ErrInvalidSessionHash,
	}
)

func matchAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// handleError 把业务错误映射成统一响应，未知错误一律按服务器错误处理
func handleError(c *gin.Context, err error) {
	switch {
	case matchAny(err, notFoundErrors):
		response.NotFoundError(c, err.Error())
	case matchAny(err, quotaErrors):
		response.QuotaError(c, err.Error())
	case matchAny(err, duplicateErrors):
		response.DuplicateError(c, err.Error())
	case matchAny(err, paramErrors):
		response.ParamError(c, err.Error())
	default:
		_ = c.Error(err)
		response.ServerError(c, "")
	}
}
