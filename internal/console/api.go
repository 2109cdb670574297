package console

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/model/dto"
)

// Profile 当前用户
func (c *Client) Profile(ctx context.Context) (*dto.UserInfo, error) {
	var out dto.UserInfo
	if err := c.do(ctx, http.MethodGet, "/api/user/self", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- 用户订阅 ----

// ListSubscriptions 自己的订阅，新的在前
func (c *Client) ListSubscriptions(ctx context.Context, page, pageSize int) (*Page[*model.UserSubscription], error) {
	var out Page[*model.UserSubscription]
	if err := c.do(ctx, http.MethodGet, "/api/subscription/user/", pageQuery(page, pageSize), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActiveSubscription 生效中的订阅，没有时返回 nil
func (c *Client) ActiveSubscription(ctx context.Context) (*model.UserSubscription, error) {
	var out *model.UserSubscription
	if err := c.do(ctx, http.MethodGet, "/api/subscription/user/active", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) QuotaStatus(ctx context.Context, userSubscriptionID int64) (*dto.QuotaStatusResponse, error) {
	var out dto.QuotaStatusResponse
	path := fmt.Sprintf("/api/subscription/user/%d/quota", userSubscriptionID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubscriptionLogs(ctx context.Context, page, pageSize int) (*Page[*model.SubscriptionLog], error) {
	var out Page[*model.SubscriptionLog]
	if err := c.do(ctx, http.MethodGet, "/api/subscription/user/logs", pageQuery(page, pageSize), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TopUp 兑换，forceOverride 只应在用户确认替换现有订阅后为 true
func (c *Client) TopUp(ctx context.Context, key string, forceOverride bool) (*dto.TopUpResponse, error) {
	var out dto.TopUpResponse
	req := dto.TopUpRequest{Key: key, ForceOverride: forceOverride}
	if err := c.do(ctx, http.MethodPost, "/api/user/topup", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- 套餐（管理员）----

// ListPlans status 为 0 时不过滤
func (c *Client) ListPlans(ctx context.Context, status, page, pageSize int) (*Page[*model.Subscription], error) {
	q := pageQuery(page, pageSize)
	if status > 0 {
		q.Set("status", strconv.Itoa(status))
	}
	var out Page[*model.Subscription]
	if err := c.do(ctx, http.MethodGet, "/api/subscription/", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPlan(ctx context.Context, id int64) (*model.Subscription, error) {
	var out model.Subscription
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/subscription/%d", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePlan(ctx context.Context, req *dto.PlanRequest) (*model.Subscription, error) {
	var out model.Subscription
	if err := c.do(ctx, http.MethodPost, "/api/subscription/", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePlan(ctx context.Context, id int64, req *dto.PlanRequest) (*model.Subscription, error) {
	var out model.Subscription
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/subscription/%d", id), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePlan(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/subscription/%d", id), nil, nil, nil)
}

// GenerateCodes 生成订阅兑换码
func (c *Client) GenerateCodes(ctx context.Context, req *dto.GenerateRedemptionRequest) ([]string, error) {
	var keys []string
	if err := c.do(ctx, http.MethodPost, "/api/subscription/redemption", nil, req, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// GenerateQuotaCodes 生成额度充值码
func (c *Client) GenerateQuotaCodes(ctx context.Context, req *dto.GenerateQuotaCodeRequest) ([]string, error) {
	var keys []string
	if err := c.do(ctx, http.MethodPost, "/api/redemption/", nil, req, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// ---- 用户订阅管理（管理员）----

func (c *Client) UserSubscriptions(ctx context.Context, userID int64, page, pageSize int) (*Page[*model.UserSubscription], error) {
	var out Page[*model.UserSubscription]
	path := fmt.Sprintf("/api/user/%d/subscriptions", userID)
	if err := c.do(ctx, http.MethodGet, path, pageQuery(page, pageSize), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GrantSubscription(ctx context.Context, userID int64, req *dto.GrantSubscriptionRequest) (*model.UserSubscription, error) {
	var out model.UserSubscription
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/user/%d/subscription", userID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateUserSubscription(ctx context.Context, userID, userSubscriptionID int64, req *dto.UpdateUserSubscriptionRequest) (*model.UserSubscription, error) {
	var out model.UserSubscription
	path := fmt.Sprintf("/api/user/%d/subscription/%d", userID, userSubscriptionID)
	if err := c.do(ctx, http.MethodPut, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelUserSubscription(ctx context.Context, userID, userSubscriptionID int64) error {
	path := fmt.Sprintf("/api/user/%d/subscription/%d", userID, userSubscriptionID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// ---- 专属渠道 ----

func (c *Client) ExclusiveSelf(ctx context.Context) (*dto.ExclusiveSelfResponse, error) {
	var out dto.ExclusiveSelfResponse
	if err := c.do(ctx, http.MethodGet, "/api/subscription/exclusive/self", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExclusiveUsers(ctx context.Context) ([]*dto.ExclusiveUser, error) {
	var out []*dto.ExclusiveUser
	if err := c.do(ctx, http.MethodGet, "/api/subscription/exclusive/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UserChannels(ctx context.Context, userID int64) ([]*model.UserSubscriptionChannel, error) {
	var out []*model.UserSubscriptionChannel
	path := fmt.Sprintf("/api/subscription/exclusive/user/%d/channels", userID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AvailableChannels(ctx context.Context) ([]*model.Channel, error) {
	var out []*model.Channel
	if err := c.do(ctx, http.MethodGet, "/api/subscription/exclusive/available_channels", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BindChannel(ctx context.Context, userID, channelID int64) error {
	path := fmt.Sprintf("/api/subscription/exclusive/user/%d/channel", userID)
	return c.do(ctx, http.MethodPost, path, nil, dto.BindChannelRequest{ChannelID: channelID}, nil)
}

func (c *Client) UnbindChannel(ctx context.Context, userID, channelID int64) error {
	path := fmt.Sprintf("/api/subscription/exclusive/user/%d/channel/%d", userID, channelID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// ---- 粘性会话 ----

func (c *Client) StickySessionStats(ctx context.Context) ([]*dto.StickySessionInfo, error) {
	var out []*dto.StickySessionInfo
	if err := c.do(ctx, http.MethodGet, "/api/channel/sticky_sessions/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StickySessions 渠道的会话列表
func (c *Client) StickySessions(ctx context.Context, channelID int64) (*dto.StickySessionInfo, error) {
	var out dto.StickySessionInfo
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/channel/%d/sticky_sessions", channelID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ReleaseStickySession(ctx context.Context, channelID int64, sessionHash string) error {
	path := fmt.Sprintf("/api/channel/%d/sticky_sessions/%s", channelID, url.PathEscape(sessionHash))
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) ReleaseAllStickySessions(ctx context.Context, channelID int64) (int, error) {
	var out dto.StickyReleaseResponse
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/channel/%d/sticky_sessions", channelID), nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Released, nil
}

// ---- 签到 ----

func (c *Client) CheckinInfo(ctx context.Context) (*dto.CheckinInfoResponse, error) {
	var out dto.CheckinInfoResponse
	if err := c.do(ctx, http.MethodGet, "/api/user/checkin", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Checkin(ctx context.Context) (*dto.CheckinStatus, error) {
	var out dto.CheckinStatus
	if err := c.do(ctx, http.MethodPost, "/api/user/checkin", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CheckinConfig(ctx context.Context) (*dto.CheckinConfig, error) {
	var out dto.CheckinConfig
	if err := c.do(ctx, http.MethodGet, "/api/option/checkin", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetCheckinConfig(ctx context.Context, cfg dto.CheckinConfig) (*dto.CheckinConfig, error) {
	var out dto.CheckinConfig
	if err := c.do(ctx, http.MethodPut, "/api/option/checkin", nil, cfg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- 折扣 ----

// DiscountUsers hasDiscount 为 nil 时不过滤
func (c *Client) DiscountUsers(ctx context.Context, keyword string, hasDiscount *bool, page, pageSize int) (*Page[*dto.DiscountUser], error) {
	q := pageQuery(page, pageSize)
	if keyword != "" {
		q.Set("keyword", keyword)
	}
	if hasDiscount != nil {
		q.Set("has_discount", strconv.FormatBool(*hasDiscount))
	}
	var out Page[*dto.DiscountUser]
	if err := c.do(ctx, http.MethodGet, "/api/discount/users", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetDiscount(ctx context.Context, userID int64, ratio float64) error {
	path := fmt.Sprintf("/api/discount/user/%d", userID)
	return c.do(ctx, http.MethodPost, path, nil, dto.SetDiscountRequest{DiscountRatio: ratio}, nil)
}

func (c *Client) BatchDiscount(ctx context.Context, userIDs []int64, ratio float64) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	req := dto.BatchDiscountRequest{UserIDs: userIDs, DiscountRatio: ratio}
	if err := c.do(ctx, http.MethodPost, "/api/discount/batch", nil, req, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

func (c *Client) SelfDiscount(ctx context.Context) (float64, error) {
	var out struct {
		DiscountRatio float64 `json:"discount_ratio"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/discount/self", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.DiscountRatio, nil
}

// ---- 设置 ----

// GetOption 不存在的 key 返回空串
func (c *Client) GetOption(ctx context.Context, key string) (string, error) {
	var out string
	if err := c.do(ctx, http.MethodGet, "/api/option/"+url.PathEscape(key), nil, nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) SetOption(ctx context.Context, key, value string) error {
	return c.do(ctx, http.MethodPut, "/api/option/", nil, dto.UpdateOptionRequest{Key: key, Value: value}, nil)
}

// ---- 日志（管理员）----

// Logs 日志查询，零值条件不带上
func (c *Client) Logs(ctx context.Context, query dto.LogQuery, page, pageSize int) (*Page[*model.Log], error) {
	q := pageQuery(page, pageSize)
	setInt := func(k string, v int64) {
		if v != 0 {
			q.Set(k, strconv.FormatInt(v, 10))
		}
	}
	setStr := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	setInt("type", int64(query.Type))
	setStr("username", query.Username)
	setStr("token_name", query.TokenName)
	setStr("model_name", query.ModelName)
	setInt("start_timestamp", query.StartTimestamp)
	setInt("end_timestamp", query.EndTimestamp)
	setInt("channel", query.Channel)
	setStr("group", query.Group)
	setStr("ip", query.IP)
	setStr("error_code", query.ErrorCode)
	setInt("status_code", int64(query.StatusCode))
	setStr("error_type", query.ErrorType)
	setStr("content", query.Content)

	var out Page[*model.Log]
	if err := c.do(ctx, http.MethodGet, "/api/log/", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteLog(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/log/%d", id), nil, nil, nil)
}

func (c *Client) DeleteLogs(ctx context.Context, ids []int64) (int64, error) {
	var out struct {
		Deleted int64 `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/log/batch", nil, dto.DeleteLogsRequest{IDs: ids}, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

// ClearErrorLogs 清空错误日志
func (c *Client) ClearErrorLogs(ctx context.Context) (int64, error) {
	var out struct {
		Deleted int64 `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/log/error/clear", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}
