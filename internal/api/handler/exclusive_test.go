package handler

import (
	"fmt"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/response"
	"github.com/qs3c/subhub/internal/testutil"
)

func exclusiveRouter(ctx *testContext, userID int64) *gin.Engine {
	router := gin.New()
	router.Use(mockAuthWithRole(userID, model.RoleAdminUser))
	router.GET("/exclusive/self", ctx.exclusive.Self)
	router.GET("/exclusive/users", ctx.exclusive.ListUsers)
	router.GET("/exclusive/available_channels", ctx.exclusive.AvailableChannels)
	router.GET("/exclusive/user/:userId/channels", ctx.exclusive.ListUserChannels)
	router.POST("/exclusive/user/:userId/channel", ctx.exclusive.Bind)
	router.DELETE("/exclusive/user/:userId/channel/:channelId", ctx.exclusive.Unbind)
	return router
}

func TestExclusiveHandler_BindFlow(t *testing.T) {
	ctx, cleanup := setupHandlers(t)
	defer cleanup()

	user := testutil.TestUser(t, ctx.DB)
	plan := testutil.TestPlan(t, ctx.DB, testutil.WithExclusive())
	testutil.TestUserSubscription(t, ctx.DB, user.ID, plan.ID)
	ch := testutil.TestChannel(t, ctx.DB)

	router := exclusiveRouter(ctx, user.ID)
	bindPath := fmt.Sprintf("/exclusive/user/%d/channel", user.ID)

	resp := parseResponse(t, performRequest(router, "POST", bindPath, dto.BindChannelRequest{ChannelID: ch.ID}))
	require.True(t, resp.Success, resp.Message)

	resp = parseResponse(t, performRequest(router, "POST", bindPath, dto.BindChannelRequest{ChannelID: ch.ID}))
	assert.Equal(t, response.CodeDuplicateAction, resp.Code)

	resp = parseResponse(t, performRequest(router, "GET", fmt.Sprintf("/exclusive/user/%d/channels", user.ID), nil))
	require.True(t, resp.Success)
	assert.Len(t, resp.Data.([]interface{}), 1)

	resp = parseResponse(t, performRequest(router, "GET", "/exclusive/self", nil))
	self := resp.Data.(map[string]interface{})
	assert.Equal(t, true, self["has_permission"])
	assert.Equal(t, true, self["has_channels"])
	assert.Equal(t, fmt.Sprintf("sub_user_%d", user.ID), self["group_name"])

	resp = parseResponse(t, performRequest(router, "GET", "/exclusive/users", nil))
	assert.Len(t, resp.Data.([]interface{}), 1)

	unbindPath := fmt.Sprintf("/exclusive/user/%d/channel/%d", user.ID, ch.ID)
	resp = parseResponse(t, performRequest(router, "DELETE", unbindPath, nil))
	require.True(t, resp.Success)
	resp = parseResponse(t, performRequest(router, "DELETE", unbindPath, nil))
	assert.True(t, resp.Success)
}

func TestExclusiveHandler_Bind_NotAllowed(t *testing.T) {
	ctx, cleanup := setupHandlers(t)
	defer cleanup()

	user := testutil.TestUser(t, ctx.DB)
	ch := testutil.TestChannel(t, ctx.DB)
	router := exclusiveRouter(ctx, user.ID)

	resp := parseResponse(t, performRequest(router, "POST", fmt.Sprintf("/exclusive/user/%d/channel", user.ID),
		dto.BindChannelRequest{ChannelID: ch.ID}))
	assert.False(t, resp.Success)
	assert.Equal(t, response.CodeParamError, resp.Code)

	resp = parseResponse(t, performRequest(router, "POST", fmt.Sprintf("/exclusive/user/%d/channel", user.ID),
		map[string]int{"channel_id": 0}))
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestExclusiveHandler_AvailableChannels(t *testing.T) {
	ctx, cleanup := setupHandlers(t)
	defer cleanup()

	testutil.TestChannel(t, ctx.DB)
	router := exclusiveRouter(ctx, 1)

	resp := parseResponse(t, performRequest(router, "GET", "/exclusive/available_channels", nil))
	require.True(t, resp.Success)
	assert.Len(t, resp.Data.([]interface{}), 1)
}
