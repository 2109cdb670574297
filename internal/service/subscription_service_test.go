package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/quota"
	"github.com/qs3c/subhub/internal/pkg/subscription"
	"github.com/qs3c/subhub/internal/repository"
	"github.com/qs3c/subhub/internal/testutil"
)

func validPlanRequest() *dto.PlanRequest {
	return &dto.PlanRequest{
		Name:             "Pro",
		DailyQuotaLimit:  1000,
		WeeklyQuotaLimit: 5000,
		TotalQuotaLimit:  20000,
		DurationDays:     30,
		AllowedGroups:    []string{"default", "vip"},
	}
}

func TestSubscriptionService_CreatePlan(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	plan, err := env.subs.CreatePlan(validPlanRequest())
	require.NoError(t, err)
	assert.NotZero(t, plan.ID)
	assert.Equal(t, subscription.PlanEnabled, plan.Status)
	assert.Equal(t, model.StringArray{"default", "vip"}, plan.AllowedGroups)

	stored, err := env.subs.GetPlan(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pro", stored.Name)
	assert.True(t, stored.AllowsGroup("vip"))
}

func TestSubscriptionService_CreatePlan_Validation(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	tests := []struct {
		name    string
		mutate  func(*dto.PlanRequest)
		wantErr error
	}{
		{"empty name", func(r *dto.PlanRequest) { r.Name = "   " }, ErrInvalidPlanName},
		{"name too long", func(r *dto.PlanRequest) {
			r.Name = "这是一个非常非常长的套餐名称这是一个非常非常长的套餐名称这是一个非常非常长的套餐名称这是一个非常非常长的套餐名称这是一个非常非常长的"
		}, ErrInvalidPlanName},
		{"zero total", func(r *dto.PlanRequest) { r.TotalQuotaLimit = 0 }, ErrInvalidPlanQuota},
		{"negative daily", func(r *dto.PlanRequest) { r.DailyQuotaLimit = -1 }, ErrInvalidPlanQuota},
		{"no groups", func(r *dto.PlanRequest) { r.AllowedGroups = []string{" "} }, ErrInvalidPlanGroups},
		{"negative duration", func(r *dto.PlanRequest) { r.DurationDays = -3 }, ErrInvalidPlanDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validPlanRequest()
			tt.mutate(req)
			_, err := env.subs.CreatePlan(req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSubscriptionService_CreatePlan_DefaultDuration(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	req := validPlanRequest()
	req.DurationDays = 0
	plan, err := env.subs.CreatePlan(req)
	require.NoError(t, err)
	assert.Equal(t, 30, plan.DurationDays)
}

func TestSubscriptionService_UpdatePlan(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	plan := testutil.TestPlan(t, env.db)
	req := validPlanRequest()
	req.Name = "Renamed"
	req.Status = int(subscription.PlanDisabled)

	updated, err := env.subs.UpdatePlan(plan.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, subscription.PlanDisabled, updated.Status)

	_, err = env.subs.UpdatePlan(99999, req)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestSubscriptionService_DeletePlan(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	user := testutil.TestUser(t, env.db)
	inUse := testutil.TestPlan(t, env.db)
	testutil.TestUserSubscription(t, env.db, user.ID, inUse.ID)

	err := env.subs.DeletePlan(inUse.ID)
	assert.ErrorIs(t, err, ErrPlanInUse)

	unused := testutil.TestPlan(t, env.db)
	require.NoError(t, env.subs.DeletePlan(unused.ID))
	_, err = env.subs.GetPlan(unused.ID)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestSubscriptionService_ListPlans_FilterByStatus(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	testutil.TestPlan(t, env.db)
	testutil.TestPlan(t, env.db, testutil.WithPlanStatus(subscription.PlanDisabled))

	all, total, err := env.subs.ListPlans(0, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	enabled, total, err := env.subs.ListPlans(subscription.PlanEnabled, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, subscription.PlanEnabled, enabled[0].Status)
}

func TestSubscriptionService_ListUserSubscriptions_WithUsage(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)
	plan := testutil.TestPlan(t, env.db)
	us := testutil.TestUserSubscription(t, env.db, user.ID, plan.ID)
	require.NoError(t, env.quota.Consume(ctx, us, plan.Limits(), 1234))

	list, total, err := env.subs.ListUserSubscriptions(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1234), list[0].DailyQuotaUsed)
	assert.Equal(t, int64(1234), list[0].TotalQuotaUsed)
	require.NotNil(t, list[0].SubscriptionInfo)
	assert.Equal(t, plan.Name, list[0].SubscriptionInfo.Name)
}

func TestSubscriptionService_ListUserSubscriptions_PersistsExpiry(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	user := testutil.TestUser(t, env.db)
	plan := testutil.TestPlan(t, env.db)
	us := testutil.TestUserSubscription(t, env.db, user.ID, plan.ID,
		testutil.WithExpireTime(time.Now().Add(-time.Hour).Unix()))

	list, _, err := env.subs.ListUserSubscriptions(context.Background(), user.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, subscription.StatusExpired, list[0].Status)

	stored, err := env.usRepo.GetByID(us.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusExpired, stored.Status)
}

func TestSubscriptionService_GetActiveSubscription_Cached(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)
	plan := testutil.TestPlan(t, env.db)
	us := testutil.TestUserSubscription(t, env.db, user.ID, plan.ID)

	got, err := env.subs.GetActiveSubscription(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, us.ID, got.ID)
	assert.True(t, env.mr.Exists("user_subscription:"+strconv.FormatInt(user.ID, 10)))

	cached, err := env.cache.Get(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	require.NotNil(t, cached.SubscriptionInfo)
	assert.Equal(t, plan.TotalQuotaLimit, cached.SubscriptionInfo.TotalQuotaLimit)
}

func TestSubscriptionService_GetActiveSubscription_None(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()

	user := testutil.TestUser(t, env.db)
	_, err := env.subs.GetActiveSubscription(context.Background(), user.ID)
	assert.ErrorIs(t, err, ErrNoActiveSubscription)
}

func TestSubscriptionService_GetQuotaStatus(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)
	other := testutil.TestUser(t, env.db)
	plan := testutil.TestPlan(t, env.db, testutil.WithLimits(100, 0, 1000))
	us := testutil.TestUserSubscription(t, env.db, user.ID, plan.ID)
	require.NoError(t, env.quota.Consume(ctx, us, plan.Limits(), 40))

	status, err := env.subs.GetQuotaStatus(ctx, user.ID, us.ID)
	require.NoError(t, err)
	assert.Equal(t, int(subscription.StatusActive), status.Status)
	assert.Equal(t, dto.QuotaPeriod{Used: 40, Limit: 1000}, status.Total)
	assert.Equal(t, int64(40), status.Daily.Used)
	assert.Equal(t, int64(100), status.Daily.Limit)
	assert.NotZero(t, status.Daily.ResetAt)
	assert.Equal(t, int64(0), status.Weekly.Limit)

	_, err = env.subs.GetQuotaStatus(ctx, other.ID, us.ID)
	assert.ErrorIs(t, err, ErrUserSubscriptionNotFound)
}

func TestSubscriptionService_AdminGrant_SupersedesCurrent(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)
	oldPlan := testutil.TestPlan(t, env.db, testutil.WithExclusive())
	newPlan := testutil.TestPlan(t, env.db)
	old := testutil.TestUserSubscription(t, env.db, user.ID, oldPlan.ID)

	ch := testutil.TestChannel(t, env.db)
	_, err := env.exclusive.Bind(ctx, user.ID, ch.ID)
	require.NoError(t, err)

	created, err := env.subs.AdminGrant(ctx, user.ID, &dto.GrantSubscriptionRequest{SubscriptionID: newPlan.ID, DurationDays: 7})
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, created.Status)
	assert.Equal(t, model.SubscriptionSourceAdmin, created.Source)
	assert.InDelta(t, 7*24*3600, created.ExpireTime-created.StartTime, 3600)

	stored, err := env.usRepo.GetByID(old.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusSuperseded, stored.Status)

	// 旧订阅的专属渠道被回收
	bindings, err := env.channelRepo.ListBindingsByUser(user.ID)
	require.NoError(t, err)
	assert.Empty(t, bindings)
	channel, err := env.channelRepo.GetByID(ch.ID)
	require.NoError(t, err)
	assert.False(t, channel.HasGroup(subscription.ExclusiveGroupName(user.ID)))
}

func TestSubscriptionService_AdminGrant_Errors(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)
	disabled := testutil.TestPlan(t, env.db, testutil.WithPlanStatus(subscription.PlanDisabled))

	_, err := env.subs.AdminGrant(ctx, 99999, &dto.GrantSubscriptionRequest{SubscriptionID: disabled.ID})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = env.subs.AdminGrant(ctx, user.ID, &dto.GrantSubscriptionRequest{SubscriptionID: 99999})
	assert.ErrorIs(t, err, ErrPlanNotFound)

	_, err = env.subs.AdminGrant(ctx, user.ID, &dto.GrantSubscriptionRequest{SubscriptionID: disabled.ID})
	assert.ErrorIs(t, err, ErrPlanDisabled)
}

func TestSubscriptionService_AdminUpdate(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)
	plan := testutil.TestPlan(t, env.db)
	other := testutil.TestPlan(t, env.db)
	us := testutil.TestUserSubscription(t, env.db, user.ID, plan.ID)

	newExpire := time.Now().Add(90 * 24 * time.Hour).Unix()
	updated, err := env.subs.AdminUpdate(ctx, user.ID, us.ID, &dto.UpdateUserSubscriptionRequest{
		SubscriptionID: &other.ID,
		ExpireTime:     &newExpire,
	})
	require.NoError(t, err)
	assert.Equal(t, other.ID, updated.SubscriptionID)
	assert.Equal(t, newExpire, updated.ExpireTime)
}

func TestSubscriptionService_AdminUpdate_Errors(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)
	plan := testutil.TestPlan(t, env.db)
	us := testutil.TestUserSubscription(t, env.db, user.ID, plan.ID)
	cancelled := testutil.TestUserSubscription(t, env.db, user.ID, plan.ID,
		testutil.WithStatus(subscription.StatusCancelled))

	past := time.Now().Add(-time.Hour).Unix()
	_, err := env.subs.AdminUpdate(ctx, user.ID, us.ID, &dto.UpdateUserSubscriptionRequest{ExpireTime: &past})
	assert.ErrorIs(t, err, ErrInvalidExpireTime)

	_, err = env.subs.AdminUpdate(ctx, user.ID, us.ID, &dto.UpdateUserSubscriptionRequest{})
	assert.ErrorIs(t, err, ErrNothingToUpdate)

	same := plan.ID
	_, err = env.subs.AdminUpdate(ctx, user.ID, us.ID, &dto.UpdateUserSubscriptionRequest{SubscriptionID: &same})
	assert.ErrorIs(t, err, ErrNothingToUpdate)

	future := time.Now().Add(time.Hour).Unix()
	_, err = env.subs.AdminUpdate(ctx, user.ID, cancelled.ID, &dto.UpdateUserSubscriptionRequest{ExpireTime: &future})
	assert.ErrorIs(t, err, ErrSubscriptionNotActive)

	_, err = env.subs.AdminUpdate(ctx, user.ID+1000, us.ID, &dto.UpdateUserSubscriptionRequest{ExpireTime: &future})
	assert.ErrorIs(t, err, ErrUserSubscriptionNotFound)

	missing := int64(99999)
	_, err = env.subs.AdminUpdate(ctx, user.ID, us.ID, &dto.UpdateUserSubscriptionRequest{SubscriptionID: &missing})
	assert.ErrorIs(t, err, ErrPlanNotFound)

	disabled := testutil.TestPlan(t, env.db, testutil.WithPlanStatus(subscription.PlanDisabled))
	_, err = env.subs.AdminUpdate(ctx, user.ID, us.ID, &dto.UpdateUserSubscriptionRequest{SubscriptionID: &disabled.ID})
	assert.ErrorIs(t, err, ErrPlanDisabled)

	stored, err := env.usRepo.GetByID(us.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, stored.SubscriptionID)
}

func TestSubscriptionService_AdminOperationsWriteSystemLogs(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)
	plan := testutil.TestPlan(t, env.db)
	other := testutil.TestPlan(t, env.db)

	granted, err := env.subs.AdminGrant(ctx, user.ID, &dto.GrantSubscriptionRequest{SubscriptionID: plan.ID})
	require.NoError(t, err)

	_, err = env.subs.AdminUpdate(ctx, user.ID, granted.ID, &dto.UpdateUserSubscriptionRequest{SubscriptionID: &other.ID})
	require.NoError(t, err)

	require.NoError(t, env.subs.AdminCancel(ctx, user.ID, granted.ID))

	// 失败的操作不记录
	_, err = env.subs.AdminUpdate(ctx, user.ID, granted.ID, &dto.UpdateUserSubscriptionRequest{SubscriptionID: &plan.ID})
	require.ErrorIs(t, err, ErrSubscriptionNotActive)

	logs, total, err := env.logRepo.List(repository.LogFilter{Type: model.LogTypeSystem, UserID: user.ID}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)

	var contents []string
	for _, l := range logs {
		assert.Equal(t, model.LogTypeSystem, l.Type)
		contents = append(contents, l.Content)
	}
	joined := strings.Join(contents, "\n")
	assert.Contains(t, joined, "管理员开通订阅")
	assert.Contains(t, joined, fmt.Sprintf("套餐 %d -> %d", plan.ID, other.ID))
	assert.Contains(t, joined, "管理员取消订阅")
}

func TestSubscriptionService_AdminCancel(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)
	plan := testutil.TestPlan(t, env.db)
	us := testutil.TestUserSubscription(t, env.db, user.ID, plan.ID)

	// 先写入缓存，取消后应失效
	_, err := env.subs.GetActiveSubscription(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, env.subs.AdminCancel(ctx, user.ID, us.ID))

	stored, err := env.usRepo.GetByID(us.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, stored.Status)

	_, err = env.subs.GetActiveSubscription(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNoActiveSubscription)

	// 终态不能再次取消
	err = env.subs.AdminCancel(ctx, user.ID, us.ID)
	assert.ErrorIs(t, err, ErrSubscriptionNotActive)
}

func TestSubscriptionService_ExpireDue(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)
	plan := testutil.TestPlan(t, env.db)
	past := time.Now().Add(-time.Minute).Unix()
	due1 := testutil.TestUserSubscription(t, env.db, user.ID, plan.ID, testutil.WithExpireTime(past))
	due2 := testutil.TestUserSubscription(t, env.db, user.ID, plan.ID, testutil.WithExpireTime(past))
	live := testutil.TestUserSubscription(t, env.db, user.ID, plan.ID)

	n, err := env.subs.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []int64{due1.ID, due2.ID} {
		stored, err := env.usRepo.GetByID(id)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusExpired, stored.Status)
	}
	stored, err := env.usRepo.GetByID(live.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, stored.Status)

	n, err = env.subs.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSubscriptionService_UsagePanelFromAggregate(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := testutil.TestUser(t, env.db)
	plan := testutil.TestPlan(t, env.db, testutil.WithLimits(100, 0, 1000))
	us := testutil.TestUserSubscription(t, env.db, user.ID, plan.ID)
	require.NoError(t, env.quota.Consume(ctx, us, plan.Limits(), 95))

	list, _, err := env.subs.ListUserSubscriptions(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	limits := list[0].SubscriptionInfo.Limits()
	panels := quota.Aggregate(&limits, list[0].Used())

	require.Len(t, panels, 3)
	assert.Equal(t, quota.TierAlert, panels[0].Tier)
	assert.True(t, panels[1].Usage.Unlimited)
	assert.Equal(t, quota.TierBase, panels[2].Tier)
}
