package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/sticky"
	"github.com/qs3c/subhub/internal/repository"
	"github.com/qs3c/subhub/internal/testutil"
)

func bindReq(userID, channelID int64, sessionID string) *dto.ConsumeRequest {
	return &dto.ConsumeRequest{
		UserID:    userID,
		ChannelID: channelID,
		Group:     "default",
		ModelName: "gpt-4o",
		TokenName: "cli",
		SessionID: sessionID,
	}
}

func TestStickySessionService_ListAndStats(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	plain := testutil.TestChannel(t, env.db)
	ch := testutil.TestChannel(t, env.db, testutil.WithSticky(10, 30, 100))

	info, err := env.sticky.List(ctx, plain.ID)
	require.NoError(t, err)
	assert.False(t, info.Enabled)
	assert.NotNil(t, info.Sessions)
	assert.Empty(t, info.Sessions)

	bound, err := env.sticky.Bind(ctx, bindReq(1, plain.ID, "session_a"))
	require.NoError(t, err)
	assert.False(t, bound)

	for _, id := range []string{"session_a", "session_b"} {
		bound, err := env.sticky.Bind(ctx, bindReq(1, ch.ID, id))
		require.NoError(t, err)
		assert.True(t, bound)
	}

	info, err = env.sticky.List(ctx, ch.ID)
	require.NoError(t, err)
	assert.True(t, info.Enabled)
	assert.Equal(t, 2, info.SessionCount)
	assert.Equal(t, 30, info.TTLMinutes)
	assert.Equal(t, 10, info.MaxCount)
	assert.Equal(t, int64(2), info.DailyBindCount)
	require.Len(t, info.Sessions, 2)
	assert.Equal(t, "cli", info.Sessions[0].TokenName)

	stats, err := env.sticky.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, ch.ID, stats[0].ChannelID)
	assert.Equal(t, 2, stats[0].SessionCount)
	assert.Nil(t, stats[0].Sessions)

	_, err = env.sticky.List(ctx, 99999)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestStickySessionService_BindLimit(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	ch := testutil.TestChannel(t, env.db, testutil.WithSticky(1, 0, 0))

	bound, err := env.sticky.Bind(ctx, bindReq(1, ch.ID, "session_a"))
	require.NoError(t, err)
	assert.True(t, bound)

	// 渠道满了不报错，只是不绑定
	bound, err = env.sticky.Bind(ctx, bindReq(1, ch.ID, "session_b"))
	require.NoError(t, err)
	assert.False(t, bound)

	// 已绑定的会话续期不受上限影响
	bound, err = env.sticky.Bind(ctx, bindReq(1, ch.ID, "session_a"))
	require.NoError(t, err)
	assert.True(t, bound)
}

func TestStickySessionService_ReleaseWritesManageLog(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	admin := testutil.TestUser(t, env.db, testutil.WithRole(model.RoleAdminUser))
	ch := testutil.TestChannel(t, env.db, testutil.WithSticky(0, 0, 0))
	for _, id := range []string{"session_a", "session_b", "session_c"} {
		_, err := env.sticky.Bind(ctx, bindReq(1, ch.ID, id))
		require.NoError(t, err)
	}

	assert.ErrorIs(t, env.sticky.Release(ctx, admin.ID, ch.ID, "  "), ErrInvalidSessionHash)
	require.NoError(t, env.sticky.Release(ctx, admin.ID, ch.ID, "a"))
	// 重复释放也成功，但不再记日志
	require.NoError(t, env.sticky.Release(ctx, admin.ID, ch.ID, "a"))

	n, err := env.sticky.ReleaseAll(ctx, admin.ID, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = env.sticky.ReleaseAll(ctx, admin.ID, ch.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	logs, total, err := env.logRepo.List(repository.LogFilter{Type: model.LogTypeManage, UserID: admin.ID}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, logs, 2)
	assert.Contains(t, logs[0].Content+logs[1].Content, "共 2 条")

	assert.ErrorIs(t, env.sticky.Release(ctx, admin.ID, 99999, "a"), ErrChannelNotFound)
}

func TestStickySessionService_Resolve(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	ch := testutil.TestChannel(t, env.db, testutil.WithSticky(0, 0, 0))
	_, err := env.sticky.Bind(ctx, bindReq(1, ch.ID, "session_a"))
	require.NoError(t, err)

	id, err := env.sticky.Resolve(ctx, "default", "gpt-4o", "session_a")
	require.NoError(t, err)
	assert.Equal(t, ch.ID, id)

	id, err = env.sticky.Resolve(ctx, "default", "gpt-4o-mini", "session_a")
	require.NoError(t, err)
	assert.Zero(t, id)

	id, err = env.sticky.Resolve(ctx, "default", "gpt-4o", "")
	require.NoError(t, err)
	assert.Zero(t, id)

	// 渠道禁用后绑定失效并被清掉
	require.NoError(t, env.db.Model(&model.Channel{}).Where("id = ?", ch.ID).
		Update("status", model.ChannelStatusDisabled).Error)
	id, err = env.sticky.Resolve(ctx, "default", "gpt-4o", "session_a")
	require.NoError(t, err)
	assert.Zero(t, id)

	sess, err := sticky.NewStore(env.rdb, nil).Get(ctx, "default", "gpt-4o", "a")
	require.NoError(t, err)
	assert.Nil(t, sess)
}
