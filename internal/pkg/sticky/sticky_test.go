package sticky

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/subhub/internal/testutil"
)

func TestSessionHash(t *testing.T) {
	assert.Equal(t, "", SessionHash("   "))
	assert.Equal(t, "abc-123_X", SessionHash("user_9f_account__session_abc-123_X"))

	h := SessionHash("hello there")
	assert.Len(t, h, 16)
	assert.Equal(t, h, SessionHash("hello there"))
	assert.NotEqual(t, h, SessionHash("hello again"))

	// 只取前缀参与哈希
	long := strings.Repeat("a", hashContentLimit)
	assert.Equal(t, SessionHash(long), SessionHash(long+"tail"))
}

func TestParseMember(t *testing.T) {
	group, model, hash, ok := parseMember("default:llama3:8b:abc")
	require.True(t, ok)
	assert.Equal(t, "default", group)
	assert.Equal(t, "llama3:8b", model)
	assert.Equal(t, "abc", hash)

	_, _, _, ok = parseMember("broken")
	assert.False(t, ok)
}

func newTestStore(t *testing.T) (*Store, func(time.Duration), func()) {
	client, mr, cleanup := testutil.SetupTestRedis(t)
	return NewStore(client, time.UTC), mr.FastForward, cleanup
}

func TestStore_BindAndList(t *testing.T) {
	store, _, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	sess := &Session{SessionHash: "h1", ChannelID: 3, Group: "default", Model: "gpt-4o", UserID: 42, TokenName: "cli"}
	require.NoError(t, store.Bind(ctx, sess, Limits{TTL: 10 * time.Minute}))
	assert.NotZero(t, sess.CreatedAt)

	got, err := store.Get(ctx, "default", "gpt-4o", "h1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.ChannelID)
	assert.Equal(t, int64(42), got.UserID)

	list, err := store.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "h1", list[0].SessionHash)
	assert.Equal(t, "cli", list[0].TokenName)
	assert.InDelta(t, 600, list[0].TTL, 1)

	daily, err := store.DailyBindCount(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), daily)
}

func TestStore_RebindSameChannelOnlyRenews(t *testing.T) {
	store, forward, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	lim := Limits{TTL: 10 * time.Minute, DailyBindLimit: 1}
	require.NoError(t, store.Bind(ctx, &Session{SessionHash: "h", ChannelID: 1, Group: "g", Model: "m"}, lim))
	forward(8 * time.Minute)

	// 续期不占当日绑定次数
	require.NoError(t, store.Bind(ctx, &Session{SessionHash: "h", ChannelID: 1, Group: "g", Model: "m"}, lim))
	list, err := store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.InDelta(t, 600, list[0].TTL, 1)

	daily, err := store.DailyBindCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), daily)
}

func TestStore_RebindMovesBetweenChannels(t *testing.T) {
	store, _, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Bind(ctx, &Session{SessionHash: "h", ChannelID: 1, Group: "g", Model: "m"}, Limits{}))
	require.NoError(t, store.Bind(ctx, &Session{SessionHash: "h", ChannelID: 2, Group: "g", Model: "m"}, Limits{}))

	n1, err := store.Count(ctx, 1)
	require.NoError(t, err)
	n2, err := store.Count(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, n1)
	assert.Equal(t, 1, n2)
}

func TestStore_Limits(t *testing.T) {
	store, _, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	lim := Limits{MaxCount: 2}
	require.NoError(t, store.Bind(ctx, &Session{SessionHash: "a", ChannelID: 5, Group: "g", Model: "m"}, lim))
	require.NoError(t, store.Bind(ctx, &Session{SessionHash: "b", ChannelID: 5, Group: "g", Model: "m"}, lim))
	err := store.Bind(ctx, &Session{SessionHash: "c", ChannelID: 5, Group: "g", Model: "m"}, lim)
	assert.ErrorIs(t, err, ErrSessionLimit)

	daily := Limits{DailyBindLimit: 1}
	require.NoError(t, store.Bind(ctx, &Session{SessionHash: "a", ChannelID: 6, Group: "g", Model: "m"}, daily))
	err = store.Bind(ctx, &Session{SessionHash: "b", ChannelID: 6, Group: "g", Model: "m"}, daily)
	assert.ErrorIs(t, err, ErrDailyBindLimit)
}

func TestStore_ListPrunesExpired(t *testing.T) {
	store, forward, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Bind(ctx, &Session{SessionHash: "short", ChannelID: 1, Group: "g", Model: "m"}, Limits{TTL: time.Minute}))
	require.NoError(t, store.Bind(ctx, &Session{SessionHash: "long", ChannelID: 1, Group: "g", Model: "m"}, Limits{TTL: time.Hour}))
	forward(2 * time.Minute)

	list, err := store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "long", list[0].SessionHash)

	members, err := store.rdb.ZCard(ctx, indexKey(1)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), members)
}

func TestStore_Renew(t *testing.T) {
	store, forward, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Bind(ctx, &Session{SessionHash: "h", ChannelID: 1, Group: "g", Model: "m"}, Limits{TTL: 10 * time.Minute}))

	// 剩余超过一半不续期
	forward(2 * time.Minute)
	require.NoError(t, store.Renew(ctx, "g", "m", "h", 10*time.Minute))
	left, err := store.rdb.TTL(ctx, sessionKey("g", "m", "h")).Result()
	require.NoError(t, err)
	assert.Equal(t, 8*time.Minute, left)

	forward(5 * time.Minute)
	require.NoError(t, store.Renew(ctx, "g", "m", "h", 10*time.Minute))
	left, err = store.rdb.TTL(ctx, sessionKey("g", "m", "h")).Result()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, left)
}

func TestStore_Release(t *testing.T) {
	store, _, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	for _, h := range []string{"a", "b", "c"} {
		require.NoError(t, store.Bind(ctx, &Session{SessionHash: h, ChannelID: 9, Group: "g", Model: "m"}, Limits{}))
	}

	ok, err := store.Release(ctx, 9, "b")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Release(ctx, 9, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	gone, err := store.Get(ctx, "g", "m", "b")
	require.NoError(t, err)
	assert.Nil(t, gone)

	n, err := store.ReleaseAll(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := store.Count(ctx, 9)
	require.NoError(t, err)
	assert.Zero(t, count)

	n, err = store.ReleaseAll(ctx, 9)
	require.NoError(t, err)
	assert.Zero(t, n)
}
