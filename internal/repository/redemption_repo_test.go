package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/testutil"
)

func TestRedemptionRepository_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewRedemptionRepository(db)
	items := []*model.Redemption{
		{Key: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Name: "batch", Type: model.RedemptionTypeQuota, Status: model.RedemptionStatusEnabled, Quota: 10},
		{Key: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", Name: "batch", Type: model.RedemptionTypeQuota, Status: model.RedemptionStatusEnabled, Quota: 10},
	}
	require.NoError(t, repo.CreateBatch(items))
	require.NoError(t, repo.CreateBatch(nil))

	found, err := repo.GetByKey("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	require.NoError(t, err)
	assert.Equal(t, items[1].ID, found.ID)

	_, err = repo.GetByKeyForUpdate("missing")
	assert.Error(t, err)
}

func TestRedemptionRepository_MarkUsedOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewRedemptionRepository(db)
	code := testutil.TestRedemption(t, db)
	now := time.Now().Unix()

	ok, err := repo.MarkUsed(code.ID, 7, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkUsed(code.ID, 8, now)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.GetByKey(code.Key)
	require.NoError(t, err)
	assert.Equal(t, model.RedemptionStatusUsed, stored.Status)
	assert.Equal(t, int64(7), stored.UsedUserID)
	assert.Equal(t, now, stored.RedeemedTime)
}

func TestRedemptionRepository_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewRedemptionRepository(db)
	promo := testutil.TestRedemption(t, db, func(r *model.Redemption) { r.Name = "spring-promo" })
	testutil.TestRedemption(t, db)

	items, total, err := repo.List("", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	items, total, err = repo.List("promo", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, promo.ID, items[0].ID)

	// 按完整 key 精确查找
	items, _, err = repo.List(promo.Key, 1, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, promo.ID, items[0].ID)
}

func TestRedemptionRepository_InvalidCodes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewRedemptionRepository(db)
	now := time.Now().Unix()

	valid := testutil.TestRedemption(t, db)
	future := testutil.TestRedemption(t, db, testutil.WithCodeExpiredTime(now+3600))
	testutil.TestRedemption(t, db, testutil.WithCodeStatus(model.RedemptionStatusUsed))
	testutil.TestRedemption(t, db, testutil.WithCodeStatus(model.RedemptionStatusDisabled))
	testutil.TestRedemption(t, db, testutil.WithCodeExpiredTime(now-1))

	count, err := repo.CountInvalid(now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	deleted, err := repo.DeleteInvalid(now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	items, total, err := repo.List("", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	ids := []int64{items[0].ID, items[1].ID}
	assert.ElementsMatch(t, []int64{valid.ID, future.ID}, ids)

	count, err = repo.CountInvalid(now)
	require.NoError(t, err)
	assert.Zero(t, count)
}
