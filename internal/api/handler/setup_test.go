package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/subhub/config"
	"github.com/qs3c/subhub/internal/api/middleware"
	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/pkg/cache"
	"github.com/qs3c/subhub/internal/pkg/pubsub"
	"github.com/qs3c/subhub/internal/pkg/queue"
	"github.com/qs3c/subhub/internal/pkg/sticky"
	"github.com/qs3c/subhub/internal/pkg/response"
	"github.com/qs3c/subhub/internal/repository"
	"github.com/qs3c/subhub/internal/service"
	"github.com/qs3c/subhub/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testContext 本地测试上下文
type testContext struct {
	DB *gorm.DB

	subscription *SubscriptionHandler
	redemption   *RedemptionHandler
	exclusive    *ExclusiveHandler
	checkin      *CheckinHandler
	discount     *DiscountHandler
	option       *OptionHandler
	log          *LogHandler
	usage        *UsageHandler
	sticky       *StickySessionHandler
	user         *UserHandler
}

func setupHandlers(t *testing.T) (*testContext, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	rdb, _, redisCleanup := testutil.SetupTestRedis(t)

	cfg := &config.Config{
		Quota:   config.QuotaConfig{Timezone: "Asia/Singapore", CacheMinutes: 30, DefaultDurationDay: 30},
		Checkin: config.CheckinConfig{Enabled: true, QuotaAmount: 500000, Group: "free"},
	}
	loc := cfg.Quota.Location()

	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewSubscriptionRepository(db)
	usRepo := repository.NewUserSubscriptionRepository(db)
	codeRepo := repository.NewRedemptionRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	optionRepo := repository.NewOptionRepository(db)
	logRepo := repository.NewLogRepository(db)

	subCache := cache.NewSubscriptionCache(rdb, cfg.Quota.CacheTTL())
	publisher := pubsub.NewPublisher(rdb)
	usageQueue := queue.NewQueue(rdb, queue.DefaultUsageQueue)

	quotaService := service.NewQuotaService(rdb, loc)
	subService := service.NewSubscriptionService(planRepo, usRepo, userRepo, channelRepo, logRepo, quotaService, subCache, publisher, cfg)
	redemptionService := service.NewRedemptionService(codeRepo, planRepo, usRepo, userRepo, channelRepo, logRepo, subCache, publisher)
	exclusiveService := service.NewExclusiveService(usRepo, userRepo, channelRepo, subService)
	checkinService := service.NewCheckinService(rdb, optionRepo, logRepo, cfg.Checkin, loc)
	logService := service.NewLogService(logRepo)
	stickyService := service.NewStickySessionService(channelRepo, logRepo, sticky.NewStore(rdb, loc))
	usageService := service.NewUsageService(subService, quotaService, checkinService, userRepo, usRepo, logService, usageQueue, stickyService)

	ctx := &testContext{
		DB:           db,
		subscription: NewSubscriptionHandler(subService, logService),
		redemption:   NewRedemptionHandler(redemptionService),
		exclusive:    NewExclusiveHandler(exclusiveService),
		checkin:      NewCheckinHandler(checkinService),
		discount:     NewDiscountHandler(service.NewDiscountService(userRepo)),
		option:       NewOptionHandler(service.NewOptionService(optionRepo)),
		log:          NewLogHandler(logService),
		usage:        NewUsageHandler(usageService),
		sticky:       NewStickySessionHandler(stickyService),
		user:         NewUserHandler(service.NewUserService(userRepo)),
	}

	cleanup := func() {
		redisCleanup()
		testutil.CleanupTestDB(t, db)
	}

	return ctx, cleanup
}

// mockAuth 模拟认证中间件
func mockAuth(userID int64) gin.HandlerFunc {
	return mockAuthWithRole(userID, model.RoleCommonUser)
}

func mockAuthWithRole(userID int64, role int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Set(middleware.RoleKey, role)
		c.Next()
	}
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

// parsePage 解析分页响应的 data
func parsePage(t *testing.T, resp response.Response) (items []interface{}, total float64) {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data should be a page object")
	total, _ = data["total"].(float64)
	items, _ = data["items"].([]interface{})
	return items, total
}
