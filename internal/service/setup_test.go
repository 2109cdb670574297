package service

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/qs3c/subhub/config"
	"github.com/qs3c/subhub/internal/pkg/cache"
	"github.com/qs3c/subhub/internal/pkg/pubsub"
	"github.com/qs3c/subhub/internal/pkg/queue"
	"github.com/qs3c/subhub/internal/pkg/sticky"
	"github.com/qs3c/subhub/internal/repository"
	"github.com/qs3c/subhub/internal/testutil"
)

// testEnv 一套完整的服务，数据库用 SQLite 内存库，Redis 用 miniredis
type testEnv struct {
	db  *gorm.DB
	rdb *redis.Client
	mr  *miniredis.Miniredis
	cfg *config.Config

	userRepo    *repository.UserRepository
	planRepo    *repository.SubscriptionRepository
	usRepo      *repository.UserSubscriptionRepository
	codeRepo    *repository.RedemptionRepository
	channelRepo *repository.ChannelRepository
	optionRepo  *repository.OptionRepository
	logRepo     *repository.LogRepository

	cache      *cache.SubscriptionCache
	usageQueue *queue.Queue

	quota      *QuotaService
	subs       *SubscriptionService
	redemption *RedemptionService
	exclusive  *ExclusiveService
	checkin    *CheckinService
	logs       *LogService
	usage      *UsageService
	sticky     *StickySessionService
	discount   *DiscountService
	options    *OptionService
	users      *UserService
}

func setupEnv(t *testing.T) (*testEnv, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	rdb, mr, redisCleanup := testutil.SetupTestRedis(t)

	cfg := &config.Config{
		Quota:   config.QuotaConfig{Timezone: "Asia/Singapore", CacheMinutes: 30, DefaultDurationDay: 30},
		Checkin: config.CheckinConfig{Enabled: true, QuotaAmount: 500000, Group: "free"},
	}
	loc := cfg.Quota.Location()

	env := &testEnv{
		db:          db,
		rdb:         rdb,
		mr:          mr,
		cfg:         cfg,
		userRepo:    repository.NewUserRepository(db),
		planRepo:    repository.NewSubscriptionRepository(db),
		usRepo:      repository.NewUserSubscriptionRepository(db),
		codeRepo:    repository.NewRedemptionRepository(db),
		channelRepo: repository.NewChannelRepository(db),
		optionRepo:  repository.NewOptionRepository(db),
		logRepo:     repository.NewLogRepository(db),
		cache:       cache.NewSubscriptionCache(rdb, cfg.Quota.CacheTTL()),
		usageQueue:  queue.NewQueue(rdb, queue.DefaultUsageQueue),
	}
	publisher := pubsub.NewPublisher(rdb)

	env.quota = NewQuotaService(rdb, loc)
	env.subs = NewSubscriptionService(env.planRepo, env.usRepo, env.userRepo, env.channelRepo, env.logRepo,
		env.quota, env.cache, publisher, cfg)
	// 测试中同步落库，避免和断言竞争
	env.subs.async = func(fn func()) { fn() }
	env.redemption = NewRedemptionService(env.codeRepo, env.planRepo, env.usRepo, env.userRepo,
		env.channelRepo, env.logRepo, env.cache, publisher)
	env.exclusive = NewExclusiveService(env.usRepo, env.userRepo, env.channelRepo, env.subs)
	env.checkin = NewCheckinService(rdb, env.optionRepo, env.logRepo, cfg.Checkin, loc)
	env.logs = NewLogService(env.logRepo)
	env.sticky = NewStickySessionService(env.channelRepo, env.logRepo, sticky.NewStore(rdb, loc))
	env.usage = NewUsageService(env.subs, env.quota, env.checkin, env.userRepo, env.usRepo,
		env.logs, env.usageQueue, env.sticky)
	env.discount = NewDiscountService(env.userRepo)
	env.options = NewOptionService(env.optionRepo)
	env.users = NewUserService(env.userRepo)

	cleanup := func() {
		redisCleanup()
		testutil.CleanupTestDB(t, db)
	}
	return env, cleanup
}

// setNow 固定所有服务的当前时间
func (e *testEnv) setNow(now time.Time) {
	fn := func() time.Time { return now }
	e.quota.now = fn
	e.subs.now = fn
	e.redemption.now = fn
	e.exclusive.now = fn
	e.checkin.now = fn
	e.logs.now = fn
	e.usage.now = fn
}
