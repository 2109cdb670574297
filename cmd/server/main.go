package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qs3c/subhub/config"
	"github.com/qs3c/subhub/internal/api"
	"github.com/qs3c/subhub/internal/api/handler"
	"github.com/qs3c/subhub/internal/database"
	"github.com/qs3c/subhub/internal/pkg/cache"
	"github.com/qs3c/subhub/internal/pkg/logger"
	"github.com/qs3c/subhub/internal/pkg/pubsub"
	"github.com/qs3c/subhub/internal/pkg/queue"
	"github.com/qs3c/subhub/internal/pkg/sticky"
	"github.com/qs3c/subhub/internal/repository"
	"github.com/qs3c/subhub/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log)
	log := logger.WithComponent("server")

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect database")
	}
	log.Info("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect redis")
	}
	log.Info("Redis connected")

	loc := cfg.Quota.Location()
	subCache := cache.NewSubscriptionCache(rdb, cfg.Quota.CacheTTL())
	publisher := pubsub.NewPublisher(rdb)
	usageQueue := queue.NewQueue(rdb, cfg.Queue.UsageQueue)

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewSubscriptionRepository(db)
	usRepo := repository.NewUserSubscriptionRepository(db)
	codeRepo := repository.NewRedemptionRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	optionRepo := repository.NewOptionRepository(db)
	logRepo := repository.NewLogRepository(db)

	// 初始化 Service
	quotaService := service.NewQuotaService(rdb, loc)
	subService := service.NewSubscriptionService(planRepo, usRepo, userRepo, channelRepo, logRepo, quotaService, subCache, publisher, cfg)
	redemptionService := service.NewRedemptionService(codeRepo, planRepo, usRepo, userRepo, channelRepo, logRepo, subCache, publisher)
	exclusiveService := service.NewExclusiveService(usRepo, userRepo, channelRepo, subService)
	checkinService := service.NewCheckinService(rdb, optionRepo, logRepo, cfg.Checkin, loc)
	logService := service.NewLogService(logRepo)
	stickyService := service.NewStickySessionService(channelRepo, logRepo, sticky.NewStore(rdb, loc))
	usageService := service.NewUsageService(subService, quotaService, checkinService, userRepo, usRepo, logService, usageQueue, stickyService)
	discountService := service.NewDiscountService(userRepo)
	optionService := service.NewOptionService(optionRepo)
	userService := service.NewUserService(userRepo)

	// 初始化 Router
	router := api.NewRouter(
		handler.NewUserHandler(userService),
		handler.NewSubscriptionHandler(subService, logService),
		handler.NewRedemptionHandler(redemptionService),
		handler.NewExclusiveHandler(exclusiveService),
		handler.NewCheckinHandler(checkinService),
		handler.NewDiscountHandler(discountService),
		handler.NewOptionHandler(optionService),
		handler.NewLogHandler(logService),
		handler.NewUsageHandler(usageService),
		handler.NewStickySessionHandler(stickyService),
		logger.WithComponent("http"),
		cfg,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 其他实例（包括 worker）改动订阅后通过事件通知，这里统一失效缓存
	go func() {
		subscriber := pubsub.NewSubscriber(rdb)
		err := subscriber.Subscribe(ctx, func(evt *pubsub.SubscriptionEvent) {
			if err := subCache.Invalidate(ctx, evt.UserID); err != nil {
				log.WithError(err).WithField("user_id", evt.UserID).Warn("Failed to invalidate subscription cache")
			}
			log.WithFields(map[string]interface{}{
				"type":                 evt.Type,
				"user_id":              evt.UserID,
				"user_subscription_id": evt.UserSubscriptionID,
			}).Debug("Subscription event")
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Subscription event listener stopped")
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	_ = rdb.Close()
	log.Info("Server exited")
}
