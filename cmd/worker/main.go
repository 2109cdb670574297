package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/qs3c/subhub/config"
	"github.com/qs3c/subhub/internal/database"
	"github.com/qs3c/subhub/internal/pkg/cache"
	"github.com/qs3c/subhub/internal/pkg/cron"
	"github.com/qs3c/subhub/internal/pkg/logger"
	"github.com/qs3c/subhub/internal/pkg/pubsub"
	"github.com/qs3c/subhub/internal/pkg/queue"
	"github.com/qs3c/subhub/internal/repository"
	"github.com/qs3c/subhub/internal/service"
	"github.com/qs3c/subhub/internal/worker"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log)
	log := logger.WithComponent("worker")

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

	// 初始化 Queue 和 Pub/Sub
	usageQueue := queue.NewQueue(rdb, cfg.Queue.UsageQueue)
	publisher := pubsub.NewPublisher(rdb)
	subCache := cache.NewSubscriptionCache(rdb, cfg.Quota.CacheTTL())

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewSubscriptionRepository(db)
	usRepo := repository.NewUserSubscriptionRepository(db)
	codeRepo := repository.NewRedemptionRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	logRepo := repository.NewLogRepository(db)

	quotaService := service.NewQuotaService(rdb, cfg.Quota.Location())
	subService := service.NewSubscriptionService(planRepo, usRepo, userRepo, channelRepo, logRepo, quotaService, subCache, publisher, cfg)
	redemptionService := service.NewRedemptionService(codeRepo, planRepo, usRepo, userRepo, channelRepo, logRepo, subCache, publisher)

	// 定时任务：订阅过期扫描 + 兑换码清理
	cronService := cron.NewService(
		subService,
		redemptionService,
		time.Duration(cfg.Cron.ExpireIntervalMinutes)*time.Minute,
		time.Duration(cfg.Cron.PurgeIntervalHours)*time.Hour,
	)
	cronService.Start()

	// 创建 context 用于优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	processor := worker.NewProcessor(logRepo)

	workers := cfg.Queue.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	log.WithField("max_workers", workers).Info("Worker started")

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			processor.Run(ctx, usageQueue, workerID)
		}(i)
	}

	<-ctx.Done()
	log.Info("Received shutdown signal")
	cronService.Stop()
	wg.Wait()
	_ = rdb.Close()
	log.Info("Worker shutdown complete")
}
