package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/subhub/config"
	"github.com/qs3c/subhub/internal/database"
	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/pkg/cache"
	"github.com/qs3c/subhub/internal/pkg/jwt"
	"github.com/qs3c/subhub/internal/pkg/logger"
	"github.com/qs3c/subhub/internal/pkg/pubsub"
	"github.com/qs3c/subhub/internal/repository"
	"github.com/qs3c/subhub/internal/service"
)

var (
	dryRun      = flag.Bool("dry-run", true, "Only report what would change")
	expireSubs  = flag.Bool("expire", true, "Mark overdue active subscriptions as expired")
	purgeCodes  = flag.Bool("purge-codes", true, "Delete used, disabled and expired redemption codes")
	issueToken  = flag.Bool("issue-token", false, "Print an access token for -user-id and exit")
	tokenUserID = flag.Int64("user-id", 0, "User id for -issue-token")
	tokenHours  = flag.Int("hours", 0, "Token lifetime in hours, 0 uses jwt.expire_hours")
)

func main() {
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log)
	log := logger.WithComponent("cleanup")

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect database")
	}
	userRepo := repository.NewUserRepository(db)

	if *issueToken {
		if err := printToken(userRepo, cfg); err != nil {
			log.WithError(err).Fatal("Failed to issue token")
		}
		return
	}

	log.WithField("dry_run", *dryRun).Info("Starting maintenance task")

	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect redis")
	}
	defer rdb.Close()

	usRepo := repository.NewUserSubscriptionRepository(db)
	codeRepo := repository.NewRedemptionRepository(db)
	now := time.Now().Unix()

	if *expireSubs {
		if *dryRun {
			due, err := usRepo.ListDueForExpiry(now, 10000)
			if err != nil {
				log.WithError(err).Fatal("Failed to list overdue subscriptions")
			}
			log.WithField("count", len(due)).Info("Subscriptions that would be expired")
		} else {
			subService := service.NewSubscriptionService(
				repository.NewSubscriptionRepository(db), usRepo, userRepo, repository.NewChannelRepository(db), repository.NewLogRepository(db),
				service.NewQuotaService(rdb, cfg.Quota.Location()),
				cache.NewSubscriptionCache(rdb, cfg.Quota.CacheTTL()), pubsub.NewPublisher(rdb), cfg,
			)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			n, err := subService.ExpireDue(ctx)
			cancel()
			if err != nil {
				log.WithError(err).Error("Failed to expire subscriptions")
			}
			log.WithField("count", n).Info("Expired subscriptions")
		}
	}

	if *purgeCodes {
		var n int64
		if *dryRun {
			n, err = codeRepo.CountInvalid(now)
		} else {
			n, err = codeRepo.DeleteInvalid(now)
		}
		if err != nil {
			log.WithError(err).Fatal("Failed to purge redemption codes")
		}
		log.WithFields(logrus.Fields{"count": n, "dry_run": *dryRun}).Info("Invalid redemption codes")
	}

	if *dryRun {
		log.Info("Dry run finished, run with -dry-run=false to apply")
	}
}

// printToken 令牌在站外签发，控制台通过配置读取
func printToken(userRepo *repository.UserRepository, cfg *config.Config) error {
	if *tokenUserID <= 0 {
		return fmt.Errorf("-user-id is required")
	}
	user, err := userRepo.GetByID(*tokenUserID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", *tokenUserID, err)
	}
	if user.Status != model.UserStatusEnabled {
		return fmt.Errorf("user %d is disabled", user.ID)
	}

	hours := *tokenHours
	if hours <= 0 {
		hours = cfg.JWT.ExpireHours
	}
	token, err := jwt.GenerateToken(user.ID, user.Role, cfg.JWT.Secret, hours)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
