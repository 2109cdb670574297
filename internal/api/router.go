package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/qs3c/subhub/config"
	"github.com/qs3c/subhub/internal/api/handler"
	"github.com/qs3c/subhub/internal/api/middleware"
	"github.com/qs3c/subhub/internal/metrics"
)

type Router struct {
	userHandler         *handler.UserHandler
	subscriptionHandler *handler.SubscriptionHandler
	redemptionHandler   *handler.RedemptionHandler
	exclusiveHandler    *handler.ExclusiveHandler
	checkinHandler      *handler.CheckinHandler
	discountHandler     *handler.DiscountHandler
	optionHandler       *handler.OptionHandler
	logHandler          *handler.LogHandler
	usageHandler        *handler.UsageHandler
	stickyHandler       *handler.StickySessionHandler
	log                 *logrus.Entry
	cfg                 *config.Config
}

func NewRouter(
	userHandler *handler.UserHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	redemptionHandler *handler.RedemptionHandler,
	exclusiveHandler *handler.ExclusiveHandler,
	checkinHandler *handler.CheckinHandler,
	discountHandler *handler.DiscountHandler,
	optionHandler *handler.OptionHandler,
	logHandler *handler.LogHandler,
	usageHandler *handler.UsageHandler,
	stickyHandler *handler.StickySessionHandler,
	log *logrus.Entry,
	cfg *config.Config,
) *Router {
	return &Router{
		userHandler:         userHandler,
		subscriptionHandler: subscriptionHandler,
		redemptionHandler:   redemptionHandler,
		exclusiveHandler:    exclusiveHandler,
		checkinHandler:      checkinHandler,
		discountHandler:     discountHandler,
		optionHandler:       optionHandler,
		logHandler:          logHandler,
		usageHandler:        usageHandler,
		stickyHandler:       stickyHandler,
		log:                 log,
		cfg:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(r.log))
	engine.Use(metrics.Middleware())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/metrics", metrics.Handler())

	api := engine.Group("/api")

	// 登录用户
	authenticated := api.Group("")
	authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
	{
		user := authenticated.Group("/user")
		{
			user.GET("/self", r.userHandler.GetProfile)
			user.POST("/topup", r.redemptionHandler.TopUp)
			user.GET("/checkin", r.checkinHandler.Info)
			user.POST("/checkin", r.checkinHandler.Checkin)
		}

		userSub := authenticated.Group("/subscription/user")
		{
			userSub.GET("/", r.subscriptionHandler.ListSelf)
			userSub.GET("/active", r.subscriptionHandler.GetActive)
			userSub.GET("/logs", r.subscriptionHandler.ListLogs)
			userSub.GET("/:id/quota", r.subscriptionHandler.GetQuota)
		}

		authenticated.GET("/subscription/exclusive/self", r.exclusiveHandler.Self)
		authenticated.GET("/discount/self", r.discountHandler.Self)
		authenticated.GET("/option/:key", r.optionHandler.Get)
	}

	// 管理员
	admin := api.Group("")
	admin.Use(middleware.Auth(r.cfg.JWT.Secret), middleware.AdminOnly())
	{
		plans := admin.Group("/subscription")
		{
			plans.GET("/", r.subscriptionHandler.ListPlans)
			plans.POST("/", r.subscriptionHandler.CreatePlan)
			plans.GET("/:id", r.subscriptionHandler.GetPlan)
			plans.PUT("/:id", r.subscriptionHandler.UpdatePlan)
			plans.DELETE("/:id", r.subscriptionHandler.DeletePlan)
			plans.POST("/redemption", r.redemptionHandler.GenerateSubscription)
		}

		exclusive := admin.Group("/subscription/exclusive")
		{
			exclusive.GET("/users", r.exclusiveHandler.ListUsers)
			exclusive.GET("/available_channels", r.exclusiveHandler.AvailableChannels)
			exclusive.GET("/user/:userId/channels", r.exclusiveHandler.ListUserChannels)
			exclusive.POST("/user/:userId/channel", r.exclusiveHandler.Bind)
			exclusive.DELETE("/user/:userId/channel/:channelId", r.exclusiveHandler.Unbind)
		}

		userAdmin := admin.Group("/user/:id")
		{
			userAdmin.GET("/subscriptions", r.subscriptionHandler.AdminList)
			userAdmin.POST("/subscription", r.subscriptionHandler.AdminGrant)
			userAdmin.PUT("/subscription/:subId", r.subscriptionHandler.AdminUpdate)
			userAdmin.DELETE("/subscription/:subId", r.subscriptionHandler.AdminCancel)
		}

		redemption := admin.Group("/redemption")
		{
			redemption.GET("/", r.redemptionHandler.List)
			redemption.POST("/", r.redemptionHandler.GenerateQuota)
			redemption.DELETE("/invalid", r.redemptionHandler.DeleteInvalid)
		}

		discount := admin.Group("/discount")
		{
			discount.GET("/users", r.discountHandler.List)
			discount.POST("/batch", r.discountHandler.BatchSet)
			discount.POST("/user/:id", r.discountHandler.Set)
		}

		option := admin.Group("/option")
		{
			option.GET("/", r.optionHandler.List)
			option.PUT("/", r.optionHandler.Update)
			option.GET("/checkin", r.checkinHandler.GetConfig)
			option.PUT("/checkin", r.checkinHandler.SetConfig)
		}

		logs := admin.Group("/log")
		{
			logs.GET("/", r.logHandler.List)
			logs.DELETE("/batch", r.logHandler.DeleteBatch)
			logs.DELETE("/error/clear", r.logHandler.ClearErrors)
			logs.DELETE("/:id", r.logHandler.Delete)
		}

		usage := admin.Group("/usage")
		{
			usage.POST("/consume", r.usageHandler.Consume)
			usage.POST("/return", r.usageHandler.Return)
			usage.GET("/sticky_session", r.stickyHandler.Resolve)
		}

		channel := admin.Group("/channel")
		{
			channel.GET("/sticky_sessions/stats", r.stickyHandler.Stats)
			channel.GET("/:id/sticky_sessions", r.stickyHandler.List)
			channel.DELETE("/:id/sticky_sessions", r.stickyHandler.ReleaseAll)
			channel.DELETE("/:id/sticky_sessions/:session_hash", r.stickyHandler.Release)
		}
	}

	return engine
}
