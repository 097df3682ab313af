package dependency

import (
	"studyhub-session-svc/src/clients"
	"studyhub-session-svc/src/internal/cache"
	"studyhub-session-svc/src/internal/config"
	"studyhub-session-svc/src/internal/session"
	"studyhub-session-svc/src/internal/user"

	"github.com/gin-gonic/gin"
)

type Manager struct {
	Router            *gin.Engine
	Config            *config.Configuration
	Mongodb           *clients.MongoDB
	Redis             *clients.RedisClient
	RabbitMQ          *clients.RabbitMQ
	CacheService      cache.Service
	ActivityPublisher *clients.ActivityPublisher
	UserRepo          user.Repository
	UserService       user.Service
	UserHandler       user.Handler
	SessionRepo       session.Repository
	SessionService    session.Service
	SessionHandler    session.Handler
	Sweeper           *session.Sweeper
}

func NewDependencyManager(router *gin.Engine,
	mongodb *clients.MongoDB,
	redisClient *clients.RedisClient,
	rabbitMQ *clients.RabbitMQ,
	cfg *config.Configuration) *Manager {
	cacheService := cache.NewCacheService(redisClient.Client, cfg)
	activityPublisher := clients.NewActivityPublisher(cfg, rabbitMQ.Channel)
	userRepo := user.NewUserRepository(mongodb, cfg.Database.UserCollection)
	userService := user.NewUserService(userRepo, cfg)
	userHandler := user.NewHandler(cfg, userService, cacheService)
	sessionRepo := session.NewSessionRepository(mongodb, cfg.Database.SessionCollection)
	sessionService := session.NewSessionService(sessionRepo, userRepo, cacheService, activityPublisher, cfg)
	sessionHandler := session.NewHandler(cfg, sessionService)
	sweeper := session.NewSweeper(sessionRepo, sessionService, cfg)

	return &Manager{
		Router:            router,
		Config:            cfg,
		Mongodb:           mongodb,
		Redis:             redisClient,
		RabbitMQ:          rabbitMQ,
		CacheService:      cacheService,
		ActivityPublisher: activityPublisher,
		UserRepo:          userRepo,
		UserService:       userService,
		UserHandler:       userHandler,
		SessionRepo:       sessionRepo,
		SessionService:    sessionService,
		SessionHandler:    sessionHandler,
		Sweeper:           sweeper,
	}
}
