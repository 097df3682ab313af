package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studyhub-session-svc/src/clients"
	"studyhub-session-svc/src/internal/config"
	"studyhub-session-svc/src/internal/dependency"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var log = logrus.StandardLogger()

type Server struct {
	cfg *config.Configuration
}

func New(cfg *config.Configuration) *Server {
	return &Server{cfg: cfg}
}

// Start connects the backing services, wires dependencies, launches the
// expiry sweeper and serves HTTP until a shutdown signal arrives.
func (s *Server) Start() error {
	cfg := s.cfg

	mongodb, err := clients.NewMongoDB(&cfg.Database)
	if err != nil {
		return err
	}

	redisClient, err := clients.NewRedisClient(&cfg.Redis)
	if err != nil {
		return err
	}

	rabbitMQ, err := clients.NewRabbitMQ(&cfg.Queue)
	if err != nil {
		return err
	}

	if err := rabbitMQ.SetupExchange(); err != nil {
		return err
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())

	deps := dependency.NewDependencyManager(router, mongodb, redisClient, rabbitMQ, cfg)

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), time.Duration(cfg.Database.Timeout)*time.Second)
	err = deps.SessionRepo.EnsureIndexes(indexCtx)
	cancelIndex()
	if err != nil {
		return err
	}

	SetupRoutes(deps)

	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	go deps.Sweeper.Run(sweeperCtx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on :%s", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		stopSweeper()
		return err
	case sig := <-quit:
		log.Infof("Received signal %s, shutting down...", sig)
	}

	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.App.Timeout)*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	if err := rabbitMQ.Close(); err != nil {
		log.WithError(err).Error("Failed to close RabbitMQ")
	}
	if err := redisClient.Close(); err != nil {
		log.WithError(err).Error("Failed to close Redis")
	}
	if err := mongodb.Close(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to close MongoDB")
	}

	log.Info("Shutdown complete")
	return nil
}
