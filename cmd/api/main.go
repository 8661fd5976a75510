package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safar/pharmacy-pos/internal/api"
	"github.com/safar/pharmacy-pos/internal/config"
	"github.com/safar/pharmacy-pos/internal/database"
	"github.com/safar/pharmacy-pos/internal/events"
	"github.com/safar/pharmacy-pos/internal/logging"
	"github.com/safar/pharmacy-pos/internal/service"
	"github.com/safar/pharmacy-pos/internal/store"
	"github.com/safar/pharmacy-pos/internal/store/memory"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Load config")
	}

	logger := logging.NewLogger(cfg.Logging)

	repo, err := openRepository(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Open store")
	}
	defer repo.Close()

	publisher := openPublisher(cfg, logger)
	if closer, ok := publisher.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	svc := service.New(repo, publisher, logger, service.Options{
		LowStockThreshold: cfg.Inventory.LowStockThreshold,
		ExpiryWindow:      cfg.Inventory.ExpiryWindow,
	})
	handler := api.New(svc, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":       cfg.Server.Port,
			"store_mode": cfg.StoreMode,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}

	logger.Info("Server stopped")
}

func openRepository(cfg *config.Config, logger *logrus.Logger) (store.Repository, error) {
	if cfg.StoreMode == config.StoreModeMemory {
		logger.Warn("Using in-memory store; data is lost on restart and not shared between processes")
		return memory.New(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to database successfully")

	return store.NewPostgres(db, cfg.Database.MaxTxRetries), nil
}

// openPublisher falls back to a no-op publisher when Redis is not configured
// or unreachable, so checkout never depends on it.
func openPublisher(cfg *config.Config, logger *logrus.Logger) events.Publisher {
	if cfg.Redis.Addr == "" {
		return events.NoopPublisher{}
	}

	pub := events.NewRedisPublisher(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pub.Ping(ctx); err != nil {
		logger.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("Redis unreachable, change events disabled")
		_ = pub.Close()
		return events.NoopPublisher{}
	}

	logger.WithField("channel", cfg.Redis.Channel).Info("Publishing change events to Redis")
	return pub
}
