package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"alert-service/internal/api"
	"alert-service/internal/config"
	"alert-service/internal/db"
	"alert-service/internal/kafka"
	"alert-service/internal/logging"
	"alert-service/internal/metrics"
	"alert-service/internal/notification"
	"alert-service/internal/providers"
	"alert-service/internal/services"
	"alert-service/internal/storage"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()
	if err := dbConn.EnsureSchema(ctx); err != nil {
		logger.Fatalf("Schema setup failed: %v", err)
	}

	collector := metrics.New()

	broker, err := storage.FromConfig(cfg, logger)
	if err != nil {
		logger.Fatalf("Upload broker setup failed: %v", err)
	}

	messenger := providers.NewTwilio(cfg, logger)
	if messenger == nil {
		logger.Warn("Twilio not configured, notifications will be logged and skipped")
	}
	if cfg.API.Key == config.DefaultAPIKey {
		logger.Warn("API_KEY not set, using the demo key")
	}

	notifier := notification.New(messenger, logger, collector, cfg)
	svc := services.New(dbConn, notifier, logger, collector)

	var wg sync.WaitGroup
	if cfg.Kafka.Broker != "" {
		consumer := kafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID, svc, logger)
		consumer.Start(ctx, &wg)
		defer consumer.Close()
	}

	// Start API server
	handler := api.NewHandler(svc, broker, collector, logger, cfg)
	router := api.NewRouter(logger, cfg, handler)
	srv := &http.Server{Addr: cfg.API.Port, Handler: router}

	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API server shutdown failed: %v", err)
	}
	wg.Wait()
}
