package main

import (
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mill-alert-service/internal/actionitem"
	"mill-alert-service/internal/alertconfig"
	"mill-alert-service/internal/api"
	"mill-alert-service/internal/config"
	"mill-alert-service/internal/db"
	"mill-alert-service/internal/dispatch"
	"mill-alert-service/internal/escalation"
	"mill-alert-service/internal/kafka"
	"mill-alert-service/internal/logging"
	"mill-alert-service/internal/models"
	"mill-alert-service/internal/providers"
	"mill-alert-service/internal/ws"
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

	// A bad alert taxonomy fails the process, not a runtime request
	if err := alertconfig.Validate(); err != nil {
		logger.Fatalf("Alert configuration invalid: %v", err)
	}

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	// Channel adapters and dispatcher
	wsManager := ws.NewManager(logger)
	adapters := map[models.Channel]dispatch.Adapter{
		models.ChannelEmail: providers.NewEmail(cfg, logger),
		models.ChannelSMS:   providers.NewSMS(cfg, logger),
		models.ChannelPush:  providers.NewPush(cfg, logger),
		models.ChannelInApp: providers.NewInApp(wsManager, logger),
	}
	dispatcher := dispatch.New(adapters, dbConn, logger, cfg.Dispatch.Timeout)

	// Core services
	scheduler := escalation.New(dbConn, dispatcher, dbConn, logger, cfg.Scheduler.TickInterval)
	items := actionitem.New(dbConn, logger, cfg.Scheduler.SweepInterval)

	var wg sync.WaitGroup
	scheduler.Start(&wg)
	items.Start(&wg)

	// Kafka consumer feeding domain events into the scheduler
	consumer := kafka.NewConsumer(cfg, scheduler, logger)
	consumer.Start(&wg)

	// Start API server
	handler := api.NewHandler(dbConn, logger, scheduler, items, wsManager)
	router := api.NewRouter(logger, cfg, handler)
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	consumer.Close()
	scheduler.Close()
	items.Close()
	wg.Wait()
	logger.Infof("Service stopped")
}
