package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"dispatch-service/internal/alerts"
	"dispatch-service/internal/api"
	"dispatch-service/internal/config"
	"dispatch-service/internal/contacts"
	"dispatch-service/internal/db"
	"dispatch-service/internal/dispatch"
	"dispatch-service/internal/identity"
	"dispatch-service/internal/kafka"
	"dispatch-service/internal/logging"
	"dispatch-service/internal/ws"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Config load failed:", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatal("Logger init failed:", err)
	}

	// Connect to DB
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		log.Fatal("DB connect failed:", err)
	}
	defer dbConn.Close()

	alertStore := db.NewAlertStore(dbConn)
	contactStore := db.NewContactStore(dbConn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Dispatch router: in-process hub, bridged over Kafka when configured
	hub := dispatch.NewHub(logger)
	var router dispatch.Router = hub
	var bridge *dispatch.Bridge
	if cfg.Kafka.FanoutTopic != "" && len(cfg.Kafka.Brokers) > 0 {
		bridge = dispatch.NewBridge(hub, cfg.Kafka.Brokers, cfg.Kafka.FanoutTopic, logger)
		router = bridge
		go bridge.Run(ctx)
	}

	// Identity collaborators
	verifier := identity.NewJWTVerifier(cfg.Auth.JWTSecret)
	directory := identity.NewStaticDirectory()

	// Out-of-band contact notifier
	notifier := contacts.NewNotifier(cfg, logger)
	var wg sync.WaitGroup
	notifier.Start(&wg)

	// Core engine
	svc := alerts.NewService(alertStore, router, directory, contactStore, notifier, logger)
	stats := alerts.NewAggregator(alertStore, directory)

	// Automated report ingest
	var consumer *kafka.Consumer
	if cfg.Kafka.ReportTopic != "" && len(cfg.Kafka.Brokers) > 0 {
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ReportTopic, cfg.Kafka.GroupID, svc, logger)
		consumer.Start(ctx, &wg)
	}

	// API server
	gateway := ws.NewGateway(router, verifier, logger, cfg.Dispatch.SendBuffer)
	handler := api.NewHandler(svc, stats, contactStore, directory, logger, cfg.Telegram.BotToken)
	r := api.NewRouter(handler, gateway, verifier, logger, cfg)
	go func() {
		logger.Infof("API started on %s", cfg.API.Port)
		if err := r.Run(cfg.API.Port); err != nil {
			logger.Errorf("API run failed: %v", err)
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	cancel()
	if consumer != nil {
		consumer.Close()
	}
	if bridge != nil {
		bridge.Close()
	}
	notifier.Stop()
	wg.Wait()
	logger.Infof("Service stopped")
}
