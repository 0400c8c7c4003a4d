// cmd/scheduler/main.go
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/lurehook/lurehook-backend/internal/config"
	"github.com/lurehook/lurehook-backend/internal/db"
	"github.com/lurehook/lurehook-backend/internal/queue"
	"github.com/lurehook/lurehook-backend/internal/repository"
	"github.com/lurehook/lurehook-backend/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	broker, err := queue.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer broker.Close()

	scheduler := &service.Scheduler{
		Tasks:      &repository.EmailTaskRepository{DB: database},
		Targets:    &repository.CampaignTargetRepository{DB: database},
		Campaigns:  &repository.CampaignRepository{DB: database},
		Recipients: &repository.RecipientRepository{DB: database},
		Templates:  &repository.EmailTemplateRepository{DB: database},
		Broker:     broker,
		Renderer:   &service.Renderer{TrackingBaseURL: cfg.TrackingBaseURL},
		Logger:     logger,
		Interval:   cfg.SchedulerInterval,
		BatchSize:  cfg.SchedulerBatch,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Run(ctx)
}
