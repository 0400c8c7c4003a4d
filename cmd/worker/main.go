// cmd/worker/main.go
package main

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/lurehook/lurehook-backend/internal/config"
	"github.com/lurehook/lurehook-backend/internal/db"
	"github.com/lurehook/lurehook-backend/internal/mailer"
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
	logger = logger.With(zap.String("worker_id", cfg.WorkerID))

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

	processor := &service.DeliveryProcessor{
		Tasks:   &repository.EmailTaskRepository{DB: database},
		Targets: &repository.CampaignTargetRepository{DB: database},
		Broker:  broker,
		Sender: &mailer.SMTPSender{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUser,
			Password:  cfg.SMTPPassword,
			FromEmail: cfg.SMTPFromEmail,
			FromName:  cfg.SMTPFromName,
		},
		MaxRetries:  cfg.MaxRetries,
		RetryDelays: cfg.RetryDelays,
		Logger:      logger,
	}

	// Competing consumers on both delivery queues. The retry queue has no
	// consumer; its messages come back through the immediate queue.
	queues := map[string]string{
		queue.ImmediateQueue: cfg.WorkerID + ".immediate",
		queue.ScheduledQueue: cfg.WorkerID + ".scheduled",
	}

	var wg sync.WaitGroup
	for queueName, tag := range queues {
		deliveries, err := broker.Consume(queueName, tag, cfg.PrefetchCount)
		if err != nil {
			logger.Fatal("failed to start consumer",
				zap.String("queue", queueName), zap.Error(err))
		}

		wg.Add(1)
		go func(queueName string, deliveries <-chan amqp.Delivery) {
			defer wg.Done()
			for d := range deliveries {
				handle(processor, logger, queueName, d)
			}
		}(queueName, deliveries)
	}

	logger.Info("worker started",
		zap.Int("prefetch", cfg.PrefetchCount),
		zap.Int("max_retries", cfg.MaxRetries))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// Stop new deliveries, then drain in-flight work before closing.
	logger.Info("shutting down")
	for _, tag := range queues {
		if err := broker.Cancel(tag); err != nil {
			logger.Warn("failed to cancel consumer", zap.String("tag", tag), zap.Error(err))
		}
	}
	wg.Wait()
	logger.Info("worker stopped")
}

func handle(p *service.DeliveryProcessor, logger *zap.Logger, queueName string, d amqp.Delivery) {
	var msg queue.EmailMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		logger.Error("malformed message body",
			zap.String("queue", queueName), zap.Error(err))
		d.Nack(false, false)
		return
	}

	switch p.Process(msg) {
	case service.OutcomeAck:
		if err := d.Ack(false); err != nil {
			logger.Error("failed to ack", zap.String("task_id", msg.TaskID), zap.Error(err))
		}
	case service.OutcomeReject:
		if err := d.Nack(false, false); err != nil {
			logger.Error("failed to nack", zap.String("task_id", msg.TaskID), zap.Error(err))
		}
	}
}
