// cmd/server/main.go
package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/lurehook/lurehook-backend/internal/config"
	"github.com/lurehook/lurehook-backend/internal/controller"
	"github.com/lurehook/lurehook-backend/internal/db"
	"github.com/lurehook/lurehook-backend/internal/handler"
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

	if err := db.Migrate(database); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	broker, err := queue.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer broker.Close()

	campaignRepo := &repository.CampaignRepository{DB: database}
	targetRepo := &repository.CampaignTargetRepository{DB: database}
	taskRepo := &repository.EmailTaskRepository{DB: database}
	recipientRepo := &repository.RecipientRepository{DB: database}
	templateRepo := &repository.EmailTemplateRepository{DB: database}

	campaignService := &service.CampaignService{
		Campaigns:  campaignRepo,
		Targets:    targetRepo,
		Tasks:      taskRepo,
		Recipients: recipientRepo,
		Templates:  templateRepo,
		Broker:     broker,
		Renderer:   &service.Renderer{TrackingBaseURL: cfg.TrackingBaseURL},
		Logger:     logger,
	}

	campaignController := &controller.CampaignController{
		Service: campaignService,
		Logger:  logger,
	}
	trackingHandler := &handler.TrackingHandler{
		Targets: targetRepo,
		Logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", campaignController.Create)
		r.Get("/", campaignController.List)
		r.Get("/{id}", campaignController.Get)
		r.Delete("/{id}", campaignController.Delete)
		r.Get("/{id}/stats", campaignController.Stats)
		r.Post("/{id}/targets", campaignController.AddTargets)
		r.Post("/{id}/schedule", campaignController.Schedule)
		r.Post("/{id}/start", campaignController.Start)
		r.Post("/{id}/stop", campaignController.Stop)
	})

	r.Get("/track/open/{token}", trackingHandler.TrackOpen)
	r.Get("/track/click/{token}", trackingHandler.TrackClick)
	r.Post("/track/submit/{token}", trackingHandler.TrackSubmit)

	logger.Info("server listening", zap.String("addr", cfg.HTTPAddr))
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
