package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chefos/chefos-backend/internal/auth/jwt"
	dochandler "github.com/chefos/chefos-backend/internal/docprocessing/handler"
	"github.com/chefos/chefos-backend/internal/docprocessing/processor"
	docservice "github.com/chefos/chefos-backend/internal/docprocessing/service"
	"github.com/chefos/chefos-backend/internal/docprocessing/storage"
	"github.com/chefos/chefos-backend/internal/inventory/consumers"
	"github.com/chefos/chefos-backend/internal/inventory/events"
	"github.com/chefos/chefos-backend/internal/inventory/handler"
	"github.com/chefos/chefos-backend/internal/inventory/repository"
	"github.com/chefos/chefos-backend/internal/inventory/service"
	"github.com/chefos/chefos-backend/migrations"
	"github.com/chefos/chefos-backend/pkg/config"
	"github.com/chefos/chefos-backend/pkg/database"
	"github.com/chefos/chefos-backend/pkg/httputil"
	"github.com/chefos/chefos-backend/pkg/lock"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/chefos/chefos-backend/pkg/messaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.Connect(ctx, &cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		applied, err := migrations.Apply(ctx, db.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
		log.Info().Strs("applied", applied).Msg("migrations up to date")
	}

	// RabbitMQ is optional; without it events are dropped and sweeps only run locally
	var rmq *messaging.RabbitMQ
	var publisher *events.InventoryEventPublisher
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.Dial(ctx, &cfg.RabbitMQ, messaging.InventoryTopology(), log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		publisher = events.NewInventoryEventPublisher(rmq, log)
	}

	// Redis backs the sweep lock so only one replica sweeps per tick
	var locker *lock.Locker
	if cfg.Redis.Enabled {
		locker, err = lock.Connect(ctx, &cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer locker.Close()
	}

	// Initialize repositories
	shipmentRepo := repository.NewShipmentRepository(db)
	stockRepo := repository.NewStockRepository(db)
	barcodeRepo := repository.NewBarcodeRepository(db)
	preparationRepo := repository.NewPreparationRepository(db)
	expiryRepo := repository.NewExpiryRepository(db)

	// Initialize services
	ingestor := service.NewIngestor(db, shipmentRepo, stockRepo, publisher, log)
	stockService := service.NewStockService(db, stockRepo, publisher, log)
	barcodeService := service.NewBarcodeService(barcodeRepo, log)
	preparationService := service.NewPreparationService(db, preparationRepo, stockRepo, publisher, log)
	expiryService := service.NewExpiryService(expiryRepo, log)
	sweeper := service.NewExpirySweeper(db, expiryRepo, publisher, log)

	// Document extraction
	var ocr docservice.TextRecognizer
	if cfg.OCR.URL != "" {
		ocr = processor.NewOCRClient(cfg.OCR.URL, cfg.OCR.Timeout)
	} else {
		log.Warn().Msg("no OCR provider configured, only text parsing is available")
	}
	docStore := storage.NewTempStorage(cfg.Documents.JobTTL)
	defer docStore.Stop()
	docService := docservice.NewService(processor.DefaultRegistry(), ocr, docStore, log)

	// Initialize handlers
	shipmentHandler := handler.NewShipmentHandler(ingestor, log)
	stockHandler := handler.NewStockHandler(stockService, log)
	barcodeHandler := handler.NewBarcodeHandler(barcodeService, log)
	preparationHandler := handler.NewPreparationHandler(preparationService, log)
	expiryHandler := handler.NewExpiryHandler(expiryService, sweeper, log)
	jobHandler := handler.NewJobHandler(sweeper, cfg.Sweep.JobSecretHash, log)
	documentHandler := dochandler.NewHandler(docService, log, cfg.Documents.MaxUploadMB)

	// Sweep requests from other services
	if rmq != nil {
		sweepConsumer, err := consumers.NewSweepRequestConsumer(rmq, sweeper, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create sweep request consumer")
		}
		if err := sweepConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start sweep request consumer")
		}
	}

	var scheduler *service.SweepScheduler
	if cfg.Sweep.Enabled {
		// A nil locker sweeps on every replica; alert creation is idempotent
		scheduler = service.NewSweepScheduler(sweeper, locker, cfg.Sweep.Interval, cfg.Sweep.LockTTL, cfg.Sweep.RunOnStart, log)
		scheduler.Start(ctx)
	}

	jwtManager := jwt.NewManager(&cfg.JWT)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
			"redis":    locker.Health(r.Context()),
		})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jwt.Middleware(jwtManager, log))

		r.Route("/inventory", func(r chi.Router) {
			r.Route("/shipments", shipmentHandler.Routes)
			r.Route("/stock", stockHandler.Routes)
			r.Route("/barcodes", barcodeHandler.Routes)
			r.Route("/preparations", preparationHandler.Routes)
			r.Route("/expiry", expiryHandler.Routes)
		})
		r.Route("/documents", documentHandler.Routes)
	})

	// Scheduler-triggered jobs authenticate with a shared secret instead of a user token
	r.Route("/internal/jobs", jobHandler.Routes)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers and the scheduler
	cancel()
	if scheduler != nil {
		scheduler.Stop()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
