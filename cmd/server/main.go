package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kilat-Marketplace/service-booking/internal/application"
	"github.com/Kilat-Marketplace/service-booking/internal/catalog"
	"github.com/Kilat-Marketplace/service-booking/internal/config"
	bookingDomain "github.com/Kilat-Marketplace/service-booking/internal/domain/booking"
	"github.com/Kilat-Marketplace/service-booking/internal/domain/entity"
	bookingEvents "github.com/Kilat-Marketplace/service-booking/internal/events"
	"github.com/Kilat-Marketplace/service-booking/internal/handler"
	"github.com/Kilat-Marketplace/service-booking/internal/repository"
	"github.com/Kilat-Marketplace/service-booking/pkg/auth"
	"github.com/Kilat-Marketplace/service-booking/pkg/database"
	"github.com/Kilat-Marketplace/service-booking/pkg/health"
	"github.com/Kilat-Marketplace/service-booking/pkg/kafka"
	"github.com/Kilat-Marketplace/service-booking/pkg/logger"
	"github.com/Kilat-Marketplace/service-booking/pkg/middleware"
	"github.com/Kilat-Marketplace/service-booking/pkg/mq"
	"github.com/Kilat-Marketplace/service-booking/pkg/obs"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const serviceName = "service-booking"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("store", cfg.StoreDriver),
		zap.String("events", cfg.EventsDriver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional tracing
	if cfg.TracingConfig.Enabled {
		shutdown, err := obs.InitTracer(ctx, serviceName, cfg.AppEnv, cfg.TracingConfig.Endpoint)
		if err != nil {
			log.Fatal("failed to init tracer", zap.Error(err))
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	// Initialize store
	checks := map[string]health.Pinger{}
	var store bookingDomain.Store
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		mem := repository.NewMemoryStore()
		store = mem
		checks["memory"] = mem
		log.Warn("using in-memory store; data is lost on restart")
	default:
		gormStore, err := openPostgres(cfg, log)
		if err != nil {
			log.Fatal("failed to open postgres store", zap.Error(err))
		}
		store = gormStore
		checks["postgres"] = gormStore
	}

	// Initialize event publisher
	var publisher application.EventPublisher = application.NopPublisher{}
	switch cfg.EventsDriver {
	case config.EventsDriverKafka:
		kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = kafkaProducer.Close() }()
		publisher = kafkaProducer
	case config.EventsDriverRabbitMQ:
		mqPublisher, err := mq.NewPublisher(cfg.RabbitConfig.URL, cfg.RabbitConfig.Exchange)
		if err != nil {
			log.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer func() { _ = mqPublisher.Close() }()
		publisher = mqPublisher
	}

	// Initialize application services
	registry := entity.DefaultRegistry()
	var catalogClient application.CatalogClient
	if cfg.CatalogBaseURL != "" {
		catalogClient = catalog.NewClient(cfg.CatalogBaseURL)
	}
	listingService := application.NewListingService(store, registry, catalogClient, log)
	bookingService := application.NewBookingService(store, registry, listingService, publisher, log)

	// Start catalog event consumer in a goroutine
	if len(cfg.KafkaConfig.Brokers) > 0 {
		groupID := cfg.KafkaConfig.GroupPrefix + "booking-service"
		listingConsumer := bookingEvents.NewListingEventConsumer(
			cfg.KafkaConfig.Brokers,
			groupID,
			listingService,
			log,
		)
		defer func() { _ = listingConsumer.Close() }()

		go func() {
			log.Info("starting catalog listing consumer")
			if err := listingConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("catalog listing consumer error", zap.Error(err))
			}
		}()
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, 15*time.Minute)

	if err := handler.RegisterValidators(registry); err != nil {
		log.Fatal("failed to register validators", zap.Error(err))
	}

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	health.NewHandler(serviceName, checks).RegisterRoutes(router)

	// Register routes
	handler.NewBookingHandler(bookingService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewListingHandler(listingService, registry).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewAdminBookingHandler(bookingService).RegisterRoutes(&router.RouterGroup, jwtManager)

	var httpHandler http.Handler = router
	if cfg.TracingConfig.Enabled {
		httpHandler = otelhttp.NewHandler(router, serviceName)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}

// openPostgres connects and migrates. Development uses gorm auto-migrate,
// every other environment runs the versioned SQL migrations.
func openPostgres(cfg *config.ServiceConfig, log *zap.Logger) (*repository.GormStore, error) {
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		return nil, err
	}

	if cfg.AppEnv == "development" {
		if err := repository.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("auto-migration: %w", err)
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(dbConfig.DatabaseURL(), "migrations", log); err != nil {
			return nil, err
		}
	}

	return repository.NewGormStore(db), nil
}
