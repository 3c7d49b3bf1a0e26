package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fallstop/super-tracker-nz/config"
	"github.com/Fallstop/super-tracker-nz/internal/api"
	"github.com/Fallstop/super-tracker-nz/internal/backoff"
	"github.com/Fallstop/super-tracker-nz/internal/broker"
	"github.com/Fallstop/super-tracker-nz/internal/catalogapi"
	"github.com/Fallstop/super-tracker-nz/internal/redisclient"
	"github.com/Fallstop/super-tracker-nz/internal/service"
	"github.com/Fallstop/super-tracker-nz/internal/store"
	"github.com/Fallstop/super-tracker-nz/internal/util"
	"github.com/Fallstop/super-tracker-nz/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting scraper",
		zap.String("retailer", cfg.Retailer.Brand),
		zap.String("location_id", cfg.Retailer.LocationID))

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint, cfg.Server.Env)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				log.Printf("Error shutting down tracer: %v", err)
			}
		}()
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.RunMigrations {
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(migrateCtx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		logger.Info("Database schema up to date")
	}

	// Redis and Kafka are optional. The interface values stay nil when a
	// backend is disabled so the consumers see a true nil.
	var (
		departmentCache service.DepartmentCache
		statusRecorder  worker.StatusRecorder
		locker          worker.Locker
	)
	if cfg.RedisEnabled() {
		prefix := fmt.Sprintf("%s:%s", cfg.Retailer.Brand, cfg.Retailer.LocationID)
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, prefix)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		logger.Info("Redis connected")

		departmentCache = redisClient
		statusRecorder = redisClient
		locker = worker.NewRedisLocker(redisClient, cfg.Scraper.PassTimeout+time.Minute)
	} else {
		logger.Info("Redis disabled, running without sweep lock or department cache")
	}

	var publisher service.EventPublisher = broker.NopPublisher{}
	if cfg.KafkaEnabled() {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPriceEvents)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicPriceEvents))
	}

	retry := backoff.DefaultConfig()
	retry.MaxAttempts = cfg.Scraper.BackoffMaxAttempts

	catalogClient, err := catalogapi.NewClient(catalogapi.ClientOptions{
		BaseURL:           cfg.Scraper.CatalogAPIURL,
		PageSize:          cfg.Scraper.PageSize,
		RequestsPerSecond: cfg.Scraper.RequestsPerSecond,
		Retry:             retry,
	})
	if err != nil {
		log.Fatalf("Failed to create catalog client: %v", err)
	}

	ingestion := service.NewIngestionService(catalogClient, db, publisher, departmentCache, service.IngestionConfig{
		RetailerName:       cfg.Retailer.Name,
		RetailerBrand:      cfg.Retailer.Brand,
		RetailerLocation:   cfg.Retailer.Location,
		RetailerLocationID: cfg.Retailer.LocationID,
		MaxProducts:        cfg.Scraper.MaxProductsScrape,
		Concurrency:        cfg.Scraper.FetchConcurrency,
		PassTimeout:        cfg.Scraper.PassTimeout,
	})
	scheduler := worker.NewScheduler(ingestion, locker, statusRecorder, cfg.Scraper.SweepInterval)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := scheduler.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Scheduler stopped", zap.Error(err))
		}
	}()

	var triggerWorker *worker.TriggerWorker
	if cfg.KafkaEnabled() {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSweepRequests, cfg.Kafka.ConsumerGroup)
		triggerWorker = worker.NewTriggerWorker(consumer, scheduler)
		go func() {
			if err := triggerWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Trigger worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(db, scheduler)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// /metrics is always on the main router; a distinct PROMETHEUS_PORT also
	// gets a metrics-only listener for scrapers that cannot reach the API port.
	var metricsSrv *http.Server
	if port := cfg.Observ.PrometheusPort; port != "" && port != cfg.Server.Port {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: mux,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server error", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down scraper...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server forced to shutdown", zap.Error(err))
		}
	}

	workerCancel()
	if triggerWorker != nil {
		if err := triggerWorker.Stop(); err != nil {
			logger.Warn("Failed to stop trigger worker", zap.Error(err))
		}
	}

	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		logger.Warn("Timed out waiting for the running pass to stop")
	}

	logger.Info("Scraper exited")
}
