package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/shenikar/transit_pulse/internal/config"
	v1 "github.com/shenikar/transit_pulse/internal/handler/http/v1"
	"github.com/shenikar/transit_pulse/internal/lock"
	"github.com/shenikar/transit_pulse/internal/metrics"
	"github.com/shenikar/transit_pulse/internal/repository"
	"github.com/shenikar/transit_pulse/internal/repository/memory"
	"github.com/shenikar/transit_pulse/internal/service"
	"github.com/shenikar/transit_pulse/internal/webhook"
	"github.com/shenikar/transit_pulse/pkg/logger"
	"github.com/shenikar/transit_pulse/pkg/postgres"
	redisclient "github.com/shenikar/transit_pulse/pkg/redis"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/transit_pulse/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Transit Pulse API
// @version 1.0
// @description Rider report aggregation and incident scoring API.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func runMigrations(cfg *config.Config, migrationsPath string, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
		migrationURL = strings.Replace(migrationURL, "postgresql://", "pgx5://", 1)
	}

	m, err := migrate.New(
		"file://"+migrationsPath,
		migrationURL,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

func main() {
	flags := pflag.NewFlagSet("transit_pulse", pflag.ExitOnError)
	migrationsPath := flags.String("migrations", "migrations", "directory with SQL migrations")
	skipMigrations := flags.Bool("skip-migrations", false, "do not apply migrations on startup")
	_ = flags.Parse(os.Args[1:])

	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Хранилища сообщений и инцидентов
	var (
		reportRepo   service.ReportRepository
		incidentRepo service.IncidentRepository
	)
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		log.Warn("Using in-memory store, data is lost on restart")
		reportRepo = memory.NewReportStore()
		incidentRepo = memory.NewIncidentStore()
	default:
		if !*skipMigrations {
			if err := runMigrations(cfg, *migrationsPath, log); err != nil {
				log.Fatalf("Failed to run database migrations: %v", err)
			}
		}

		dbpool, err := postgres.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer dbpool.Close()
		log.Info("Successfully connected to PostgreSQL")

		reportRepo = repository.NewReportRepository(dbpool)
		incidentRepo = repository.NewIncidentRepository(dbpool)
	}

	// Redis нужен для кэша, очереди событий и распределённой блокировки
	var (
		redisClient *goredis.Client
		cache       service.IncidentCache
		publisher   webhook.Publisher
	)
	if cfg.StoreBackend == config.StoreBackendPostgres || cfg.LockBackend == config.LockBackendRedis || cfg.WebhookURL != "" {
		redisClient, err = redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Info("Successfully connected to Redis")

		cache = repository.NewIncidentCache(redisClient, cfg.CacheTTL)
		if cfg.WebhookURL != "" {
			publisher = webhook.NewRedisPublisher(redisClient)
		}
	}

	// Сериализация агрегации по ключу
	var locker service.KeyLocker = lock.NewKeyedMutex()
	if cfg.LockBackend == config.LockBackendRedis {
		locker = lock.NewRedisLocker(redisClient, cfg.LockTTL)
		log.Info("Using Redis per-key lock")
	}

	// Метрики
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	// Инициализация сервисов
	clock := service.SystemClock{}
	engine := service.NewAggregationEngine(service.EngineDeps{
		Reports:   reportRepo,
		Incidents: incidentRepo,
		Locker:    locker,
		Cache:     cache,
		Publisher: publisher,
		Clock:     clock,
		Metrics:   appMetrics,
		Logger:    log,
	}, service.EngineConfig{
		Windows:         cfg.AggregationWindows,
		Timeout:         cfg.AggregationTimeout,
		ConflictRetries: cfg.ConflictRetries,
	})
	reportService := service.NewReportService(reportRepo, engine, clock, log, cfg.ReportTTL)
	incidentService := service.NewIncidentService(incidentRepo, cache, clock, log, cfg.IncidentFeedWindow)
	lifecycle := service.NewLifecycleManager(incidentRepo, cache, publisher, clock, appMetrics, log, cfg.AggregationTimeout)

	// Инициализация и запуск воркера вебхуков
	var webhookWorker *webhook.Worker
	if publisher != nil {
		webhookWorker = webhook.NewWorker(redisClient, log, cfg)
		webhookWorker.Start(ctx)
	}

	// Инициализация хэндлеров
	handler := v1.NewHandler(reportService, incidentService, lifecycle, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	// Останавливаем воркер и ждём завершения текущей доставки
	cancel()
	if webhookWorker != nil {
		select {
		case <-webhookWorker.Done():
		case <-shutdownCtx.Done():
			log.Warn("Webhook worker did not stop in time")
		}
	}

	log.Info("Server gracefully stopped")
}
