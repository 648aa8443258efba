package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/keylock"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Weekly class timetables with teacher, room and class conflict detection.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := service.NewMetricsService()
	validate := dto.NewValidator()

	timetableRepo := repository.NewTimetableRepository(db)
	dayRepo := repository.NewTimetableDayRepository(db)
	periodRepo := repository.NewTimetablePeriodRepository(db)
	slotRepo := repository.NewTimetableSlotRepository(db)
	refRepo := repository.NewReferenceRepository(db)

	var cacheClient redis.UniversalClient
	if redisClient != nil {
		cacheClient = redisClient
	}
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(cacheClient, logr), metrics, cfg.Timetable.CacheTTL, logr, cfg.Timetable.CacheEnabled && redisClient != nil)

	notifier := service.NewNotificationService(eventPublisher(redisClient, logr), service.NotificationConfig{
		Channel:    cfg.Notify.Channel,
		Workers:    cfg.Notify.Workers,
		Retries:    cfg.Notify.Retries,
		BufferSize: cfg.Notify.BufferSize,
	}, logr.Named("notify"))
	notifier.Start(ctx)
	defer notifier.Stop()

	locker := scopeLocker(cfg, db, logr)

	timetableSvc := service.NewTimetableService(service.TimetableServiceParams{
		Timetables:  timetableRepo,
		Days:        dayRepo,
		Periods:     periodRepo,
		Slots:       slotRepo,
		References:  refRepo,
		Notifier:    notifier,
		Locker:      locker,
		LockTimeout: cfg.Timetable.LockTimeout,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr.Named("timetable"),
	})
	scheduler := service.NewSlotScheduler(service.SlotSchedulerParams{
		Slots:       slotRepo,
		Timetables:  timetableRepo,
		Days:        dayRepo,
		Periods:     periodRepo,
		References:  refRepo,
		Locker:      locker,
		LockTimeout: cfg.Timetable.LockTimeout,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr.Named("scheduler"),
	})
	views := service.NewTimetableViewService(timetableRepo, slotRepo, refRepo, cacheSvc, logr.Named("views"))
	exporter := service.NewExportService(timetableSvc, refRepo, export.NewCSVExporter(), export.NewPDFExporter(), logr.Named("export"))
	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = redisPinger{client: redisClient}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	handler.Register(r, cfg.APIPrefix, handler.Routes{
		Timetables: handler.NewTimetableHandler(timetableSvc, views, exporter),
		Slots:      handler.NewSlotHandler(scheduler),
		Schedules:  handler.NewScheduleViewHandler(views),
		Metrics:    handler.NewMetricsHandler(metrics, checks),
		Tokens:     tokens,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("lock_backend", cfg.Timetable.LockBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type locker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

func scopeLocker(cfg *config.Config, db *sqlx.DB, logr *zap.Logger) locker {
	if cfg.Timetable.LockBackend == config.LockBackendPostgres {
		return database.NewAdvisoryLocker(db, logr.Named("advisory-lock"))
	}
	return keylock.New()
}

func eventPublisher(client *redis.Client, logr *zap.Logger) interface {
	Publish(ctx context.Context, channel string, payload []byte) error
} {
	if client == nil {
		return service.NewLogEventPublisher(logr.Named("events"))
	}
	return service.NewRedisEventPublisher(client)
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
