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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-console/internal/handler"
	"github.com/noah-isme/timetable-console/internal/models"
	"github.com/noah-isme/timetable-console/internal/repository"
	"github.com/noah-isme/timetable-console/internal/service"
	"github.com/noah-isme/timetable-console/pkg/cache"
	"github.com/noah-isme/timetable-console/pkg/config"
	"github.com/noah-isme/timetable-console/pkg/database"
	"github.com/noah-isme/timetable-console/pkg/logger"
)

// @title Timetable Console API
// @version 1.0.0
// @description Schedule administration console over the university timetable backend
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	checks := map[string]handler.Pinger{}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close() //nolint:errcheck
		checks["redis"] = cache.Ping(redisClient)
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.ReferenceTTL, logr, cfg.Cache.Enabled)

	var auditSvc *service.AuditService
	if cfg.Audit.Enabled {
		db, err := openAuditStore(ctx, cfg)
		if err != nil {
			logr.Fatal("failed to prepare audit store", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck
		checks["postgres"] = db.PingContext

		auditSvc = service.NewAuditService(repository.NewAuditRepository(db), service.AuditConfig{
			Workers: cfg.Audit.Workers,
			Retries: cfg.Audit.Retries,
		}, logr)
		auditSvc.Start(context.Background())
		defer auditSvc.Stop()
	}

	backend := repository.NewBackendClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, metrics, logr)
	referenceRepo := repository.NewReferenceRepository(backend)
	scheduleRepo := repository.NewScheduleRepository(backend)
	profileRepo := repository.NewProfileRepository(backend)

	referenceSvc := service.NewReferenceService(referenceRepo, cacheSvc, metrics, cfg.Cache.ReferenceTTL, cfg.Backend.MaxParallel, logr)
	renderer := service.NewGridRenderer(cfg.Grid.Shifts, models.WeekNames{Upper: cfg.Grid.UpperWeekName, Lower: cfg.Grid.LowerWeekName})
	gridSvc := service.NewGridService(scheduleRepo, referenceSvc, renderer, cacheSvc, cfg.Cache.ScheduleTTL, logr)
	entrySvc := service.NewScheduleEntryService(scheduleRepo, cacheSvc, auditSvc, validator.New(), logr)
	sessionSvc := service.NewSessionService(profileRepo, cacheSvc, cfg.Cache.ProfileTTL, cfg.Session.SuperAdminRole, logr)
	exportSvc := service.NewExportService(gridSvc, nil, nil, logr)

	router := newRouter(cfg, logr, routerDeps{
		metrics:    metrics,
		session:    sessionSvc,
		metricsH:   handler.NewMetricsHandler(metrics, checks),
		references: handler.NewReferenceHandler(referenceSvc),
		schedules:  handler.NewScheduleHandler(gridSvc, entrySvc, referenceSvc, exportSvc, auditSvc),
		profile:    handler.NewProfileHandler(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("backend", cfg.Backend.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openAuditStore(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, repository.AuditSchema...); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
