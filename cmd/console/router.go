package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-console/api/swagger"
	"github.com/noah-isme/timetable-console/internal/handler"
	"github.com/noah-isme/timetable-console/internal/middleware"
	"github.com/noah-isme/timetable-console/internal/models"
	"github.com/noah-isme/timetable-console/internal/service"
	"github.com/noah-isme/timetable-console/pkg/config"
	"github.com/noah-isme/timetable-console/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-console/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-console/pkg/middleware/requestid"
)

type routerDeps struct {
	metrics    *service.MetricsService
	session    middleware.ViewerResolver
	metricsH   *handler.MetricsHandler
	references *handler.ReferenceHandler
	schedules  *handler.ScheduleHandler
	profile    *handler.ProfileHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.metrics))

	r.GET("/health", d.metricsH.Health)
	r.GET("/ready", d.metricsH.Ready)
	r.GET("/metrics", d.metricsH.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	list := middleware.RequirePermission(models.PermissionScheduleList)
	create := middleware.RequirePermission(models.PermissionScheduleCreate)
	edit := middleware.RequirePermission(models.PermissionScheduleEdit)

	api := r.Group(cfg.APIPrefix, middleware.Session(d.session))
	api.GET("/profile", d.profile.Me)

	api.GET("/references", list, d.references.Snapshot)
	api.GET("/references/:collection", list, d.references.Get)

	schedules := api.Group("/schedules")
	schedules.GET("/grid", list, d.schedules.Grid)
	schedules.GET("/grid/export", list, d.schedules.Export)
	schedules.POST("/options", middleware.RequirePermission(models.PermissionScheduleCreate, models.PermissionScheduleEdit), d.schedules.Options)
	schedules.GET("/:id/form", edit, d.schedules.Form)
	schedules.GET("/:id/history", middleware.RequireSuperAdmin(), d.schedules.History)
	schedules.POST("", create, d.schedules.Create)
	schedules.PUT("/:id", edit, d.schedules.Update)
	schedules.DELETE("/:id", middleware.RequirePermission(models.PermissionScheduleDelete), d.schedules.Delete)

	return r
}
