package httptransport

import (
	"log/slog"

	"github.com/arosnov/schedhook/internal/http/handler"
	"github.com/arosnov/schedhook/internal/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

// NewRouter wires the full HTTP surface: Targets, Schedules, and the
// read-only Run/Attempt views, all behind bearer-JWT auth.
func NewRouter(
	logger *slog.Logger,
	targetHandler *handler.TargetHandler,
	scheduleHandler *handler.ScheduleHandler,
	runHandler *handler.RunHandler,
	hmacKey []byte,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(hmacKey)

	targets := r.Group("/targets", authMW)
	targets.POST("", targetHandler.Create)
	targets.GET("", targetHandler.List)
	targets.GET("/:id", targetHandler.GetByID)
	targets.PUT("/:id", targetHandler.Update)
	targets.DELETE("/:id", targetHandler.Delete)

	schedules := r.Group("/schedules", authMW)
	schedules.POST("", scheduleHandler.Create)
	schedules.GET("", scheduleHandler.List)
	schedules.GET("/:id", scheduleHandler.GetByID)
	schedules.POST("/:id/pause", scheduleHandler.Pause)
	schedules.POST("/:id/resume", scheduleHandler.Resume)
	schedules.DELETE("/:id", scheduleHandler.Delete)

	runs := r.Group("/runs", authMW)
	runs.GET("", runHandler.List)
	runs.GET("/:id", runHandler.GetByID)
	runs.GET("/:id/attempts", runHandler.ListAttempts)

	return r
}
