package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/middleware"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Timetables *TimetableHandler
	Slots      *SlotHandler
	Schedules  *ScheduleViewHandler
	Metrics    *MetricsHandler
	Tokens     middleware.TokenVerifier
}

// Register mounts the public probes on the engine root and the authenticated API under prefix.
// Reads need any authenticated user; mutations need a timetable manager.
func Register(r *gin.Engine, prefix string, routes Routes) {
	if routes.Metrics != nil {
		r.GET("/health", routes.Metrics.Health)
		r.GET("/ready", routes.Metrics.Ready)
		r.GET("/metrics", routes.Metrics.Prometheus)
	}

	api := r.Group(prefix)
	api.Use(middleware.JWT(routes.Tokens))
	manage := middleware.RequireTimetableManager()

	if routes.Metrics != nil {
		api.GET("/metrics/summary", manage, routes.Metrics.Summary)
	}

	timetables := api.Group("/timetables")
	timetables.GET("", routes.Timetables.List)
	timetables.GET("/:id", routes.Timetables.Get)
	timetables.GET("/:id/days", routes.Timetables.Days)
	timetables.GET("/:id/export", routes.Timetables.Export)
	timetables.POST("", manage, routes.Timetables.Create)
	timetables.DELETE("/:id", manage, routes.Timetables.Delete)
	timetables.POST("/:id/publish", manage, routes.Timetables.Publish)
	timetables.PUT("/:id/days", manage, routes.Timetables.SetDay)
	timetables.POST("/:id/periods", manage, routes.Timetables.AddPeriod)
	timetables.DELETE("/:id/periods/:periodId", manage, routes.Timetables.DeletePeriod)

	slots := api.Group("/slots", manage)
	slots.POST("", routes.Slots.Create)
	slots.PATCH("/:id", routes.Slots.Update)
	slots.DELETE("/:id", routes.Slots.Delete)

	api.GET("/teachers/:id/schedule", routes.Schedules.Teacher)
	api.GET("/rooms/:id/schedule", routes.Schedules.Room)
}
