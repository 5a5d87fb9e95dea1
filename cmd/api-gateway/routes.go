package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/traininjapan/booking-api/internal/handler"
	internalmiddleware "github.com/traininjapan/booking-api/internal/middleware"
	"github.com/traininjapan/booking-api/internal/models"
	"github.com/traininjapan/booking-api/pkg/config"
)

type routeHandlers struct {
	identity    internalmiddleware.TokenValidator
	courses     *handler.CourseHandler
	schedules   *handler.ScheduleHandler
	bookings    *handler.BookingHandler
	waitlist    *handler.WaitlistHandler
	locations   *handler.LocationHandler
	instructors *handler.InstructorHandler
	metrics     *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, h routeHandlers) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Catalogue reads are public; a token, when present, only widens what the caller sees.
	public := api.Group("")
	public.Use(internalmiddleware.OptionalJWT(h.identity))
	public.GET("/courses", h.courses.List)
	public.GET("/courses/:id", h.courses.Get)
	public.GET("/courses/:id/schedules", h.schedules.ListSchedules)
	public.GET("/courses/:id/sessions", h.schedules.ListSessions)
	public.GET("/sessions/:id", h.schedules.GetSession)
	public.GET("/locations", h.locations.List)
	public.GET("/locations/:id", h.locations.Get)
	public.GET("/instructors", h.instructors.List)
	public.GET("/instructors/:id", h.instructors.Get)
	public.GET("/instructors/:id/availability", h.instructors.ListAvailability)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(h.identity))

	secured.POST("/courses/:id/waitlist", h.waitlist.Join)
	secured.GET("/courses/:id/waitlist", h.waitlist.List)
	secured.DELETE("/waitlist/:id", h.waitlist.Leave)

	secured.POST("/bookings/sessions", h.bookings.BookSessions)
	secured.POST("/courses/:id/bookings", h.bookings.BookCourse)
	secured.GET("/bookings", h.bookings.ListMine)
	secured.PATCH("/bookings/:id/cancel", h.bookings.Cancel)
	secured.PATCH("/bookings/:id/confirm", h.bookings.Confirm)

	// Instructors may hold a student account; ownership is matched on email in the service.
	secured.PATCH("/courses/:id/instructor-confirm", h.courses.InstructorConfirm)
	secured.PATCH("/courses/:id/instructor-decline", h.courses.InstructorDecline)

	staff := secured.Group("")
	staff.Use(internalmiddleware.RequireStaff())

	staff.POST("/courses", h.courses.Create)
	staff.PUT("/courses/:id", h.courses.Update)
	staff.DELETE("/courses/:id", h.courses.Delete)
	staff.PATCH("/courses/:id/confirm", h.courses.Confirm)
	staff.PATCH("/courses/:id/approve-first", internalmiddleware.RequireRoles(models.RoleAdmin), h.courses.ApproveFirst)

	staff.POST("/courses/:id/schedules", h.schedules.Generate)
	staff.GET("/courses/:id/sessions/export", h.schedules.ExportSessions)
	staff.PATCH("/sessions/:id", h.schedules.UpdateSession)
	staff.DELETE("/schedules/:id", h.schedules.DeleteSchedule)
	staff.POST("/validate-schedule", h.schedules.ValidateSchedule)

	staff.GET("/schools/:id/bookings", h.bookings.ListBySchool)

	staff.POST("/locations", h.locations.Create)
	staff.PUT("/locations/:id", h.locations.Update)
	staff.DELETE("/locations/:id", h.locations.Delete)

	staff.POST("/instructors", h.instructors.Create)
	staff.PUT("/instructors/:id", h.instructors.Update)
	staff.DELETE("/instructors/:id", h.instructors.Delete)
	staff.POST("/instructors/:id/availability", h.instructors.AddAvailability)
	staff.DELETE("/availability/:id", h.instructors.DeleteAvailability)

	staff.GET("/metrics/summary", h.metrics.Summary)
}
