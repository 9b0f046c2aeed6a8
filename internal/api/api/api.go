package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/wb-go/wbf/ginext"

	"roombooker/cmd/middleware"
	"roombooker/internal/telemetry"
)

// Routers holds the handlers a service exposes. Nil handlers are not mounted.
type Routers struct {
	ServiceName string
	Bookings    *BookingHandler
	Events      *EventHandler
	Approvals   *ApprovalHandler
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	app.Use(middleware.RequestID())
	app.Use(middleware.LoggingMiddleware())
	app.Use(telemetry.Middleware(r.ServiceName))
	app.Use(cors.Default())

	app.GET("/healthz", func(c *ginext.Context) {
		c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": r.ServiceName})
	})

	apiGroup := app.Group("/api")

	if h := r.Bookings; h != nil {
		bookings := apiGroup.Group("/bookings")
		bookings.POST("", h.Create)
		bookings.POST("/event", h.CreateForEvent)
		bookings.GET("", h.List)
		bookings.GET("/availability", h.Availability)
		bookings.GET("/user/:userId", h.ListByUser)
		bookings.GET("/:id", h.Get)
		bookings.PUT("/:id", h.Update)
		bookings.PUT("/:id/event", h.ReplaceForEvent)
		bookings.DELETE("/:id", h.Delete)
	}

	if h := r.Events; h != nil {
		events := apiGroup.Group("/events")
		events.POST("", h.Create)
		events.GET("", h.List)
		events.GET("/:id", h.Get)
		events.PUT("/:id", h.Update)
		events.PUT("/:id/status", h.UpdateStatus)
		events.DELETE("/:id", h.Delete)
		events.GET("/:id/exists", h.Exists)
	}

	if h := r.Approvals; h != nil {
		approvals := apiGroup.Group("/approvals")
		approvals.POST("/process", h.Process)
		approvals.GET("", h.List)
		approvals.GET("/event/:eventId", h.GetByEvent)
		approvals.GET("/:id", h.Get)
	}

	return app
}
