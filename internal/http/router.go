// README: HTTP router registration; delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldops/internal/http/handlers"
	"fieldops/internal/http/middleware"
	"fieldops/internal/infra"
	"fieldops/internal/modules/escalate"
	"fieldops/internal/modules/order"
	"fieldops/internal/modules/presence"
	"fieldops/internal/modules/reconcile"
	"fieldops/internal/notify"
)

type RouterDeps struct {
	Order     *order.Service
	Reconcile *reconcile.Service
	Escalate  *escalate.Service
	Presence  *presence.Service
	Devices   *notify.PgTokenStore
	// Verifier guards worker routes; nil disables auth (local runs, tests).
	Verifier infra.TokenVerifier
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	// Sweep triggers: trigger source is a deployment concern, so these
	// stay unauthenticated behind whatever fronts the service.
	sweeps := handlers.NewSweepHandler(deps.Reconcile, deps.Escalate)
	r.POST("/api/sweeps/reconcile", sweeps.Reconcile)
	r.POST("/api/sweeps/escalate", sweeps.Escalate)

	presenceHandler := handlers.NewPresenceHandler(deps.Presence)
	r.GET("/api/workers/live-status", presenceHandler.LiveStatus)

	worker := r.Group("/api")
	if deps.Verifier != nil {
		worker.Use(middleware.Auth(deps.Verifier))
	}

	orderHandler := handlers.NewOrderHandler(deps.Order)
	worker.GET("/orders/:id", orderHandler.Get)
	worker.POST("/orders/:id/assignments/:worker/accept", orderHandler.Accept)
	worker.POST("/orders/:id/assignments/:worker/reject", orderHandler.Reject)
	worker.POST("/orders/:id/readiness", orderHandler.AnswerReadiness)
	worker.POST("/orders/:id/stage", orderHandler.AdvanceStage)

	if deps.Devices != nil {
		deviceHandler := handlers.NewDeviceHandler(deps.Devices)
		worker.POST("/workers/:id/devices", deviceHandler.Register)
	}

	return r
}
