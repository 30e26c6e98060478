package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch-service/internal/config"
	"dispatch-service/internal/identity"
	"dispatch-service/internal/logging"
	"dispatch-service/internal/ws"
)

func NewRouter(h *Handler, gateway *ws.Gateway, verifier identity.TokenVerifier, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The gateway verifies its own token; browsers cannot set headers on dials.
	r.GET("/ws", gateway.Handle)

	api := r.Group(cfg.API.BasePath)
	api.Use(AuthMiddleware(verifier, logger))
	{
		// Alerts
		api.POST("/alerts", h.CreateAlert)
		api.GET("/alerts", h.ListAlerts)
		api.GET("/alerts/:code", h.GetAlert)
		api.PATCH("/alerts/:code/status", h.UpdateStatus)
		api.POST("/alerts/:code/responders", h.AssignResponder)
		api.PATCH("/alerts/:code/responders/:responder_id", h.UpdateResponderStatus)
		api.POST("/alerts/:code/volunteer", h.Volunteer)
		api.POST("/alerts/:code/updates", h.AddUpdate)
		api.POST("/alerts/:code/escalate", h.Escalate)

		// Dispatch
		api.POST("/broadcast", h.Broadcast)

		// Reporting
		api.GET("/stats", h.GetStats)
		api.GET("/nearby", h.FindNearby)

		// Emergency contacts
		api.POST("/contacts", h.CreateContact)
		api.GET("/contacts", h.ListContacts)
		api.DELETE("/contacts/:id", h.DeleteContact)
	}
	return r
}
