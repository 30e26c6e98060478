package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dispatch-service/internal/alerts"
	"dispatch-service/internal/contacts"
	"dispatch-service/internal/db"
	"dispatch-service/internal/identity"
	"dispatch-service/internal/logging"
	"dispatch-service/internal/models"
)

type Handler struct {
	svc           *alerts.Service
	stats         *alerts.Aggregator
	contacts      *db.ContactStore
	dir           identity.Directory
	logger        *logging.Logger
	telegramToken string
}

func NewHandler(svc *alerts.Service, stats *alerts.Aggregator, contacts *db.ContactStore, dir identity.Directory, logger *logging.Logger, telegramToken string) *Handler {
	return &Handler{svc: svc, stats: stats, contacts: contacts, dir: dir, logger: logger, telegramToken: telegramToken}
}

// actor resolves the request identity into a domain actor.
func (h *Handler) actor(c *gin.Context) alerts.Actor {
	claims := claimsFrom(c)
	admin := claims.Admin()
	if !admin {
		if ok, err := h.dir.IsAdmin(c.Request.Context(), claims.UserID); err == nil && ok {
			admin = true
		}
	}
	return alerts.Actor{ID: claims.UserID, Admin: admin, Responder: claims.Role == "responder"}
}

// statusFor maps domain error kinds onto HTTP statuses.
func statusFor(err error) int {
	switch alerts.KindOf(err) {
	case alerts.KindNotFound, alerts.KindResponderNotFound:
		return http.StatusNotFound
	case alerts.KindValidation:
		return http.StatusBadRequest
	case alerts.KindAccessDenied:
		return http.StatusForbidden
	case alerts.KindInvalidTransition, alerts.KindDuplicateAssignment,
		alerts.KindEscalationTooSoon, alerts.KindNoEscalationTarget:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorf("Internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": string(alerts.KindOf(err))})
}

func (h *Handler) CreateAlert(c *gin.Context) {
	var req models.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid request body for alert: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	alert, err := h.svc.Create(c.Request.Context(), claimsFrom(c).UserID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *Handler) GetAlert(c *gin.Context) {
	alert, err := h.svc.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) ListAlerts(c *gin.Context) {
	var filter models.ListAlertsFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter"})
		return
	}

	list, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": list, "total": total})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	alert, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("code"), h.actor(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) AssignResponder(c *gin.Context) {
	var req models.AssignResponderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	alert, err := h.svc.AssignResponder(c.Request.Context(), c.Param("code"), h.actor(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) UpdateResponderStatus(c *gin.Context) {
	var req models.UpdateResponderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	alert, err := h.svc.UpdateResponderStatus(c.Request.Context(), c.Param("code"), h.actor(c), c.Param("responder_id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) Volunteer(c *gin.Context) {
	var req models.VolunteerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	alert, err := h.svc.Volunteer(c.Request.Context(), c.Param("code"), claimsFrom(c).UserID, req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) AddUpdate(c *gin.Context) {
	var req models.AddUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	alert, err := h.svc.AddUpdate(c.Request.Context(), c.Param("code"), h.actor(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) Escalate(c *gin.Context) {
	var req models.EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	alert, err := h.svc.Escalate(c.Request.Context(), c.Param("code"), h.actor(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) Broadcast(c *gin.Context) {
	var req models.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.svc.Broadcast(h.actor(c), req.Message); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Broadcast sent"})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) FindNearby(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lat"})
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lng"})
		return
	}
	radius, err := strconv.ParseFloat(c.DefaultQuery("radius_km", "5"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid radius_km"})
		return
	}

	nearby, err := h.stats.FindNearby(c.Request.Context(), lat, lng, radius)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": nearby})
}

func (h *Handler) CreateContact(c *gin.Context) {
	var req models.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	// A telegram contact must be reachable before it is registered.
	if req.ChatID != 0 && h.telegramToken != "" {
		if err := contacts.ProbeTelegram(c.Request.Context(), h.telegramToken, req.ChatID); err != nil {
			h.logger.Errorf("Telegram check failed for chat_id %d: %v", req.ChatID, err)
			c.JSON(http.StatusForbidden, gin.H{"error": "Cannot send message to this chat_id. Please start the bot first."})
			return
		}
	}

	contact, err := h.contacts.Create(c.Request.Context(), models.EmergencyContact{
		ReporterID: claimsFrom(c).UserID,
		UserID:     req.UserID,
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		ChatID:     req.ChatID,
		Relation:   req.Relation,
	})
	if err != nil {
		h.logger.Errorf("Failed to create contact: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create contact"})
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *Handler) ListContacts(c *gin.Context) {
	contacts, err := h.contacts.ListByReporter(c.Request.Context(), claimsFrom(c).UserID)
	if err != nil {
		h.logger.Errorf("Failed to list contacts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list contacts"})
		return
	}
	c.JSON(http.StatusOK, contacts)
}

func (h *Handler) DeleteContact(c *gin.Context) {
	if err := h.contacts.Delete(c.Request.Context(), claimsFrom(c).UserID, c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contact deleted"})
}
