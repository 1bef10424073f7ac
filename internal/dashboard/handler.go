package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"permit-backend/internal/shared/auth"
	"permit-backend/internal/shared/server/middleware"
	"permit-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes mounts the dashboard routes on rg. Every route requires a signed-in user.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("", middleware.RequireAuth())
	g.GET("/dashboard/stats", h.stats)
	g.GET("/dashboard/activity", h.activity)
	g.GET("/plans", h.listPlans)
	g.PUT("/plans/:id/status", middleware.RequireRole(auth.RoleAdmin), h.setPlanStatus)
	g.GET("/appointments", h.listAppointments)
	g.POST("/appointments", h.createAppointment)
	g.PUT("/appointments/:id", h.updateAppointment)
	g.DELETE("/appointments/:id", h.cancelAppointment)
}

type appointmentRequest struct {
	Type     AppointmentType   `json:"type"`
	Date     string            `json:"date"`
	Time     string            `json:"time"`
	Notes    *string           `json:"notes"`
	Location *string           `json:"location"`
	Status   AppointmentStatus `json:"status"`
}

type planStatusRequest struct {
	Status PlanStatus `json:"status"`
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.Svc.Stats(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.fail(c, err, "failed to load stats")
		return
	}
	respond.OK(c, stats)
}

func (h *Handler) activity(c *gin.Context) {
	limit := DefaultActivityLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respond.Validation(c, "limit must be an integer", "limit", "invalid_int")
			return
		}
		limit = parsed
	}
	items, err := h.Svc.Activity(c.Request.Context(), middleware.UserIDFromContext(c), limit)
	if err != nil {
		h.fail(c, err, "failed to load activity")
		return
	}
	respond.OK(c, items)
}

func (h *Handler) listPlans(c *gin.Context) {
	plans, err := h.Svc.ListPlans(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.fail(c, err, "failed to list plans")
		return
	}
	respond.OK(c, plans)
}

func (h *Handler) setPlanStatus(c *gin.Context) {
	var req planStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Validation(c, "invalid JSON body", "body", "invalid_json")
		return
	}
	plan, err := h.Svc.SetPlanStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.fail(c, err, "failed to update plan")
		return
	}
	respond.OK(c, gin.H{"id": plan.ID, "status": plan.Status})
}

func (h *Handler) listAppointments(c *gin.Context) {
	appts, err := h.Svc.ListAppointments(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.fail(c, err, "failed to list appointments")
		return
	}
	respond.OK(c, appts)
}

func (h *Handler) createAppointment(c *gin.Context) {
	var req appointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Validation(c, "invalid JSON body", "body", "invalid_json")
		return
	}
	appt, err := h.Svc.CreateAppointment(c.Request.Context(), middleware.UserIDFromContext(c), AppointmentInput(req))
	if err != nil {
		h.fail(c, err, "failed to create appointment")
		return
	}
	respond.JSON(c, http.StatusCreated, appt)
}

func (h *Handler) updateAppointment(c *gin.Context) {
	var req appointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Validation(c, "invalid JSON body", "body", "invalid_json")
		return
	}
	appt, err := h.Svc.UpdateAppointment(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), AppointmentInput(req))
	if err != nil {
		h.fail(c, err, "failed to update appointment")
		return
	}
	respond.OK(c, appt)
}

func (h *Handler) cancelAppointment(c *gin.Context) {
	appt, err := h.Svc.CancelAppointment(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to cancel appointment")
		return
	}
	respond.OK(c, appt)
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Validation(c, verr.Message, verr.Field, verr.Issue)
	case errors.Is(err, ErrPlanNotFound), errors.Is(err, ErrAppointmentNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
