package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"permit-backend/internal/shared/server/middleware"
	"permit-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes mounts the account routes on rg (normally /api).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/register", h.register)
	rg.POST("/auth/login", h.login)
	rg.POST("/auth/change-password", middleware.RequireAuth(), h.changePassword)
	rg.GET("/users/profile", middleware.RequireAuth(), h.profile)
	rg.PUT("/users/profile", middleware.RequireAuth(), h.updateProfile)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type updateProfileRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Company *string `json:"company"`
	Street  *string `json:"street"`
	City    *string `json:"city"`
	State   *string `json:"state"`
	Zip     *string `json:"zip"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Validation(c, "invalid JSON body", "body", "invalid_json")
		return
	}
	user, err := h.Svc.Register(c.Request.Context(), RegisterInput(req))
	if err != nil {
		h.fail(c, err, "failed to register")
		return
	}
	respond.OK(c, gin.H{"message": "Registration successful!", "userId": user.ID})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Validation(c, "invalid JSON body", "body", "invalid_json")
		return
	}
	token, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err, "failed to log in")
		return
	}
	respond.OK(c, gin.H{"token": token})
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Validation(c, "invalid JSON body", "body", "invalid_json")
		return
	}
	err := h.Svc.ChangePassword(c.Request.Context(), middleware.UserIDFromContext(c), req.CurrentPassword, req.NewPassword)
	if errors.Is(err, ErrInvalidCredentials) {
		respond.Error(c, http.StatusBadRequest, "invalid_password", "Current password is incorrect.", nil)
		return
	}
	if err != nil {
		h.fail(c, err, "failed to change password")
		return
	}
	respond.Message(c, http.StatusOK, "Password updated.")
}

func (h *Handler) profile(c *gin.Context) {
	user, err := h.Svc.GetProfile(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.fail(c, err, "failed to load profile")
		return
	}
	respond.OK(c, user.Profile())
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Validation(c, "invalid JSON body", "body", "invalid_json")
		return
	}
	user, err := h.Svc.UpdateProfile(c.Request.Context(), middleware.UserIDFromContext(c), ProfileUpdate(req))
	if err != nil {
		h.fail(c, err, "failed to update profile")
		return
	}
	respond.OK(c, user.Profile())
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Error(c, http.StatusBadRequest, "validation_error", "Validation failed", verr.Issues)
	case errors.Is(err, ErrEmailTaken):
		respond.Error(c, http.StatusBadRequest, "email_taken", ErrEmailTaken.Error(), nil)
	case errors.Is(err, ErrInvalidCredentials):
		respond.Error(c, http.StatusUnauthorized, "invalid_credentials", ErrInvalidCredentials.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
