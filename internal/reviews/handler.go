package reviews

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"permit-backend/internal/shared/server/middleware"
	"permit-backend/internal/shared/server/respond"
)

// maxUploadBodyBytes bounds the JSON upload body, base64 included.
const maxUploadBodyBytes = 32 << 20

// Handler exposes the plan review endpoints.
type Handler struct {
	Svc      *Service
	Throttle *PollThrottle
}

func NewHandler(svc *Service, throttle *PollThrottle) *Handler {
	return &Handler{Svc: svc, Throttle: throttle}
}

// RegisterRoutes mounts the review routes on rg (normally /api).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/planreview/upload", h.upload)
	rg.GET("/planreview/:id", h.get)
	rg.GET("/planreview", h.listRecent)
}

type uploadRequest struct {
	ImageBase64 string `json:"imageBase64"`
	FileName    string `json:"fileName"`
	City        string `json:"city"`
}

type uploadResponse struct {
	ReviewID string `json:"reviewId"`
	Status   Status `json:"status"`
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBodyBytes)
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "plan upload is too large", nil)
			return
		}
		respond.Validation(c, "invalid JSON body", "body", "invalid_json")
		return
	}
	if strings.TrimSpace(req.ImageBase64) == "" {
		respond.Validation(c, "ImageBase64 is required", "imageBase64", "required")
		return
	}
	image, err := decodeImage(req.ImageBase64)
	if err != nil || len(image) == 0 {
		respond.Validation(c, "imageBase64 is not valid base64", "imageBase64", "invalid_base64")
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	review, err := h.Svc.Submit(ctx, SubmitRequest{
		Image:    image,
		FileName: req.FileName,
		City:     req.City,
		UserID:   middleware.UserIDFromContext(c),
	})
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			respond.Validation(c, verr.Message, verr.Field, verr.Issue)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit plan", nil)
		return
	}

	c.Set(middleware.ReviewIDKey, review.ID)
	c.Set(middleware.StatusTransitionKey, "->"+string(review.Status()))
	respond.JSON(c, http.StatusOK, uploadResponse{ReviewID: review.ID, Status: review.Status()})
}

func (h *Handler) get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set(middleware.ReviewIDKey, id)

	if !h.Throttle.Allow(pollClient(c), id) {
		c.Header("Retry-After", strconv.Itoa(h.Throttle.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "poll_too_frequent", "review polled too frequently", nil)
		return
	}

	review, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "Review "+id+" not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch review", nil)
		return
	}
	respond.JSON(c, http.StatusOK, review)
}

func (h *Handler) listRecent(c *gin.Context) {
	count := DefaultListCount
	if raw := strings.TrimSpace(c.Query("count")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respond.Validation(c, "Count must be between 1 and 100", "count", "invalid_int")
			return
		}
		count = parsed
	}

	reviews, err := h.Svc.ListRecent(c.Request.Context(), count)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			respond.Validation(c, "Count must be between 1 and 100", verr.Field, verr.Issue)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list reviews", nil)
		return
	}
	respond.JSON(c, http.StatusOK, reviews)
}

// decodeImage accepts raw base64 or a data URI.
func decodeImage(raw string) ([]byte, error) {
	data := strings.TrimSpace(raw)
	if strings.HasPrefix(data, "data:") {
		if i := strings.Index(data, ","); i >= 0 {
			data = data[i+1:]
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
}

func pollClient(c *gin.Context) string {
	if id := middleware.UserIDFromContext(c); id != "" {
		return id
	}
	return c.ClientIP()
}
