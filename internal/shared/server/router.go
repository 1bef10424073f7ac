package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "permit-backend/internal/auth"
	"permit-backend/internal/dashboard"
	"permit-backend/internal/reviews"
	"permit-backend/internal/services/health"
	"permit-backend/internal/shared/config"
	"permit-backend/internal/shared/metrics"
	"permit-backend/internal/shared/server/middleware"
	"permit-backend/internal/shared/server/respond"
	"permit-backend/internal/users"
	"permit-backend/internal/webhooks"
)

const uploadRateGroup = "UPLOAD"

// RouterDeps carries the handlers mounted under /api. Nil handlers are skipped.
type RouterDeps struct {
	Config    config.Config
	Tokens    middleware.TokenVerifier
	Health    *health.Service
	Reviews   *reviews.Handler
	Users     *users.Handler
	Dashboard *dashboard.Handler
	Webhooks  *webhooks.Handler
	Google    *googleauth.GoogleService
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Authenticate(deps.Tokens),
	)
	if deps.Config.RateLimitRPS > 0 {
		r.Use(middleware.RateLimit(rateLimitConfig(deps.Config)))
	}

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.JSON(c, http.StatusOK, gin.H{"status": "ok"})
			return
		}
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	registerMeRoutes(api)

	if deps.Reviews != nil {
		deps.Reviews.RegisterRoutes(api)
	}
	if deps.Users != nil {
		deps.Users.RegisterRoutes(api)
	}
	if deps.Google != nil {
		deps.Google.RegisterRoutes(api)
	}
	if deps.Dashboard != nil {
		deps.Dashboard.RegisterRoutes(api)
	}
	if deps.Webhooks != nil {
		deps.Webhooks.RegisterRoutes(api)
	}
	return r
}

// rateLimitConfig gives plan uploads a tighter bucket than the rest of the API.
func rateLimitConfig(cfg config.Config) middleware.RateLimitConfig {
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}
	uploadBurst := burst / 4
	if uploadBurst < 1 {
		uploadBurst = 1
	}
	return middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT":       {Rate: cfg.RateLimitRPS, Burst: burst},
			uploadRateGroup: {Rate: cfg.RateLimitRPS / 4, Burst: uploadBurst},
		},
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost && strings.HasSuffix(c.Request.URL.Path, "/planreview/upload") {
				return uploadRateGroup
			}
			return ""
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
