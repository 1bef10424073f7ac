package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"permit-backend/internal/shared/server/middleware"
	"permit-backend/internal/shared/server/respond"
)

// registerMeRoutes attaches /me, which echoes the identity carried by the token.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", middleware.RequireAuth(), meHandler)
}

func meHandler(c *gin.Context) {
	response := gin.H{
		"userId": middleware.UserIDFromContext(c),
		"role":   middleware.UserRoleFromContext(c),
	}
	if email := middleware.UserEmailFromContext(c); email != "" {
		response["email"] = email
	}
	if name := middleware.UserNameFromContext(c); name != "" {
		response["name"] = name
	}
	respond.JSON(c, http.StatusOK, response)
}
