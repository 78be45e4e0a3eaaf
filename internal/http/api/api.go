// Package api wires the HTTP surface: session endpoints, frame CRUD, pixel
// placement, access requests, and the realtime subscription upgrade.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pixelframe/pixelframe/internal/config"
	"github.com/pixelframe/pixelframe/internal/http/api/handlers"
	"github.com/pixelframe/pixelframe/internal/models"
	"github.com/pixelframe/pixelframe/internal/permission"
	"github.com/pixelframe/pixelframe/internal/placement"
	"github.com/pixelframe/pixelframe/internal/quota"
	"github.com/pixelframe/pixelframe/internal/realtime"
	"github.com/pixelframe/pixelframe/internal/security"
	"github.com/pixelframe/pixelframe/internal/snapshot"
	"gorm.io/gorm"
)

// Deps bundles everything the route handlers need.
type Deps struct {
	DB          *gorm.DB
	JWT         config.JWTConfig
	Quota       *quota.Manager
	Permissions *permission.Store
	Placement   *placement.Service
	Snapshots   *snapshot.Store
	Hub         *realtime.Hub
}

// RegisterRoutes attaches all API routes to the engine.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	apiGroup := r.Group("/api")

	authHandler := handlers.NewAuthHandler(deps.DB, deps.JWT)
	apiGroup.POST("/register", authHandler.Register)
	apiGroup.POST("/login", authHandler.Login)

	authed := apiGroup.Group("")
	authed.Use(sessionAuthMiddleware(deps.DB, deps.JWT))

	frameHandler := handlers.NewFrameHandler(deps.DB, deps.Permissions, deps.Snapshots, deps.Hub)
	authed.POST("/frames", frameHandler.Create)
	authed.GET("/frames", frameHandler.ListOwn)
	authed.GET("/frames/:owner/:slug", frameHandler.Get)
	authed.PUT("/frames/:owner/:slug", frameHandler.UpdateSettings)
	authed.DELETE("/frames/:owner/:slug", frameHandler.Delete)
	authed.GET("/frames/:owner/:slug/state", frameHandler.State)

	pixelHandler := handlers.NewPixelHandler(deps.DB, deps.Placement)
	authed.POST("/frames/:owner/:slug/pixels", pixelHandler.Place)
	authed.POST("/frames/:owner/:slug/undo", pixelHandler.Undo)

	permissionHandler := handlers.NewPermissionHandler(deps.DB, deps.Permissions)
	authed.POST("/frames/:owner/:slug/access-requests", permissionHandler.RequestAccess)
	authed.GET("/frames/:owner/:slug/permissions", permissionHandler.List)
	authed.POST("/frames/:owner/:slug/permissions", permissionHandler.Resolve)

	quotaHandler := handlers.NewQuotaHandler(deps.Quota)
	authed.GET("/quota", quotaHandler.Get)

	liveHandler := handlers.NewLiveHandler(deps.DB, deps.Permissions, deps.Hub)
	authed.GET("/frames/:owner/:slug/live", liveHandler.Subscribe)
}

// sessionAuthMiddleware validates the bearer token and injects the caller's
// handle into the context. WebSocket clients cannot set headers from the
// browser, so a token query parameter is accepted as a fallback.
func sessionAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			trimmed := strings.TrimPrefix(authHeader, "Bearer ")
			if trimmed == authHeader {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
				return
			}
			token = strings.TrimSpace(trimmed)
		} else {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "load user failed"})
			return
		}
		if user.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		c.Set("userHandle", user.Handle)
		c.Next()
	}
}
