package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	apperrors "github.com/louisbranch/gathering.space/internal/platform/errors"
	"github.com/louisbranch/gathering.space/internal/services/shared/authctx"
)

// BasePath prefixes every versioned API route.
const BasePath = "/api/v1"

// RouteRegistrar mounts one service's routes onto the authenticated API group.
type RouteRegistrar interface {
	RegisterRoutes(api *gin.RouterGroup)
}

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Service  string
	Verifier authctx.Verifier
	// Healthy reports readiness for GET /healthz. Nil means always healthy.
	Healthy func() bool
}

// NewRouter builds the gin engine with the shared middleware chain and mounts
// each registrar under BasePath behind authentication.
func NewRouter(cfg RouterConfig, registrars ...RouteRegistrar) *gin.Engine {
	router := gin.New()
	router.Use(Recovery(), Tracing(cfg.Service), AccessLog(), Language())
	router.NoRoute(func(c *gin.Context) {
		WriteError(c, apperrors.New(apperrors.CodeNotFound, "route not found"))
	})

	router.GET("/healthz", func(c *gin.Context) {
		if cfg.Healthy != nil && !cfg.Healthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": cfg.Service})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.Service})
	})

	api := router.Group(BasePath)
	api.Use(Authenticate(cfg.Verifier))
	for _, registrar := range registrars {
		if registrar != nil {
			registrar.RegisterRoutes(api)
		}
	}
	return router
}

// WithCORS wraps handler with a CORS policy for allowedOrigins. An empty list
// leaves the handler unchanged.
func WithCORS(handler http.Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		return handler
	}
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept-Language"},
		AllowCredentials: true,
	}).Handler(handler)
}
