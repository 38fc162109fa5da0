package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/imsantiagopoli/pilly/internal/middleware"
	"github.com/imsantiagopoli/pilly/pkg/api"
	"go.uber.org/zap"
)

// Server combines the per-area handlers into one api.ServerInterface
type Server struct {
	*HealthHandler
	*MedicationHandler
	*DoseHandler
	*ReportHandler
	*AssistantHandler
}

var _ api.ServerInterface = (*Server)(nil)

// RouterOptions configures NewRouter
type RouterOptions struct {
	AllowOrigins []string
	// Observer receives per-request metrics; nil disables them
	Observer middleware.HTTPObserver
	// MetricsHandler is served at /metrics when set
	MetricsHandler http.Handler
}

// NewRouter builds the gin engine with the middleware chain and every API route
func NewRouter(server *Server, opts RouterOptions, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// Add recovery middleware (must be first)
	r.Use(middleware.RecoveryMiddleware(logger))

	origins := opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	r.Use(middleware.RequestIDMiddleware())
	if opts.Observer != nil {
		r.Use(middleware.MetricsMiddleware(opts.Observer))
	}
	r.Use(middleware.RequestLoggingMiddleware(logger))
	r.Use(middleware.ErrorLoggingMiddleware(logger))

	if opts.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	api.RegisterHandlers(r, server)

	return r
}
