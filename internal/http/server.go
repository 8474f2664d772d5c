// Package http provides HTTP server implementation and request handlers.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	auditHTTP "github.com/allisson/gatekeeper/internal/audit/http"
	"github.com/allisson/gatekeeper/internal/config"
	gatewayHTTP "github.com/allisson/gatekeeper/internal/gateway/http"
	identityHTTP "github.com/allisson/gatekeeper/internal/identity/http"
	identityService "github.com/allisson/gatekeeper/internal/identity/service"
	"github.com/allisson/gatekeeper/internal/metrics"
	monitorHTTP "github.com/allisson/gatekeeper/internal/monitor/http"
	policyDomain "github.com/allisson/gatekeeper/internal/policy/domain"
)

// ReadinessCheck reports whether one dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// Server represents the HTTP server.
type Server struct {
	server *http.Server
	router *gin.Engine
	checks map[string]ReadinessCheck
	logger *slog.Logger
}

// NewServer creates a new HTTP server. checks are evaluated by /ready.
func NewServer(
	checks map[string]ReadinessCheck,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		checks: checks,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Handlers groups the API handlers mounted by SetupRouter.
type Handlers struct {
	Gateway     *gatewayHTTP.GatewayHandler
	Audit       *auditHTTP.AuditHandler
	LoginEvents *monitorHTTP.LoginEventHandler
}

// SetupRouter builds the gin engine with middleware and every route.
func (s *Server) SetupRouter(
	cfg *config.Config,
	handlers Handlers,
	verifier identityService.IdentityVerifier,
	metricsProvider *metrics.Provider,
) {
	gin.SetMode(cfg.GetGinMode())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))
	if cors := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); cors != nil {
		router.Use(cors)
	}
	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	if cfg.RateLimitEnabled {
		v1.Use(IPRateLimitMiddleware(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}

	if handlers.Gateway != nil {
		v1.POST("/resources/:type/:id/encrypt", handlers.Gateway.EncryptHandler)
		v1.POST("/resolve", handlers.Gateway.ResolveHandler)
		v1.GET("/sessions/:id/artifacts/*path", handlers.Gateway.ReadArtifactHandler)
		v1.DELETE("/sessions/:id", handlers.Gateway.LogoutHandler)
	}

	admin := identityHTTP.RequireRole(verifier, s.logger, policyDomain.RoleAdmin)
	if handlers.Audit != nil {
		audit := v1.Group("/audit", admin)
		audit.GET("/verify", handlers.Audit.VerifyHandler)
		audit.GET("/entries", handlers.Audit.ListHandler)
	}
	if handlers.LoginEvents != nil {
		v1.POST("/monitor/login-events", admin, handlers.LoginEvents.RecordHandler)
	}

	s.router = router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not configured")
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler runs every readiness check with a short deadline.
// A server without checks is never ready.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	components := gin.H{}
	ready := len(s.checks) > 0
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn("readiness check failed", slog.String("component", name), slog.Any("error", err))
			components[name] = "error"
			ready = false
			continue
		}
		components[name] = "ok"
	}
	if len(s.checks) == 0 {
		components["storage"] = "error"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}

// GetHandler returns the configured router for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}
