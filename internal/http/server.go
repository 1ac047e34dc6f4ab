// Package http exposes the ledger, dashboard, budget and backup services as
// a JSON API with a websocket feed of live snapshots.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spendwise/internal/auth"
	"spendwise/internal/log"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/middleware/security"
	"spendwise/internal/middleware/trace"
	"spendwise/internal/services"
)

// DefaultMaxImportBytes bounds backup uploads.
const DefaultMaxImportBytes = 10 << 20

// Services are the application services the API serves.
type Services struct {
	Ledger    *services.TransactionService
	Dashboard *services.DashboardService
	Budget    *services.BudgetService
	Backup    *services.BackupService
}

// Options configures the server.
type Options struct {
	Addr   string
	Tokens *auth.Tokens
	// Limiter throttles writes per client; nil disables throttling.
	Limiter ratelimit.Allower
	// AllowedOrigin restricts websocket upgrades; empty allows any origin.
	AllowedOrigin  string
	MaxImportBytes int64
	// Ready reports whether backing stores are reachable.
	Ready  func(ctx context.Context) error
	Clock  func() time.Time
	Logger *log.Logger
}

type Server struct {
	http.Server
	engine   *gin.Engine
	svc      Services
	tokens   *auth.Tokens
	opts     Options
	now      func() time.Time
	detector *security.Detector
	logger   *log.Logger

	shutdownOnce sync.Once
}

func NewServer(svc Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MaxImportBytes <= 0 {
		opts.MaxImportBytes = DefaultMaxImportBytes
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	engine := gin.New()
	engine.Use(gin.Recovery())
	detector := security.NewDetector(logger)
	if err := engine.SetTrustedProxies(detector.TrustedProxies()); err != nil {
		logger.Warn("Trusted proxies rejected", log.FieldError, err)
	}

	s := &Server{
		engine:   engine,
		svc:      svc,
		tokens:   opts.Tokens,
		opts:     opts,
		now:      opts.Clock,
		detector: detector,
		logger:   logger,
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.Use(
		trace.RequestID(s.logger),
		trace.Logger(s.logger),
		security.Headers(security.DefaultHeadersConfig()),
		s.detector.Middleware(),
	)

	r.GET("/health", handleHealth)
	r.GET("/ready", s.handleReady)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/snapshots", s.handleSnapshots)

	api := r.Group("/api", s.requireOwner())
	if s.opts.Limiter != nil {
		api.Use(ratelimit.WritesOnly(ratelimit.Middleware(s.opts.Limiter, ownerOrIP)))
	}

	api.POST("/transactions", s.handleCreateTransaction)
	api.GET("/transactions", s.handleListTransactions)
	api.GET("/transactions/:id", s.handleGetTransaction)
	api.PUT("/transactions/:id", s.handleUpdateTransaction)
	api.DELETE("/transactions/:id", s.handleDeleteTransaction)

	api.GET("/summary", s.handleSummary)
	api.GET("/insights", s.handleInsights)
	api.GET("/yearly", s.handleYearly)

	api.GET("/budget", s.handleGetBudget)
	api.PUT("/budget", s.handleSetBudget)
	api.DELETE("/budget", s.handleClearBudget)

	api.GET("/backup/export", s.handleExport)
	api.POST("/backup/import", s.handleImport)
	api.POST("/backup/cloud", s.handleCloudBackup)
	api.GET("/backup/cloud", s.handleCloudStatus)
	api.DELETE("/backup/cloud", s.handleCloudDelete)
	api.POST("/backup/cloud/restore", s.handleCloudRestore)
}

// requireOwner verifies the bearer token and puts its owner in the request
// context for the services' OwnerContext.
func (s *Server) requireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			writeError(c, auth.ErrInvalidToken)
			return
		}
		if err := s.authenticate(c, raw); err != nil {
			writeError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authenticate(c *gin.Context, raw string) error {
	if s.tokens == nil {
		return auth.ErrNoSecret
	}
	owner, err := s.tokens.Parse(raw)
	if err != nil {
		return err
	}
	ctx := auth.WithOwner(c.Request.Context(), owner)
	ctx = log.WithContext(ctx, log.FromContext(ctx).With(log.FieldOwner, owner))
	c.Request = c.Request.WithContext(ctx)
	c.Set(log.FieldOwner, owner)
	return nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ownerOrIP keys the limiter by owner so that users behind one NAT do not
// share a budget.
func ownerOrIP(c *gin.Context) string {
	if owner := c.GetString(log.FieldOwner); owner != "" {
		return "owner:" + owner
	}
	return "ip:" + c.ClientIP()
}

func handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleReady(c *gin.Context) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			c.String(http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	c.String(http.StatusOK, "ready")
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if l, ok := s.opts.Limiter.(*ratelimit.Limiter); ok {
			l.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
