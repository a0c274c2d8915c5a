package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/biomatch-server/internal/cache"
	"github.com/biomatch-server/internal/domain"
	"github.com/biomatch-server/internal/metrics"
	"github.com/biomatch-server/internal/middleware"
	"github.com/biomatch-server/internal/review"
	"github.com/biomatch-server/internal/service"
)

// Dependencies are the collaborators the HTTP API serves
type Dependencies struct {
	Engine   domain.MatchingEngine
	Store    *cache.Store
	Reviews  *review.Service
	Notifier domain.Notifier
	Reports  *service.ReportGenerator
	Metrics  *metrics.Metrics // optional
	Logger   *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	cfg      *domain.Config
	deps     Dependencies
	router   *gin.Engine
	server   *http.Server
	batch    *service.BatchMatcher
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewServer wires routes and middleware
func NewServer(cfg *domain.Config, deps Dependencies) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	if deps.Reports == nil {
		deps.Reports = service.NewReportGenerator(deps.Engine.ListModels())
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AuditLogger(deps.Logger))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimit)))
	}
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: router,
		batch:  service.NewBatchMatcher(deps.Engine, cfg.Matching.WorkerConcurrency, deps.Logger),
		logger: deps.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/models", s.handleListModels)

		v1.POST("/samples", s.handleIngest)
		v1.GET("/samples/:id", s.handleGetSample)
		v1.POST("/samples/:id/matches", s.handleFindMatches)
		v1.POST("/samples/:id/matches/more", s.handleFindMoreMatches)
		v1.GET("/samples/:id/matches/stream", s.handleStreamMatches)
		v1.GET("/samples/:id/report", s.handleReport)

		v1.POST("/batch/matches", s.handleBatchMatches)

		v1.GET("/matches/:id", s.handleGetMatch)
		v1.POST("/matches/:id/contact", s.handleContactDonor)
		v1.POST("/matches/:id/review", s.handleSubmitReview)

		v1.GET("/reviews", s.handleListReviews)
		v1.GET("/reviews/stats", s.handleReviewStats)
		v1.GET("/reviews/:id", s.handleGetReview)
		v1.POST("/reviews/:id/approve", s.handleApproveReview)
		v1.POST("/reviews/:id/decline", s.handleDeclineReview)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"cache":     s.deps.Store.Stats(),
	})
}

func (s *Server) handleListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": s.deps.Engine.ListModels()})
}
