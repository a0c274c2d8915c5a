// Package mcp exposes the matching engine as MCP tools over stdio.
// Samples and results are retained in an in-memory cache between calls.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/biomatch-server/internal/cache"
	"github.com/biomatch-server/internal/config"
	"github.com/biomatch-server/internal/domain"
	"github.com/biomatch-server/internal/review"
	"github.com/biomatch-server/internal/service"
)

const (
	serverName    = "biomatch-mcp-server"
	serverVersion = "v0.1.0"
)

// Server is a lightweight MCP server that requires no external services
type Server struct {
	config    *config.LiteConfig
	mcpServer *mcp.Server
	engine    domain.MatchingEngine
	store     *cache.Store
	reviews   review.Store
	queue     *review.Service
	reports   *service.ReportGenerator
	matching  domain.MatchingConfig
	logger    *logrus.Logger
}

// Option is a functional option for Server
type Option func(*Server) error

// WithLogger sets a custom logger
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithEngine replaces the engine built from configuration
func WithEngine(engine domain.MatchingEngine) Option {
	return func(s *Server) error {
		if engine == nil {
			return fmt.Errorf("engine must not be nil")
		}
		s.engine = engine
		return nil
	}
}

// WithReviewStore sets a custom review queue store
func WithReviewStore(store review.Store) Option {
	return func(s *Server) error {
		s.reviews = store
		return nil
	}
}

// NewServer creates the MCP server and registers its tools
func NewServer(cfg *config.LiteConfig, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultLiteConfig()
	}

	server := &Server{
		config:   cfg,
		matching: cfg.MatchingConfig(),
		logger:   config.NewLogger(cfg.Logging()),
	}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if server.engine == nil {
		server.engine = service.NewEngine(server.matching, server.logger)
	}
	server.store = cache.NewStore(cfg.CacheMaxItems, cfg.CacheTTL, server.logger)
	server.reports = service.NewReportGenerator(server.engine.ListModels())

	if server.reviews == nil {
		store, err := review.NewSQLiteStore(cfg.ReviewDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create review store: %w", err)
		}
		server.reviews = store
	}
	server.queue = review.NewService(server.reviews, server.logger)

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)
	server.registerTools()

	server.logger.Info("MCP server initialized")
	return server, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "ingest_sample",
		Description: "Ingest a bio-sample upload with its declared sample type and optional attributes; returns the normalized sample",
	}, s.handleIngestSample)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_matches",
		Description: "Find ranked donor matches for a previously ingested sample",
	}, s.handleFindMatches)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_more_matches",
		Description: "Generate an additional batch of donor matches for a sample",
	}, s.handleFindMoreMatches)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_models",
		Description: "List the scoring model descriptors stamped on every match result",
	}, s.handleListModels)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "send_to_doctor",
		Description: "Queue a match result for doctor review",
	}, s.handleSendToDoctor)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_reviews",
		Description: "List doctor review requests, optionally filtered by status",
	}, s.handleListReviews)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "export_report",
		Description: "Write a match report for a sample to the data directory as json or yaml",
	}, s.handleExportReport)

	s.logger.WithField("tool_count", 7).Debug("Registered MCP tools")
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"name":    serverName,
		"version": serverVersion,
	}).Info("Starting MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server stopped: %w", err)
	}
	s.logger.Info("MCP server stopped")
	return nil
}

// Close releases the review store
func (s *Server) Close() error {
	if s.reviews != nil {
		return s.reviews.Close()
	}
	return nil
}
