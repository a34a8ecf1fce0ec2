// Package server exposes the retrieval engine and chat over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ragchat/internal/config"
	"ragchat/internal/domain"
	genopenai "ragchat/internal/generation/openai"
	"ragchat/internal/markdown"
	"ragchat/internal/metrics"
	"ragchat/internal/ratelimit"
	"ragchat/internal/service"
	"ragchat/internal/session"
)

// Engine is the part of the RAG service the HTTP layer drives.
type Engine interface {
	IngestFile(ctx context.Context, path string, chunkSize int) (service.IngestResult, error)
	Search(ctx context.Context, query string, k int) ([]service.Result, error)
	Chat(ctx context.Context, settings service.ChatSettings, message string) (string, error)
	SourceFiles() []domain.SourceFileRecord
}

// ModelInspector reports the model currently served by the generation backend.
type ModelInspector interface {
	ModelInfo(ctx context.Context) (genopenai.ModelInfo, error)
}

// Options wires the server's collaborators. Nil Logger, Metrics and Models
// are allowed.
type Options struct {
	Server     config.ServerConfig
	RateLimits config.RateLimitConfig
	Sessions   *session.Store
	Models     ModelInspector
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
}

// Server holds the state for the REST API server.
type Server struct {
	engine   Engine
	models   ModelInspector
	sessions *session.Store
	cfg      config.ServerConfig
	limiter  *ratelimit.Limiter
	rules    map[string]ratelimit.Rule
	markdown *markdown.Renderer
	log      *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	router   *gin.Engine
}

// New creates a Server with all routes registered. It fails when a rate limit
// rule cannot be parsed.
func New(engine Engine, opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewStore(opts.Server.MaxSessions, opts.Server.SessionTTL(), service.DefaultChatSettings())
	}
	rules, err := parseRules(opts.RateLimits)
	if err != nil {
		return nil, err
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		engine:   engine,
		models:   opts.Models,
		sessions: sessions,
		cfg:      opts.Server,
		limiter:  ratelimit.New(100000, 24*time.Hour),
		rules:    rules,
		markdown: markdown.New(),
		log:      log,
		metrics:  opts.Metrics,
		gatherer: gatherer,
		router:   gin.New(),
	}
	s.setupRoutes()
	return s, nil
}

func parseRules(cfg config.RateLimitConfig) (map[string]ratelimit.Rule, error) {
	raw := map[string]string{
		routeDefault:        cfg.Default,
		routeModelInfo:      cfg.ModelInfo,
		routeProcessedFiles: cfg.ProcessedFiles,
		routeConfig:         cfg.Config,
		routeUpload:         cfg.Upload,
		routeChat:           cfg.Chat,
	}
	rules := make(map[string]ratelimit.Rule, len(raw))
	for route, value := range raw {
		if value == "" {
			continue
		}
		rule, err := ratelimit.ParseRule(value)
		if err != nil {
			return nil, fmt.Errorf("rate_limits.%s: %w", route, err)
		}
		rules[route] = rule
	}
	return rules, nil
}

const (
	routeDefault        = "default"
	routeModelInfo      = "model_info"
	routeProcessedFiles = "processed_files"
	routeConfig         = "config"
	routeUpload         = "upload"
	routeChat           = "chat"
)

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(s.recovery(), s.requestLog())

	r.GET("/health", s.healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	if s.cfg.StaticDir != "" {
		r.Static("/static", s.cfg.StaticDir)
	}

	app := r.Group("/", s.withSession())
	app.GET("/", s.limit(routeDefault), s.handleHome)
	app.GET("/model-info", s.limit(routeModelInfo), s.handleModelInfo)
	app.GET("/processed-files", s.limit(routeProcessedFiles), s.handleProcessedFiles)
	app.POST("/save-config", s.limit(routeConfig), s.handleSaveConfig)
	app.POST("/reset-config", s.limit(routeConfig), s.handleResetConfig)
	app.POST("/upload", s.limit(routeUpload), s.handleUpload)
	app.POST("/chat", s.limit(routeChat), s.handleChat)
	app.POST("/query", s.limit(routeDefault), s.handleQuery)
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}
