// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/valpere/space2thread/internal/clip"
	"github.com/valpere/space2thread/internal/config"
	"github.com/valpere/space2thread/internal/llm"
	"github.com/valpere/space2thread/internal/logger"
	"github.com/valpere/space2thread/internal/pipeline"
	"github.com/valpere/space2thread/internal/store"
	"github.com/valpere/space2thread/internal/thread"
)

type ModelCatalog interface {
	Models(ctx context.Context) []llm.ModelInfo
}

type ConfigStore interface {
	Load() (config.Document, error)
	Update(u config.Update) (config.Document, error)
}

type SpaceFinder interface {
	LatestSpace(ctx context.Context, username string) (string, error)
}

type ThreadGenerator interface {
	Generate(ctx context.Context, transcript, segments string) (*thread.Outcome, error)
}

type Processor interface {
	Process(ctx context.Context, url string) (*pipeline.Result, error)
}

type ClipRenderer interface {
	Render(ctx context.Context, req clip.Request) (string, error)
	SaveLogo(originalName string, src io.Reader) (string, string, error)
	ClipPath(name string) (string, error)
}

type History interface {
	ListJobs(ctx context.Context, limit int) ([]store.Job, error)
	GetJob(ctx context.Context, id string) (*store.Job, error)
	LatestThreadRun(ctx context.Context, jobID string) (*store.ThreadRun, error)
	SaveThreadRun(ctx context.Context, jobID string, out *thread.Outcome) (string, error)
}

// Deps are the collaborators behind the routes. Scout and History may be nil;
// their routes then answer 500 and the thread route skips persistence.
type Deps struct {
	Catalog         ModelCatalog
	Config          ConfigStore
	Scout           SpaceFinder
	Threads         ThreadGenerator
	Pipeline        Processor
	Clips           ClipRenderer
	History         History
	Gatherer        prometheus.Gatherer
	DefaultUsername string
	Logger          logger.Logger
}

type Server struct {
	deps       Deps
	log        logger.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

func New(cfg config.ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(deps.Logger))

	if cfg.CORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		deps:   deps,
		log:    deps.Logger,
		engine: engine,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 30 * time.Second,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	{
		api.GET("/models", s.handleModels)
		api.GET("/config", s.handleGetConfig)
		api.POST("/config", s.handleUpdateConfig)
		api.POST("/scout", s.handleScout)
		api.POST("/generate-thread", s.handleGenerateThread)
		api.POST("/process", s.handleProcess)
		api.POST("/render-clip", s.handleRenderClip)
		api.POST("/upload-logo", s.handleUploadLogo)
		api.GET("/clips/:filename", s.handleServeClip)
		api.GET("/jobs", s.handleListJobs)
		api.GET("/jobs/:id", s.handleGetJob)
		api.GET("/jobs/:id/report.html", s.handleJobReport)
	}
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "Starting server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "Stopping server...")
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug(c.Request.Context(), "%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}
