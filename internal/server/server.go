// Package server exposes the analysis pipeline over HTTP: an analyze
// endpoint accepting uploads or image URLs, CRUD access to stored results,
// a websocket feed of new analyses, and a health probe.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	catanalyzer "github.com/menta2k/cat-analyzer"
	"github.com/menta2k/cat-analyzer/internal/config"
	"github.com/menta2k/cat-analyzer/internal/store"
)

// Server wires the analyzer, the result store, and the live hub behind a
// gin router.
type Server struct {
	config    config.ServerConfig
	analyzer  *catanalyzer.Analyzer
	store     *store.Store
	hub       *Hub
	logger    *slog.Logger
	startedAt time.Time
}

// New creates a Server. A nil logger falls back to slog.Default. The
// configured upload directory is created when set.
func New(config config.ServerConfig, analyzer *catanalyzer.Analyzer, st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if config.UploadDir != "" {
		if err := os.MkdirAll(config.UploadDir, 0755); err != nil {
			logger.Warn("Failed to create upload directory", "dir", config.UploadDir, "error", err)
		}
	}
	return &Server{
		config:    config,
		analyzer:  analyzer,
		store:     st,
		hub:       NewHub(logger),
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Hub exposes the live event hub, mainly so callers can publish their own
// events or inspect the viewer count.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	_ = router.SetTrustedProxies(nil)
	router.Use(cors.New(s.corsConfig()))

	router.GET("/", s.handleRoot)
	router.GET("/healthz", s.handleHealth)
	if s.config.UploadDir != "" {
		router.Static("/uploads", s.config.UploadDir)
	}

	api := router.Group("/api")
	api.Use(BearerAuth(s.config.AuthToken))

	api.POST("/vision/analyze", s.handleAnalyze)
	api.GET("/analyses", s.handleListAnalyses)
	api.GET("/analyses/:id", s.handleGetAnalysis)
	api.DELETE("/analyses/:id", s.handleDeleteAnalysis)
	api.GET("/stats", s.handleStats)
	api.GET("/live", s.handleLive)

	return router
}

func (s *Server) corsConfig() cors.Config {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// Wildcard origins cannot be combined with credentials.
	if len(s.config.CORSOrigins) == 0 ||
		(len(s.config.CORSOrigins) == 1 && s.config.CORSOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = s.config.CORSOrigins
	}

	return corsConfig
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.config.Addr(),
		Handler: s.Router(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s.hub.Close()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
