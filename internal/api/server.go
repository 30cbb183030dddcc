package api

import (
	"context"
	"net/http"
	"time"

	"ezvis/internal/api/handlers"
	"ezvis/internal/database"
	"ezvis/internal/database/repositories"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	server *http.Server
	logger *pterm.Logger
}

// Config holds server configuration
type Config struct {
	Addr       string
	Production bool

	// Pool, if set, adds connection pool stats to /health
	Pool *database.PoolMonitor
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config, statsHandler *handlers.StatsHandler, logger *pterm.Logger) *Server {
	// Set Gin mode
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		}
		if cfg.Pool != nil {
			body["pool"] = cfg.Pool.CurrentStats()
		}
		c.JSON(http.StatusOK, body)
	})

	router.GET("/", func(c *gin.Context) {
		endpoints := make([]string, 0, len(repositories.Kinds()))
		for _, kind := range repositories.Kinds() {
			endpoints = append(endpoints, "/api/"+string(kind))
		}
		c.JSON(http.StatusOK, gin.H{
			"message":   "ezvis API server",
			"health":    "/health",
			"imports":   "/api/imports",
			"endpoints": endpoints,
			"params":    []string{"start", "end"},
		})
	})

	// API routes
	api := router.Group("/api")
	{
		for _, kind := range repositories.Kinds() {
			api.GET("/"+string(kind), statsHandler.Query(kind))
		}
		api.GET("/imports", statsHandler.GetImportRuns)

		// Anything else under /api is an unknown catalog name
		api.GET("/:kind", statsHandler.QueryByName)
	}

	return &Server{
		router: router,
		server: &http.Server{
			Addr:           cfg.Addr,
			Handler:        router,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   60 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		logger: logger,
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server
func (s *Server) Run() error {
	s.logger.Info("Starting web server", s.logger.Args("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.WithCaller().Error("Web server failed", s.logger.Args("error", err))
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down web server...")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
