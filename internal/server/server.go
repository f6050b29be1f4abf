package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emilythestrangee/caption-rater/backend/internal/handlers"
	"github.com/emilythestrangee/caption-rater/backend/internal/middleware"
)

// HealthChecker reports dependency status for /health.
type HealthChecker interface {
	Health() map[string]string
}

type Options struct {
	Port           string
	AllowedOrigins []string
	JWTSecret      []byte
	Gatherer       prometheus.Gatherer
}

type Server struct {
	health  HealthChecker
	handler *handlers.Handler
	opts    Options
}

func New(health HealthChecker, handler *handlers.Handler, opts Options) *Server {
	return &Server{
		health:  health,
		handler: handler,
		opts:    opts,
	}
}

// HTTPServer wraps the router in an *http.Server
func (s *Server) HTTPServer() *http.Server {
	server := &http.Server{
		Addr:         "0.0.0.0:" + s.opts.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	slog.Info("Server configured", "addr", server.Addr)
	return server
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.Default()

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		stats := s.health.Health()
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, stats)
	})

	if s.opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/auth/google", s.handler.Auth.GoogleLogin)

		// Gallery (public reads)
		api.GET("/gallery", s.handler.Gallery.GetGallery)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(s.opts.JWTSecret))
		{
			protected.GET("/me", s.handler.Auth.GetMe)
			protected.POST("/auth/logout", s.handler.Auth.Logout)

			// Rating session
			protected.POST("/rate/session", s.handler.Rating.StartSession)
			protected.GET("/rate/session", s.handler.Rating.GetSession)
			protected.POST("/rate/vote", s.handler.Rating.Vote)
			protected.POST("/rate/undo", s.handler.Rating.Undo)
			protected.POST("/rate/keys", s.handler.Rating.Key)
			protected.DELETE("/rate/error", s.handler.Rating.DismissError)
		}
	}

	return r
}
