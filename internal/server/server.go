// Package server contains HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sit/internal/cache"
	"sit/internal/config"
	"sit/internal/database"
	"sit/internal/middleware"
	"sit/internal/models"
	"sit/internal/repository"
	"sit/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	userRepo       repository.UserRepository
	sitRepo        repository.SitRepository
	userService    *service.UserService
	sitService     *service.SitService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	sitRepo := repository.NewSitRepository(db)

	prom := middleware.InitMetrics("sit-api")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		userRepo:       userRepo,
		sitRepo:        sitRepo,
	}
	server.userService = service.NewUserService(userRepo, sitRepo)
	server.sitService = service.NewSitService(sitRepo, userRepo)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())

	app.Use(requestid.New())

	// Context middleware to propagate request id into request contexts
	app.Use(middleware.ContextMiddleware())

	if s.config == nil || s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())

	// Structured logging after requestid and context middleware so every
	// access log line carries the request id.
	app.Use(middleware.StructuredLogger())

	origins := ""
	if s.config != nil {
		origins = s.config.AllowedOrigins
	}
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       86400,
	}))
}

// SetupRoutes configures all routes for the application.
// Literal segments (like, bookmark, theme) are registered before the
// parameterized routes that would otherwise swallow them.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// User routes
	app.Post("/add_user", s.AddUser)
	app.Get("/users", s.GetUsers)
	app.Get("/check-username/:username", s.CheckUsername)
	app.Get("/find/:username", s.FindUserByUsername)
	app.Get("/findById/:userId", s.FindUserByID)
	app.Delete("/delete/:userId", s.DeleteUser)

	// Bookmark and stats-like routes before the generic PATCH /users/:userId/:sitId
	app.Post("/users/bookmark/:userId", s.ToggleBookmark)
	app.Get("/users/bookmark/:userId", s.GetBookmarks)
	app.Patch("/users/bookmark/:userId/clearAll", s.ClearBookmarks)
	app.Patch("/users/like/:userId/:sitId", s.ToggleStatsLike)
	app.Patch("/users/:userId/theme", s.UpdatePreferences)
	app.Patch("/users/:userId/username", s.RenameUsername)
	app.Patch("/users/:userId/:sitId", s.ToggleStatsSit)
	app.Patch("/users/:userId", s.UpdateUser)

	// Sit routes
	app.Post("/add_sit", s.AddSit)
	app.Get("/sits", s.GetSits)
	app.Get("/sits/people/:createdBy", s.GetFeed)
	app.Get("/sits/liked/:createdBy", s.GetLikedSits)
	app.Get("/sits/media/:createdBy", s.GetMediaSits)
	app.Get("/sits/:sitId", s.GetSit)
	app.Delete("/sits/delete/:sitId", s.DeleteSit)
	app.Patch("/sits/like/:sitId/:userId", s.ToggleLike)
	app.Patch("/sits/:sitId/:userId", s.ToggleResit)
	app.Patch("/sits/:sitId", s.UpdateSit)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "unhealthy"
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil && sqlDB.PingContext(ctx) == nil {
			dbStatus = "healthy"
		}
	}

	// Redis is a cache here, not a hard dependency; its state is reported
	// but never fails readiness.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName: "Sit API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
				slog.String("error", err.Error()))
			return models.RespondWithError(c, models.StatusForError(err), err)
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
			}
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
