// Package server is a small stand-in for the remote authentication service.
// It issues and checks the bearer tokens the client core stores, so the core
// can be exercised end to end.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/securewatch/securewatch/internal/auth"
	"github.com/securewatch/securewatch/internal/config"
	"github.com/securewatch/securewatch/internal/models"
	"github.com/securewatch/securewatch/internal/rbac"
)

// Server represents the HTTP server
type Server struct {
	router  *gin.Engine
	db      *gorm.DB
	config  config.AuthStubConfig
	logger  zerolog.Logger
	tokens  *auth.TokenIssuer
	version string
}

// New creates a new server instance
func New(cfg config.AuthStubConfig, zlog zerolog.Logger, version string) (*Server, error) {
	db, err := initDatabase(cfg, zlog)
	if err != nil {
		return nil, err
	}

	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret, err = auth.GenerateSecret()
		if err != nil {
			return nil, err
		}
		zlog.Warn().Msg("JWT_SECRET not set - using a random secret, tokens will not survive a restart")
	}

	server := &Server{
		db:      db,
		config:  cfg,
		logger:  zlog,
		tokens:  auth.NewTokenIssuer(secret, cfg.TokenTTL),
		version: version,
	}

	if err := server.ensureSuperAdmin(); err != nil {
		return nil, err
	}

	server.setupRouter()

	return server, nil
}

// initDatabase opens the SQLite user database
func initDatabase(cfg config.AuthStubConfig, zlog zerolog.Logger) (*gorm.DB, error) {
	const (
		maxOpenConns = 4
		maxIdleConns = 2
		busyTimeout  = 5000 // 5 seconds
	)

	db, err := gorm.Open(sqlite.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		"PRAGMA foreign_keys=1",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			zlog.Warn().Str("pragma", pragma).Err(err).Msg("Failed to apply pragma")
		}
	}

	return db, nil
}

// ensureSuperAdmin seeds the configured super admin when it does not exist yet
func (s *Server) ensureSuperAdmin() error {
	email := s.config.SuperAdminEmail
	if email == "" || s.config.SuperAdminPassword == "" {
		s.logger.Warn().Msg("Super admin password not configured - skipping super admin seed")
		return nil
	}

	var existing models.User
	err := s.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		s.logger.Debug().Str("email", email).Msg("Super admin account already exists")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up super admin: %w", err)
	}

	passwordHash, err := auth.HashPassword(s.config.SuperAdminPassword)
	if err != nil {
		return err
	}

	user := &models.User{
		Email:           email,
		PasswordHash:    passwordHash,
		FirstName:       "Super",
		LastName:        "Admin",
		Role:            rbac.RoleSuperAdmin,
		IsActive:        true,
		IsEmailVerified: true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create super admin: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", email).Msg("Super admin account created")
	return nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(cors.New(cors.Config{
			AllowOrigins:     s.config.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Health check endpoint (no auth required)
	s.router.GET("/health", s.healthCheck)

	// Public auth endpoints (no auth required)
	s.router.POST("/api/auth/login", s.login)
	s.router.POST("/api/auth/register", s.register)

	// Authenticated API routes (JWT required)
	api := s.router.Group("/api")
	api.Use(JWTAuthMiddleware(s.db, s.tokens, s.logger))
	{
		api.GET("/auth/me", s.getCurrentUser)

		admin := api.Group("/admin")
		admin.Use(RequireRole(rbac.AnyOf(rbac.RoleSuperAdmin), s.logger))
		{
			admin.POST("/create-admin", s.createAccount(rbac.RoleAdmin))
			admin.POST("/create-police", s.createAccount(rbac.RolePolice))
		}
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "securewatch-authstub",
		"version":   s.version,
	})
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on the configured address until ctx is cancelled, then shuts
// down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			s.logger.Error().Err(err).Msg("HTTP server error")
			s.Close()
			return err
		}
	case <-ctx.Done():
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")
	s.Close()
	return nil
}

// Close closes the database connection to flush WAL writes
func (s *Server) Close() {
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Error closing database")
	}
}
