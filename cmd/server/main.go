package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/securewatch/securewatch/internal/config"
	"github.com/securewatch/securewatch/internal/logger"
	"github.com/securewatch/securewatch/internal/server"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	srv, err := server.New(cfg.AuthStub, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", version).Str("addr", cfg.AuthStub.Addr).Msg("Starting SecureWatch auth server...")

	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return
	}
	log.Info().Msg("Server stopped")
}
