package main

import (
	"context"
	"flag"
	"log"
	"net"

	"go.uber.org/zap"

	"github.com/hairguard/hairguard/internal/app"
	"github.com/hairguard/hairguard/internal/config"
	"github.com/hairguard/hairguard/internal/logging"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	densityConfig := flag.String("config-density", "", "path to density model configuration file")
	textConfig := flag.String("config-text", "", "path to text model configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if *densityConfig != "" {
		cfg.ML.DensityConfig = *densityConfig
	}
	if *textConfig != "" {
		cfg.ML.TextConfig = *textConfig
	}

	logger, err := logging.New(cfg.Server.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Initialize storage, auth and models
	ctx := context.Background()
	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize backend", zap.Error(err))
	}
	defer backend.Close()

	// Start server; returns on SIGINT/SIGTERM
	srv := backend.Server()
	if err := srv.Start(ctx, net.JoinHostPort("", cfg.Server.Port)); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
