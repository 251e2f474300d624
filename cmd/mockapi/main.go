package main

import (
	"fmt"
	"os"

	"github.com/argscan/argscan/internal/config"
	"github.com/argscan/argscan/internal/logger"
	"github.com/argscan/argscan/internal/mockapi"
)

func main() {
	// Load configuration
	cfg, err := config.LoadMockAPI()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	srv, err := mockapi.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create mock API server")
	}

	log.Info().
		Str("addr", cfg.Addr).
		Str("expiry_signal", cfg.ExpirySignal).
		Bool("expose_codes", cfg.ExposeCodes).
		Msg("Starting mock API server...")

	// Start HTTP server (this blocks)
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
