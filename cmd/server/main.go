package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gridrealm/server/config"
	"gridrealm/server/gameserver"
	"gridrealm/server/logger"
	"gridrealm/server/persistence"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, cfgErr := config.LoadConfig(configPath)

	// Optional positional argument overrides the port
	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			fmt.Fprintf(os.Stderr, "Error: invalid port %q\n", os.Args[1])
			os.Exit(1)
		}
		cfg.Server.Port = port
	}

	if err := logger.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if cfgErr != nil {
		logger.Warning("Configuration problem, continuing with defaults where needed", "path", configPath, "error", cfgErr)
	}

	journal, err := persistence.Open(cfg.Journal)
	if err != nil {
		logger.Error("Failed to open journal, continuing without it", "driver", cfg.Journal.Driver, "error", err)
		journal = persistence.NopJournal{}
	}

	srv, err := gameserver.New(cfg, journal)
	if err != nil {
		logger.Error("Invalid server configuration", "error", err)
		journal.Close()
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("Failed to start server", "address", cfg.Address(), "error", err)
		srv.Shutdown(context.Background())
		logger.Close()
		os.Exit(1)
	}
	logger.Info("Game server running", "address", srv.Addr())
	logger.Info("Press Ctrl+C to shutdown")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown finished with errors", "error", err)
	}
}
