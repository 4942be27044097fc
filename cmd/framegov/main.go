package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"codeberg.org/mutker/framegov/internal/config"
	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/logger"
	"codeberg.org/mutker/framegov/internal/pid"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Printf("Usage of framegov:\n%s", config.Usage())
			return
		}
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cfg.File != "" {
		logger.Debug().Str("file", cfg.File).Msg("Config loaded")
	} else {
		logger.Debug().Msg("Config loaded from defaults")
	}

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write PID file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go handleSignals(cancel)

	err = run(ctx, cfg, logger.Default())
	cancel()
	if rmErr := pid.Remove(); rmErr != nil {
		logger.Error().Err(rmErr).Msg("Failed to remove PID file")
	}
	if err != nil {
		logger.Error().Err(err).Msg("Error in main loop")
		os.Exit(1)
	}
	logger.Info().Msg("Exiting...")
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
