package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"candle-replay/src/config"
	"candle-replay/src/logger"
	"candle-replay/src/server"
)

// -----------------------------------------------------------------------------

func main() {
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "candle-replay: %v\n", err)
		os.Exit(1)
	}
}

// -----------------------------------------------------------------------------

func run(configPath string) error {
	conf, err := config.NewConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	appLogger := logger.NewLogger(conf.MConfig, conf.Name)

	ledger, err := setupLedger(conf.MConfig, appLogger)
	if err != nil {
		return err
	}
	if ledger != nil {
		defer func() {
			if err := ledger.Close(); err != nil {
				appLogger.Warning("Closing ledger stores: %v", err)
			}
		}()
	}

	networkManager := setupNetwork(conf.MConfig)
	provider := setupProvider(conf.MConfig, networkManager, appLogger)
	candles := setupCandleStore(conf.MConfig)

	srv := server.NewReplayServer(conf.MConfig, logger.NewLogger(conf.MConfig, "ReplayServer"), candles, ledger, provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := startServers(ctx, srv, conf.MConfig, appLogger); err != nil {
		return err
	}

	appLogger.Info("Shutdown complete.")
	return nil
}
