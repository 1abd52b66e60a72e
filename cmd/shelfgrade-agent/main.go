package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shelfgrade/shelfgrade/internal/agent"
	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/storage/badger"
)

func main() {
	configPath := flag.String("config", "", "path to shelfgrade.toml")
	flag.Parse()

	if *configPath == "" {
		*configPath = os.Getenv("SHELFGRADE_CONFIG")
	}

	config, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := common.NewLogger(config.Logging.Level)

	store, err := badger.NewStore(logger, config.Agent.QueuePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", config.Agent.QueuePath).Msg("Failed to open queue store")
	}
	defer store.Close()

	queue := badger.NewQueueStorage(store, logger)
	a := agent.New(queue, config, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Info().Msg("Shutdown signal received")
		cancel()
	}()

	logger.Info().
		Str("device_id", config.Agent.DeviceID).
		Str("server_url", config.Agent.ServerURL).
		Str("queue_path", config.Agent.QueuePath).
		Msg("Starting sync agent")

	if err := a.Run(ctx); err != nil && err != context.Canceled {
		logger.Error().Err(err).Msg("Agent stopped with error")
	}

	logger.Info().Msg("Agent stopped")
}
