package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/slotwatch/adapter/cli"
	"github.com/felixgeelhaar/slotwatch/internal/app"
	"github.com/felixgeelhaar/slotwatch/pkg/config"
	"github.com/felixgeelhaar/slotwatch/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv(cli.Version)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cli.SetLogger(logger)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		// Commands that do not need the container still run.
		logger.Warn("failed to initialize container", "error", err)
		cli.SetApp(&cli.App{InitErr: err})
	} else {
		cli.SetApp(cli.NewApp(container))
	}

	code := 0
	func() {
		if container != nil {
			defer container.Close()
		}
		if err := cli.Run(ctx); err != nil {
			code = 1
		}
	}()
	os.Exit(code)
}
