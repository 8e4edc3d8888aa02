package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tangle-network/blockchain-rpc-blueprint/internal/config"
	"github.com/tangle-network/blockchain-rpc-blueprint/internal/gateway"
	"github.com/tangle-network/blockchain-rpc-blueprint/internal/jobs"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to configuration file")
	jobsSource := flag.String("jobs-source", "", "Optional file or named pipe path delivering newline-delimited job invocations")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Secure RPC Gateway %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *validateOnly {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	logger, logCloser, err := gateway.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	closeLogs := func() {
		logger.Sync()
		if logCloser != nil {
			logCloser.Close()
		}
	}
	defer closeLogs()

	logger.Info("starting secure rpc gateway",
		zap.String("version", version),
		zap.String("config", *configPath))

	ctx, err := gateway.NewContext(cfg, logger)
	if err != nil {
		logger.Error("failed to create service context", zap.Error(err))
		closeLogs()
		os.Exit(1)
	}

	// The job router is driven by the external on-chain event runtime; the
	// optional jobs-source flag attaches a line-delimited local feed.
	router := jobs.NewRouter(ctx)
	if *jobsSource != "" {
		go consumeJobs(router, logger, *jobsSource)
	}

	server := gateway.NewServer(ctx)
	if err := server.Run(); err != nil {
		logger.Error("server error", zap.Error(err))
		closeLogs()
		os.Exit(1)
	}

	logger.Info("secure rpc gateway finished")
}

func consumeJobs(router *jobs.Router, logger *zap.Logger, source string) {
	src, err := os.Open(source)
	if err != nil {
		logger.Error("failed to open jobs source", zap.Error(err))
		return
	}
	defer src.Close()

	logger.Info("consuming job invocations", zap.String("source", source))
	if err := router.ConsumeLines(context.Background(), src); err != nil {
		logger.Error("jobs source closed with error", zap.Error(err))
	}
}
