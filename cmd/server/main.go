// Package main is the entry point for the code sandbox server.
//
// main stays minimal: load configuration, build the registry and backends,
// hand everything to the broker, start the HTTP server. All logic lives in
// the internal packages.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/code-sandbox/internal/broker"
	"github.com/sakif/code-sandbox/internal/config"
	"github.com/sakif/code-sandbox/internal/executor"
	"github.com/sakif/code-sandbox/internal/executor/docker"
	"github.com/sakif/code-sandbox/internal/executor/process"
	"github.com/sakif/code-sandbox/internal/language"
	"github.com/sakif/code-sandbox/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(os.Getenv("SANDBOX_CONFIG"))
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	registry, err := language.NewRegistry(cfg.Languages)
	if err != nil {
		logger.Error("failed to build language registry", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Candidates in preference order: containers when enabled and
	// reachable, subprocess isolation otherwise. The broker probes once
	// and sticks with its choice.
	var candidates []executor.Backend
	if cfg.Sandbox.EnableDocker {
		dockerExec, err := docker.New(logger, cfg.Sandbox.OutputLimitBytes, registryImages(registry))
		if err != nil {
			logger.Warn("docker backend could not be created", slog.String("error", err.Error()))
		} else {
			defer dockerExec.Close()
			candidates = append(candidates, dockerExec)
		}
	}
	candidates = append(candidates, process.New(logger, cfg.Sandbox.OutputLimitBytes))

	probeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	b := broker.New(probeCtx, registry, candidates, broker.Limits{
		CodeBytes:  cfg.Sandbox.CodeLimitBytes,
		StdinBytes: cfg.Sandbox.StdinLimitBytes,
	}, logger)
	cancel()

	srv := server.New(server.Config{
		Port:         cfg.Server.Port,
		MaxExecution: registry.MaxTimeout(),
	}, b, logger)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// registryImages collects the container image of every registered language
// for the warmer.
func registryImages(registry *language.Registry) []string {
	var images []string
	for _, summary := range registry.Summaries() {
		images = append(images, summary.Image)
	}
	return images
}
