// Command forwarder is the per-host log forwarder binary (spec.md §6).
// Grounded on cmd/main.go's flag handling and graceful-shutdown signal
// wiring in the teacher, trimmed to the forwarder's smaller CLI surface:
// the default run mode, `healthcheck`, `--version`, and `--help`.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rask-log-stack/internal/forwarder/app"
	"rask-log-stack/internal/forwarder/config"
)

// version is the forwarder's release version, set at build time via
// -ldflags "-X main.version=...". Left as a constant default here since
// this repository has no release pipeline of its own.
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "healthcheck":
			return runHealthcheck()
		case "--version", "-V":
			fmt.Println("forwarder " + version)
			return 0
		case "--help", "-h":
			printUsage()
			return 0
		}
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return 1
	}

	logger := app.NewLogger(cfg)
	a, err := app.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize forwarder")
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		logger.WithError(err).Error("forwarder exited with error")
		return 1
	}
	return 0
}

func runHealthcheck() int {
	port := os.Getenv("METRICS_PORT")
	if port == "" {
		port = "9090"
	}
	ctx := context.Background()
	if err := app.Healthcheck(ctx, "http://localhost:"+port); err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck failed:", err)
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Println(`forwarder - per-host container log forwarder

Usage:
  forwarder              run the forwarder (default)
  forwarder healthcheck   probe the local health endpoint and exit 0/1
  forwarder --version     print version
  forwarder --help        print this message

Configuration is read from environment variables; see spec.md §6.`)
}
