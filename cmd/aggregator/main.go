// Command aggregator is the columnar-store-facing log aggregator binary
// (spec.md §2/§4.8-4.11). Grounded on cmd/main.go's flag handling and
// graceful-shutdown signal wiring in the teacher, mirroring
// cmd/forwarder/main.go's CLI surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rask-log-stack/internal/aggregator/app"
	"rask-log-stack/internal/aggregator/config"
)

// version is the aggregator's release version, set at build time via
// -ldflags "-X main.version=...".
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
			fmt.Println("aggregator " + version)
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
		logger.WithError(err).Error("failed to initialize aggregator")
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		logger.WithError(err).Error("aggregator exited with error")
		return 1
	}
	return 0
}

func runHealthcheck() int {
	port := os.Getenv("AGG_HTTP_PORT")
	if port == "" {
		port = "8686"
	}
	ctx := context.Background()
	if err := app.Healthcheck(ctx, "http://localhost:"+port); err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck failed:", err)
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Println(`aggregator - columnar-store-facing log aggregator

Usage:
  aggregator              run the aggregator (default)
  aggregator healthcheck   probe the local health endpoint and exit 0/1
  aggregator --version     print version
  aggregator --help        print this message

Configuration is read from environment variables; see spec.md §6 and DESIGN.md.`)
}
