// Package app wires together the aggregator's intake handlers, background
// batch writer, columnar sink, and fallback cleaner into one running
// process, and hosts the ambient HTTP surfaces (health, metrics). Grounded
// on internal/app/handlers.go's health-check shape and internal/app's role
// as composition root in the teacher, mirroring internal/forwarder/app.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HealthHandler serves GET /v1/health -> 200 "Healthy" (spec.md §4.11).
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "Healthy")
}

// Healthcheck probes a local aggregator's health endpoint with a 2-second
// timeout, for the `aggregator healthcheck` subcommand.
func Healthcheck(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("build healthcheck request: %w", err)
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}
