// Package app wires together every forwarder component (discovery, parser
// registry, enricher, bounded queue, memory controller, batch former,
// sender, spill store) into one running process, and hosts the ambient
// HTTP surfaces (health, metrics). Grounded on internal/app/handlers.go's
// health-check and metrics-middleware shape, and on internal/app's overall
// role as the binary's composition root in the teacher.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HealthHandler serves spec.md §4.11/§6: GET /v1/health -> 200 "Healthy".
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "Healthy")
}

// Healthcheck probes a local forwarder's health endpoint with a 2-second
// timeout, exactly as the `forwarder healthcheck` subcommand of spec.md §6
// requires: it is the forwarder binary invoking itself to probe the port.
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
