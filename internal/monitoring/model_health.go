package monitoring

import (
	"context"
	"log/slog"
	"time"
)

const HEALTHCHECK_TIMER = 30 * time.Second

// ModelHandle is the part of the engine the monitor needs.
type ModelHandle interface {
	EnsureModelsReady(ctx context.Context)
	ModelsReady() bool
}

// MonitorModelHealth retries initialization while the neural backend is
// unavailable and publishes readiness to the model_ready gauge.
func MonitorModelHealth(ctx context.Context, handle ModelHandle, interval time.Duration, metrics *Metrics) {
	if interval <= 0 {
		interval = HEALTHCHECK_TIMER
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check := func() {
		if !handle.ModelsReady() {
			handle.EnsureModelsReady(ctx)
		}
		isHealthy := handle.ModelsReady()
		metrics.SetModelReady(isHealthy)
		if !isHealthy {
			slog.Warn("[HealthCheck] Neural backend is unavailable, serving lexical results")
		}
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
