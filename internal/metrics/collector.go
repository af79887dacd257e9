// file: internal/metrics/collector.go

package metrics

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// MetricsCollector periodically refreshes gauges that are sampled rather
// than updated inline: system stats and any registered probes.
type MetricsCollector struct {
	metrics        *Metrics
	updateInterval time.Duration
	scheduler      gocron.Scheduler

	mu     sync.Mutex
	probes []func(*Metrics)
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(metrics *Metrics, updateInterval time.Duration) *MetricsCollector {
	return &MetricsCollector{
		metrics:        metrics,
		updateInterval: updateInterval,
	}
}

// AddProbe registers a function run on every collection tick
func (mc *MetricsCollector) AddProbe(probe func(*Metrics)) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.probes = append(mc.probes, probe)
}

// Start schedules periodic collection, running the first pass immediately
func (mc *MetricsCollector) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create metrics scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(mc.updateInterval),
		gocron.NewTask(mc.collect),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("failed to schedule metrics collection: %w", err)
	}

	mc.mu.Lock()
	mc.scheduler = scheduler
	mc.mu.Unlock()

	scheduler.Start()
	return nil
}

// Stop gracefully shuts down the metrics collector. Safe to call when the
// collector was never started.
func (mc *MetricsCollector) Stop() error {
	mc.mu.Lock()
	scheduler := mc.scheduler
	mc.scheduler = nil
	mc.mu.Unlock()

	if scheduler == nil {
		return nil
	}
	return scheduler.Shutdown()
}

func (mc *MetricsCollector) collect() {
	mc.metrics.UpdateSystemMetrics()

	mc.mu.Lock()
	probes := slices.Clone(mc.probes)
	mc.mu.Unlock()

	for _, probe := range probes {
		probe(mc.metrics)
	}
}
