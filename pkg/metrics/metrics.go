// Package metrics exposes the gateway's OpenTelemetry metrics over a
// Prometheus scrape endpoint.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/metric/instrument"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/aggregation"
)

// memStatsInterval throttles ReadMemStats, which stops the world.
const memStatsInterval = time.Second * 15

// BaseAttrs is attached to every exported metric.
var BaseAttrs []attribute.KeyValue

// SetupInstrumentation installs the global meter provider and serves
// /metrics on addr.
func SetupInstrumentation(addr string, serviceName string) error {
	BaseAttrs = []attribute.KeyValue{attribute.String("service_name", serviceName)}

	exporter, err := otelprom.New(otelprom.WithAggregationSelector(aggregatorSelector))
	if err != nil {
		return fmt.Errorf("creating prometheus exporter: %s", err)
	}
	global.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()

	return collectRuntimeMetrics()
}

// collectRuntimeMetrics registers the gateway's process-level gauges: uptime
// plus the goroutine and heap figures worth watching on a daemon whose load
// is dominated by long-lived websocket subscribers and filter workers.
func collectRuntimeMetrics() error {
	meter := global.MeterProvider().Meter("polyswarmd")

	uptime, err := meter.Int64ObservableGauge(
		"polyswarmd.uptime",
		instrument.WithUnit("ms"),
		instrument.WithDescription("Milliseconds since the gateway started"),
	)
	if err != nil {
		return fmt.Errorf("creating uptime gauge: %s", err)
	}
	goroutines, err := meter.Int64ObservableGauge(
		"polyswarmd.go.goroutines",
		instrument.WithDescription("Live goroutines, including subscriber pumps and filter workers"),
	)
	if err != nil {
		return fmt.Errorf("creating goroutines gauge: %s", err)
	}
	heapInuse, err := meter.Int64ObservableGauge(
		"polyswarmd.go.mem.heap_inuse",
		instrument.WithUnit("By"),
		instrument.WithDescription("Bytes in in-use heap spans"),
	)
	if err != nil {
		return fmt.Errorf("creating heap gauge: %s", err)
	}
	gcCount, err := meter.Int64ObservableGauge(
		"polyswarmd.go.gc.count",
		instrument.WithDescription("Completed garbage collection cycles"),
	)
	if err != nil {
		return fmt.Errorf("creating gc gauge: %s", err)
	}

	startTime := time.Now()
	var lastSample time.Time
	var memStats runtime.MemStats
	_, err = meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			if now := time.Now(); now.Sub(lastSample) >= memStatsInterval {
				runtime.ReadMemStats(&memStats)
				lastSample = now
			}
			o.ObserveInt64(uptime, time.Since(startTime).Milliseconds(), BaseAttrs...)
			o.ObserveInt64(goroutines, int64(runtime.NumGoroutine()), BaseAttrs...)
			o.ObserveInt64(heapInuse, int64(memStats.HeapInuse), BaseAttrs...)
			o.ObserveInt64(gcCount, int64(memStats.NumGC), BaseAttrs...)
			return nil
		},
		uptime, goroutines, heapInuse, gcCount,
	)
	if err != nil {
		return fmt.Errorf("registering runtime callback: %s", err)
	}
	return nil
}

func aggregatorSelector(ik sdkmetric.InstrumentKind) aggregation.Aggregation {
	switch ik {
	case sdkmetric.InstrumentKindCounter, sdkmetric.InstrumentKindUpDownCounter,
		sdkmetric.InstrumentKindObservableCounter, sdkmetric.InstrumentKindObservableUpDownCounter:
		return aggregation.Sum{}
	case sdkmetric.InstrumentKindObservableGauge:
		return aggregation.LastValue{}
	case sdkmetric.InstrumentKindHistogram:
		return aggregation.ExplicitBucketHistogram{
			Boundaries: []float64{0.5, 1, 2, 4, 10, 50, 100, 500, 1000, 5000},
			NoMinMax:   false,
		}
	}
	panic("unknown instrument kind")
}
