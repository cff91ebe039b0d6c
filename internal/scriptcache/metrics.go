package scriptcache

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type scriptcacheMetricsCollection struct {
	registrationCount metric.Int64Counter
	loadCount         metric.Int64Counter
	loadDuration      metric.Float64Histogram
}

var metrics scriptcacheMetricsCollection

func init() {
	const name = "scriptcache/scriptcache"
	meter := otel.Meter(name)

	registrationCount, err := meter.Int64Counter(
		"scriptcache/registration_count",
		metric.WithDescription("Number of script registrations by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create registration count metric: %w", err))
	}

	loadCount, err := meter.Int64Counter(
		"scriptcache/load_count",
		metric.WithDescription("Number of settled script loads by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create load count metric: %w", err))
	}

	loadDuration, err := meter.Float64Histogram(
		"scriptcache/load_duration_seconds",
		metric.WithDescription("Time from inserting a script until it settles"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create load duration metric: %w", err))
	}

	metrics = scriptcacheMetricsCollection{
		registrationCount: registrationCount,
		loadCount:         loadCount,
		loadDuration:      loadDuration,
	}
}
