package observability

import (
	"fmt"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/raywall/docstore-toolkit/pkg/config"
	"github.com/raywall/docstore-toolkit/pkg/metrics"
)

// NoopProvider is used when metrics are disabled.
type NoopProvider struct{}

func (n *NoopProvider) Count(name string, value float64, tags []string) error     { return nil }
func (n *NoopProvider) Gauge(name string, value float64, tags []string) error     { return nil }
func (n *NoopProvider) Histogram(name string, value float64, tags []string) error { return nil }

// DatadogProvider adapts the official Datadog statsd client to the
// metrics.Provider interface.
type DatadogProvider struct {
	client *statsd.Client
}

func (d *DatadogProvider) Count(name string, value float64, tags []string) error {
	return d.client.Count(name, int64(value), tags, 1)
}

func (d *DatadogProvider) Gauge(name string, value float64, tags []string) error {
	return d.client.Gauge(name, value, tags, 1)
}

func (d *DatadogProvider) Histogram(name string, value float64, tags []string) error {
	return d.client.Histogram(name, value, tags, 1)
}

// SetupMetrics picks the provider based on configuration.
func SetupMetrics(cfg config.MetricsConfig) (metrics.Provider, error) {
	if !cfg.Enabled {
		return &NoopProvider{}, nil
	}

	opts := []statsd.Option{
		statsd.WithNamespace(cfg.Namespace),
	}

	client, err := statsd.New(cfg.StatsdAddr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to datadog statsd: %w", err)
	}

	return &DatadogProvider{client: client}, nil
}
