package observability

import (
	"testing"

	"github.com/raywall/docstore-toolkit/pkg/config"
)

func TestSetupMetrics(t *testing.T) {
	t.Run("Disabled returns Noop", func(t *testing.T) {
		provider, err := SetupMetrics(config.MetricsConfig{Enabled: false})
		if err != nil {
			t.Fatalf("setup error: %v", err)
		}

		if _, ok := provider.(*NoopProvider); !ok {
			t.Errorf("expected NoopProvider, got %T", provider)
		}
	})

	t.Run("Enabled returns Datadog", func(t *testing.T) {
		cfg := config.MetricsConfig{
			Enabled:   true,
			StatsdAddr: "localhost:8125",
			Namespace: "docstore",
		}

		provider, err := SetupMetrics(cfg)
		if err != nil {
			// statsd.New resolves UDP lazily, localhost passes client creation
			t.Fatalf("setup error: %v", err)
		}

		if _, ok := provider.(*DatadogProvider); !ok {
			t.Errorf("expected DatadogProvider, got %T", provider)
		}
	})
}
