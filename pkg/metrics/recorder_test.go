package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureProvider struct {
	counts     map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
	lastTags   []string
	fail       bool
}

func newCaptureProvider() *captureProvider {
	return &captureProvider{
		counts:     map[string]float64{},
		gauges:     map[string]float64{},
		histograms: map[string][]float64{},
	}
}

func (c *captureProvider) Count(name string, value float64, tags []string) error {
	if c.fail {
		return errors.New("boom")
	}
	c.counts[name] += value
	c.lastTags = tags
	return nil
}

func (c *captureProvider) Gauge(name string, value float64, tags []string) error {
	if c.fail {
		return errors.New("boom")
	}
	c.gauges[name] = value
	c.lastTags = tags
	return nil
}

func (c *captureProvider) Histogram(name string, value float64, tags []string) error {
	if c.fail {
		return errors.New("boom")
	}
	c.histograms[name] = append(c.histograms[name], value)
	c.lastTags = tags
	return nil
}

func TestRecorder_Request(t *testing.T) {
	provider := newCaptureProvider()
	rec := NewRecorder(provider, zerolog.Nop())

	rec.Request("GET", "/api/v1/items", 200, 42*time.Millisecond)

	assert.Equal(t, 1.0, provider.counts["http.requests"])
	require.Len(t, provider.histograms["http.request_duration_ms"], 1)
	assert.Equal(t, 42.0, provider.histograms["http.request_duration_ms"][0])
	assert.Contains(t, provider.lastTags, "method:GET")
	assert.Contains(t, provider.lastTags, "status:200")
}

func TestRecorder_Operation(t *testing.T) {
	provider := newCaptureProvider()
	rec := NewRecorder(provider, zerolog.Nop())

	rec.Operation("insert", nil, 5*time.Millisecond)
	rec.Operation("insert", errors.New("dup"), 2*time.Millisecond)

	assert.Equal(t, 2.0, provider.counts["store.operations"])
	assert.Contains(t, provider.lastTags, "outcome:error")
}

func TestRecorder_DocumentCount(t *testing.T) {
	provider := newCaptureProvider()
	rec := NewRecorder(provider, zerolog.Nop())

	rec.DocumentCount("items", 1234)
	assert.Equal(t, 1234.0, provider.gauges["store.documents"])
	assert.Contains(t, provider.lastTags, "collection:items")
}

func TestRecorder_ProviderErrorsAreSwallowed(t *testing.T) {
	provider := newCaptureProvider()
	provider.fail = true
	rec := NewRecorder(provider, zerolog.Nop())

	rec.Request("GET", "/x", 500, time.Millisecond)
	rec.Operation("delete", nil, time.Millisecond)
	rec.DocumentCount("items", 1)
}
