package metrics

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Recorder emits the standard request and storage metrics of the
// service. Failures to ship a metric are logged and never propagate.
type Recorder struct {
	provider Provider
	log      zerolog.Logger
}

func NewRecorder(provider Provider, log zerolog.Logger) *Recorder {
	return &Recorder{
		provider: provider,
		log:      log.With().Str("component", "metrics").Logger(),
	}
}

// Request records one handled HTTP request.
func (r *Recorder) Request(method, route string, status int, elapsed time.Duration) {
	tags := []string{
		"method:" + method,
		"route:" + route,
		fmt.Sprintf("status:%d", status),
	}
	r.emit(TypeCount, "http.requests", 1, tags)
	r.emit(TypeHistogram, "http.request_duration_ms", float64(elapsed.Milliseconds()), tags)
}

// Operation records one storage operation outcome.
func (r *Recorder) Operation(name string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	tags := []string{"operation:" + name, "outcome:" + outcome}
	r.emit(TypeCount, "store.operations", 1, tags)
	r.emit(TypeHistogram, "store.operation_duration_ms", float64(elapsed.Milliseconds()), tags)
}

// DocumentCount reports the current collection size.
func (r *Recorder) DocumentCount(collection string, count int64) {
	r.emit(TypeGauge, "store.documents", float64(count), []string{"collection:" + collection})
}

func (r *Recorder) emit(kind MetricType, name string, value float64, tags []string) {
	var err error
	switch kind {
	case TypeCount:
		err = r.provider.Count(name, value, tags)
	case TypeGauge:
		err = r.provider.Gauge(name, value, tags)
	case TypeHistogram:
		err = r.provider.Histogram(name, value, tags)
	}
	if err != nil {
		r.log.Warn().Err(err).Str("metric", name).Msg("failed to ship metric")
	}
}
