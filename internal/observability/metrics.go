package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Batch outcome label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// EmitterCollector bundles Prometheus metrics for batch emission and provides
// an HTTP handler to expose them.
type EmitterCollector struct {
	gatherer prometheus.Gatherer

	Batches        *prometheus.CounterVec
	Records        *prometheus.CounterVec
	UploadDuration *prometheus.HistogramVec
	JobPolls       *prometheus.CounterVec
}

// NewEmitterCollector registers emission metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewEmitterCollector(reg prometheus.Registerer) (*EmitterCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	batches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_batches_total",
		Help: "Total number of emitted batches, labeled by dataset, sink, and result.",
	}, []string{"dataset", "sink", "result"})
	batches, err := registerCounterVec(reg, batches, "telemetry_batches_total")
	if err != nil {
		return nil, err
	}

	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_records_total",
		Help: "Total number of records delivered, labeled by dataset and sink.",
	}, []string{"dataset", "sink"})
	records, err = registerCounterVec(reg, records, "telemetry_records_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "telemetry_upload_duration_seconds",
		Help:    "Time to hand one batch to a sink, including job polling.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"dataset", "sink"})
	durations, err = registerHistogramVec(reg, durations, "telemetry_upload_duration_seconds")
	if err != nil {
		return nil, err
	}

	polls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_job_polls_total",
		Help: "Ingestion job status polls issued after an upload.",
	}, []string{"dataset"})
	polls, err = registerCounterVec(reg, polls, "telemetry_job_polls_total")
	if err != nil {
		return nil, err
	}

	return &EmitterCollector{
		gatherer:       gatherer,
		Batches:        batches,
		Records:        records,
		UploadDuration: durations,
		JobPolls:       polls,
	}, nil
}

// ObserveBatch records one batch hand-off.
func (c *EmitterCollector) ObserveBatch(dataset, sink string, records int, d time.Duration, err error) {
	if c == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	if c.Batches != nil {
		c.Batches.WithLabelValues(dataset, sink, result).Inc()
	}
	if err == nil && c.Records != nil {
		c.Records.WithLabelValues(dataset, sink).Add(float64(records))
	}
	if c.UploadDuration != nil {
		c.UploadDuration.WithLabelValues(dataset, sink).Observe(d.Seconds())
	}
}

// IncJobPolls counts one job status poll.
func (c *EmitterCollector) IncJobPolls(dataset string) {
	if c == nil || c.JobPolls == nil {
		return
	}
	c.JobPolls.WithLabelValues(dataset).Inc()
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *EmitterCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EmitterCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
