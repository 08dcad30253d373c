package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LoopCollector exposes simulation-loop Prometheus metrics.
type LoopCollector struct {
	TickLag  prometheus.Histogram
	SimTime  prometheus.Gauge
	Entities prometheus.Gauge
	Impacts  prometheus.Counter
	Days     prometheus.Counter
}

// NewLoopCollector registers loop metrics against the provided registerer.
func NewLoopCollector(reg prometheus.Registerer) (*LoopCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	lag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "telemetry_tick_overrun_seconds",
		Help:    "Wall-clock time by which a tick's work exceeded the update period.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
	lag, err := registerHistogram(reg, lag, "telemetry_tick_overrun_seconds")
	if err != nil {
		return nil, err
	}

	simTime, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "telemetry_sim_time_seconds",
		Help: "Current simulated time as Unix seconds.",
	}), "telemetry_sim_time_seconds")
	if err != nil {
		return nil, err
	}

	entities, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "telemetry_entities",
		Help: "Number of simulated entities.",
	}), "telemetry_entities")
	if err != nil {
		return nil, err
	}

	impacts, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_impacts_total",
		Help: "Cumulative number of generated impact events.",
	}), "telemetry_impacts_total")
	if err != nil {
		return nil, err
	}

	days, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_days_completed_total",
		Help: "Simulated days completed.",
	}), "telemetry_days_completed_total")
	if err != nil {
		return nil, err
	}

	return &LoopCollector{
		TickLag:  lag,
		SimTime:  simTime,
		Entities: entities,
		Impacts:  impacts,
		Days:     days,
	}, nil
}

// ObserveTick records the tick's work duration against the period. Only
// overruns are observed.
func (c *LoopCollector) ObserveTick(simTime time.Time, elapsed, period time.Duration) {
	if c == nil {
		return
	}
	if c.SimTime != nil {
		c.SimTime.Set(float64(simTime.Unix()))
	}
	if over := elapsed - period; over > 0 && c.TickLag != nil {
		c.TickLag.Observe(over.Seconds())
	}
}

// SetEntities updates the population gauge.
func (c *LoopCollector) SetEntities(count int) {
	if c == nil || c.Entities == nil {
		return
	}
	c.Entities.Set(float64(count))
}

// IncImpacts increments the impact counter.
func (c *LoopCollector) IncImpacts() {
	if c == nil || c.Impacts == nil {
		return
	}
	c.Impacts.Inc()
}

// IncDays increments the completed-days counter.
func (c *LoopCollector) IncDays() {
	if c == nil || c.Days == nil {
		return
	}
	c.Days.Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
