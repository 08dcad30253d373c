package core

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/venue-telemetry-sim/model"
)

// Severity is one class of impact and its relative odds.
type Severity struct {
	Level     int64
	Intensity string
	Weight    float64
}

// DefaultSeverities: level 1 60%, level 2 30%, level 3 10%.
func DefaultSeverities() []Severity {
	return []Severity{
		{Level: 1, Intensity: "5.6 G / 2.5 G", Weight: 60},
		{Level: 2, Intensity: "6.4 G / 4.1 G", Weight: 30},
		{Level: 3, Intensity: "7.7 G / 6.3 G", Weight: 10},
	}
}

// ParseSeverities reads "weight:intensity" entries separated by commas; the
// level is the 1-based position in the list. Example:
//
//	60:5.6 G / 2.5 G,30:6.4 G / 4.1 G,10:7.7 G / 6.3 G
func ParseSeverities(s string) ([]Severity, error) {
	var out []Severity
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		weight, intensity, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("severity %q: want weight:intensity", part)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
		if err != nil {
			return nil, fmt.Errorf("severity %q: %w", part, err)
		}
		out = append(out, Severity{Level: int64(len(out) + 1), Intensity: strings.TrimSpace(intensity), Weight: w})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no severities in %q", s)
	}
	return out, nil
}

// ImpactConfig parameterizes the impact process.
type ImpactConfig struct {
	MinInterval time.Duration
	MaxInterval time.Duration
	Severities  []Severity
}

// DefaultImpactConfig schedules impacts 30 s to 30 min apart.
func DefaultImpactConfig() ImpactConfig {
	return ImpactConfig{
		MinInterval: 30 * time.Second,
		MaxInterval: 30 * time.Minute,
		Severities:  DefaultSeverities(),
	}
}

// ImpactGenerator fires impacts at random intervals against random members
// of the mapped population and buffers them until the day is flushed.
type ImpactGenerator struct {
	cfg        ImpactConfig
	rng        *rand.Rand
	severities Discrete

	next    time.Time
	counter int64
	buffer  []model.Impact
}

// NewImpactGenerator validates cfg and returns a generator with an empty
// buffer. Call Reset before the first Check.
func NewImpactGenerator(cfg ImpactConfig, rng *rand.Rand) (*ImpactGenerator, error) {
	if cfg.MinInterval <= 0 || cfg.MaxInterval < cfg.MinInterval {
		return nil, fmt.Errorf("invalid impact interval [%s, %s]", cfg.MinInterval, cfg.MaxInterval)
	}
	weights := make([]float64, len(cfg.Severities))
	for i, s := range cfg.Severities {
		weights[i] = s.Weight
	}
	severities, err := NewDiscrete(weights)
	if err != nil {
		return nil, fmt.Errorf("impact severities: %w", err)
	}
	return &ImpactGenerator{cfg: cfg, rng: rng, severities: severities}, nil
}

// Reset schedules the next impact relative to now.
func (g *ImpactGenerator) Reset(now time.Time) {
	secs := UniformInt(g.rng, int64(g.cfg.MinInterval/time.Second), int64(g.cfg.MaxInterval/time.Second))
	g.next = now.Add(time.Duration(secs) * time.Second)
}

// Next returns the scheduled time of the next impact.
func (g *ImpactGenerator) Next() time.Time { return g.next }

// Check fires an impact when now has reached the scheduled time. The
// impact copies the position of a uniformly chosen mapped entity and is
// stamped with now. An empty population only reschedules.
func (g *ImpactGenerator) Check(now time.Time, mapped []model.Entity) (model.Impact, bool) {
	if now.Before(g.next) {
		return model.Impact{}, false
	}
	defer g.Reset(now)

	if len(mapped) == 0 {
		return model.Impact{}, false
	}

	target := mapped[g.rng.Intn(len(mapped))]
	sev := g.cfg.Severities[g.severities.Draw(g.rng)]

	g.counter++
	imp := model.Impact{
		ID:          g.counter,
		TimestampMs: now.UnixMilli(),
		Level:       sev.Level,
		Intensity:   sev.Intensity,
		Position:    *target.Position(),
	}
	g.buffer = append(g.buffer, imp)
	return imp, true
}

// Pending returns the number of buffered impacts.
func (g *ImpactGenerator) Pending() int { return len(g.buffer) }

// Flush returns the buffered impacts as entity records and clears the buffer.
func (g *ImpactGenerator) Flush() []model.Entity {
	if len(g.buffer) == 0 {
		return nil
	}
	out := make([]model.Entity, len(g.buffer))
	for i, imp := range g.buffer {
		out[i] = imp.Entity()
	}
	g.buffer = g.buffer[:0]
	return out
}
