package core

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/signalsfoundry/venue-telemetry-sim/model"
)

// MotionModel updates an entity's percent-space state for a given
// simulation time.
type MotionModel interface {
	UpdatePosition(simTime time.Time, e *model.Entity)
}

// Direction is one of the five per-tick movement outcomes.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
	DirectionLeft
	DirectionRight
)

func (d Direction) String() string {
	switch d {
	case DirectionNone:
		return "none"
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// EdgePolicy decides what happens when a step would leave the venue.
type EdgePolicy int

const (
	// EdgeClamp saturates the position at the boundary.
	EdgeClamp EdgePolicy = iota
	// EdgeBounce reflects the overshoot back from the boundary.
	EdgeBounce
)

func (p EdgePolicy) String() string {
	if p == EdgeBounce {
		return "bounce"
	}
	return "clamp"
}

// ParseEdgePolicy accepts "clamp" or "bounce".
func ParseEdgePolicy(s string) (EdgePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clamp", "":
		return EdgeClamp, nil
	case "bounce":
		return EdgeBounce, nil
	default:
		return 0, fmt.Errorf("unknown edge policy %q", s)
	}
}

// DirectionWeights are the relative odds of each movement outcome.
type DirectionWeights struct {
	None, Up, Down, Left, Right float64
}

// DefaultDirectionWeights is the 23/23/23/23/8 split of the warehouse
// generator.
func DefaultDirectionWeights() DirectionWeights {
	return DirectionWeights{None: 8, Up: 23, Down: 23, Left: 23, Right: 23}
}

func (w DirectionWeights) slice() []float64 {
	// Index order matches the Direction constants.
	return []float64{w.None, w.Up, w.Down, w.Left, w.Right}
}

// Headings maps each moving direction to the integer heading attribute.
type Headings struct {
	Up, Down, Left, Right int64
}

// DefaultHeadings: up=0, left=90, down=180, right=270.
func DefaultHeadings() Headings {
	return Headings{Up: 0, Down: 180, Left: 90, Right: 270}
}

// For returns the heading code for d. DirectionNone has no heading of its own.
func (h Headings) For(d Direction) (int64, bool) {
	switch d {
	case DirectionUp:
		return h.Up, true
	case DirectionDown:
		return h.Down, true
	case DirectionLeft:
		return h.Left, true
	case DirectionRight:
		return h.Right, true
	default:
		return 0, false
	}
}

// MotionConfig parameterizes the random walk.
type MotionConfig struct {
	Period      time.Duration
	MinSpeedKph float64
	MaxSpeedKph float64
	Weights     DirectionWeights
	Edge        EdgePolicy
	Headings    Headings

	// Confidence radius in feet, drawn from a triangular distribution.
	MinConfidenceFt  float64
	MaxConfidenceFt  float64
	ModeConfidenceFt float64
}

// DefaultMotionConfig returns the walking-pace defaults.
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		Period:           15 * time.Second,
		MinSpeedKph:      1,
		MaxSpeedKph:      5,
		Weights:          DefaultDirectionWeights(),
		Edge:             EdgeClamp,
		Headings:         DefaultHeadings(),
		MinConfidenceFt:  10,
		MaxConfidenceFt:  1000,
		ModeConfidenceFt: 320,
	}
}

// Validate checks ranges that would otherwise produce nonsense numbers.
func (c MotionConfig) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("update period must be positive, got %s", c.Period)
	}
	if c.MinSpeedKph < 0 || c.MaxSpeedKph < c.MinSpeedKph {
		return fmt.Errorf("invalid speed range [%v, %v] kph", c.MinSpeedKph, c.MaxSpeedKph)
	}
	if c.MinConfidenceFt < 0 || c.MaxConfidenceFt < c.MinConfidenceFt {
		return fmt.Errorf("invalid confidence range [%v, %v] ft", c.MinConfidenceFt, c.MaxConfidenceFt)
	}
	if _, err := NewDiscrete(c.Weights.slice()); err != nil {
		return fmt.Errorf("direction weights: %w", err)
	}
	return nil
}

const (
	mmPerFoot    = 304.8
	kphToMPerSec = 1 / 3.6
)

// Step describes what one UpdatePosition call did to an entity.
type Step struct {
	Direction Direction
	SpeedKph  float64
	DistanceM float64
	Bounced   bool
}

// RandomWalkModel moves entities one axis step per tick in percent space.
type RandomWalkModel struct {
	cfg        MotionConfig
	coords     *CoordinateSystem
	rng        *rand.Rand
	directions Discrete
}

// NewRandomWalkModel builds a model drawing from rng. The model is not safe
// for concurrent use; the simulation loop owns it.
func NewRandomWalkModel(cfg MotionConfig, coords *CoordinateSystem, rng *rand.Rand) (*RandomWalkModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if coords == nil {
		return nil, fmt.Errorf("coordinate system is required")
	}
	directions, err := NewDiscrete(cfg.Weights.slice())
	if err != nil {
		return nil, err
	}
	return &RandomWalkModel{
		cfg:        cfg,
		coords:     coords,
		rng:        rng,
		directions: directions,
	}, nil
}

// UpdatePosition stamps the entity with simTime, draws a direction and
// applies it.
func (m *RandomWalkModel) UpdatePosition(simTime time.Time, e *model.Entity) {
	e.TimestampMs = simTime.UnixMilli()
	m.Apply(e, m.DrawDirection())
}

// DrawDirection samples the configured direction distribution.
func (m *RandomWalkModel) DrawDirection() Direction {
	return Direction(m.directions.Draw(m.rng))
}

// Apply moves e in direction d, updates its heading, and resamples its
// confidence. DirectionNone leaves position and heading alone.
func (m *RandomWalkModel) Apply(e *model.Entity, d Direction) Step {
	step := Step{Direction: d}

	if d != DirectionNone {
		step.SpeedKph = Uniform(m.rng, m.cfg.MinSpeedKph, m.cfg.MaxSpeedKph)
		step.DistanceM = step.SpeedKph * kphToMPerSec * m.cfg.Period.Seconds()

		pos := e.Position()
		switch d {
		case DirectionUp:
			pos.Y, step.Bounced = m.resolveEdge(pos.Y + m.coords.PercentOfAxis(AxisY, step.DistanceM))
		case DirectionDown:
			pos.Y, step.Bounced = m.resolveEdge(pos.Y - m.coords.PercentOfAxis(AxisY, step.DistanceM))
		case DirectionLeft:
			pos.X, step.Bounced = m.resolveEdge(pos.X - m.coords.PercentOfAxis(AxisX, step.DistanceM))
		case DirectionRight:
			pos.X, step.Bounced = m.resolveEdge(pos.X + m.coords.PercentOfAxis(AxisX, step.DistanceM))
		}

		if hdg, ok := m.cfg.Headings.For(d); ok {
			setInt64Attr(e, model.AttrHeading, hdg)
		}
	}

	setInt64Attr(e, model.AttrConfidence, m.Confidence())
	return step
}

// Confidence draws a confidence radius in whole millimetres.
func (m *RandomWalkModel) Confidence() int64 {
	ft := Triangular(m.rng, m.cfg.MinConfidenceFt, m.cfg.MaxConfidenceFt, m.cfg.ModeConfidenceFt)
	return int64(math.Round(ft * mmPerFoot))
}

func (m *RandomWalkModel) resolveEdge(v float64) (float64, bool) {
	if v >= 0 && v <= 100 {
		return v, false
	}
	if m.cfg.Edge == EdgeBounce {
		return reflect(v), true
	}
	return math.Min(math.Max(v, 0), 100), false
}

// reflect folds v back into [0, 100] as if it bounced between both walls.
func reflect(v float64) float64 {
	r := math.Mod(v, 200)
	if r < 0 {
		r += 200
	}
	if r > 100 {
		r = 200 - r
	}
	return r
}

func setInt64Attr(e *model.Entity, key string, v int64) {
	if a := e.Attr(key); a != nil {
		a.Type = model.AttrTypeInt64
		a.Int64 = v
		return
	}
	e.Attrs = append(e.Attrs, model.Int64Attr(key, v))
}
