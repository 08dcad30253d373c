package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/venue-telemetry-sim/model"
)

// Axis names one venue axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

// CoordinateSystem maps percent-space positions onto the venue's output
// coordinates. All derived quantities are computed once in
// NewCoordinateSystem and never change afterwards.
type CoordinateSystem struct {
	venue model.Venue

	xAxisM float64
	yAxisM float64

	// Geodetic venues only.
	latDegPerM float64
	lonDegPerM float64
}

// NewCoordinateSystem validates the venue and precomputes axis lengths.
func NewCoordinateSystem(venue model.Venue) (*CoordinateSystem, error) {
	if err := venue.Validate(); err != nil {
		return nil, err
	}

	cs := &CoordinateSystem{venue: venue}
	bl, tr := venue.BottomLeft, venue.TopRight

	switch venue.System {
	case model.CoordsXY:
		cs.xAxisM = math.Abs(tr.X - bl.X)
		cs.yAxisM = math.Abs(tr.Y - bl.Y)
	case model.CoordsLatLong:
		cs.xAxisM = GreatCircleDistance(bl.Y, bl.X, bl.Y, tr.X)
		cs.yAxisM = GreatCircleDistance(bl.Y, bl.X, tr.Y, bl.X)
		cs.latDegPerM, cs.lonDegPerM = DegreesPerMeter(bl, tr)
	default:
		return nil, fmt.Errorf("unsupported coordinate system %v", venue.System)
	}
	return cs, nil
}

// Venue returns the venue the system was built from.
func (cs *CoordinateSystem) Venue() model.Venue { return cs.venue }

// AxisMeters returns the length of the given axis in metres.
func (cs *CoordinateSystem) AxisMeters(axis Axis) float64 {
	if axis == AxisY {
		return cs.yAxisM
	}
	return cs.xAxisM
}

// PercentOfAxis converts a distance in metres to a percentage of the axis.
func (cs *CoordinateSystem) PercentOfAxis(axis Axis, meters float64) float64 {
	return meters / cs.AxisMeters(axis) * 100
}

// MapPercent converts a percent-space position to output units: integer
// millimetres for metric venues, decimal degrees (x=longitude, y=latitude)
// for geodetic venues. Inputs are expected to be in [0, 100] already.
func (cs *CoordinateSystem) MapPercent(xPct, yPct float64) (x, y float64) {
	bl := cs.venue.BottomLeft
	xM := cs.xAxisM * xPct / 100.0
	yM := cs.yAxisM * yPct / 100.0

	if cs.venue.System == model.CoordsLatLong {
		return bl.X + xM*cs.lonDegPerM, bl.Y + yM*cs.latDegPerM
	}
	return math.Trunc((bl.X + xM) * 1000), math.Trunc((bl.Y + yM) * 1000)
}

// MapEntity returns a copy of e with its position mapped to output units.
func (cs *CoordinateSystem) MapEntity(e model.Entity) model.Entity {
	out := e.Clone()
	pos := out.Position()
	pos.X, pos.Y = cs.MapPercent(pos.X, pos.Y)
	return out
}

// MapAll maps every entity, preserving order.
func (cs *CoordinateSystem) MapAll(entities []model.Entity) []model.Entity {
	out := make([]model.Entity, len(entities))
	for i, e := range entities {
		out[i] = cs.MapEntity(e)
	}
	return out
}
