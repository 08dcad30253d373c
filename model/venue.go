package model

import (
	"errors"
	"fmt"
	"strings"
)

// CoordSystem selects the output coordinate representation.
type CoordSystem int

const (
	// CoordsXY maps to local metric coordinates, emitted in millimetres.
	CoordsXY CoordSystem = iota
	// CoordsLatLong maps to geodetic decimal degrees.
	CoordsLatLong
)

func (c CoordSystem) String() string {
	switch c {
	case CoordsXY:
		return "xy"
	case CoordsLatLong:
		return "ll"
	default:
		return fmt.Sprintf("CoordSystem(%d)", int(c))
	}
}

// ParseCoordSystem accepts "xy" or "ll" (also "latlong").
func ParseCoordSystem(s string) (CoordSystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "xy", "metric":
		return CoordsXY, nil
	case "ll", "latlong", "latlon", "geodetic":
		return CoordsLatLong, nil
	default:
		return 0, fmt.Errorf("unknown coordinate system %q", s)
	}
}

// Corner is one corner of the venue. For geodetic venues X is longitude and Y
// is latitude; for metric venues both are metres.
type Corner struct {
	X float64
	Y float64
}

// Venue is the axis-aligned rectangle entities move inside.
type Venue struct {
	System     CoordSystem
	BottomLeft Corner
	TopRight   Corner
}

// ErrDegenerateVenue is returned when the top-right corner does not strictly
// exceed the bottom-left corner on both axes.
var ErrDegenerateVenue = errors.New("venue top-right must exceed bottom-left on both axes")

// Validate checks the venue invariants.
func (v Venue) Validate() error {
	if !(v.TopRight.X > v.BottomLeft.X) || !(v.TopRight.Y > v.BottomLeft.Y) {
		return fmt.Errorf("%w: bottom-left=%v top-right=%v", ErrDegenerateVenue, v.BottomLeft, v.TopRight)
	}
	if v.System == CoordsLatLong {
		for _, c := range []Corner{v.BottomLeft, v.TopRight} {
			if c.Y < -90 || c.Y > 90 {
				return fmt.Errorf("latitude %v out of range [-90, 90]", c.Y)
			}
			if c.X < -180 || c.X > 180 {
				return fmt.Errorf("longitude %v out of range [-180, 180]", c.X)
			}
		}
	}
	return nil
}

// DefaultMetricVenue is a 150 m x 160 m warehouse floor with its origin at 0,0.
func DefaultMetricVenue() Venue {
	return Venue{
		System:     CoordsXY,
		BottomLeft: Corner{X: 0, Y: 0},
		TopRight:   Corner{X: 150, Y: 160},
	}
}

// DefaultGeodeticVenue is a roughly 2 km square site in Texas.
func DefaultGeodeticVenue() Venue {
	return Venue{
		System:     CoordsLatLong,
		BottomLeft: Corner{X: -100.02, Y: 30.00},
		TopRight:   Corner{X: -100.00, Y: 30.02},
	}
}
